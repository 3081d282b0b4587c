package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Store is the inbox persistence used by the handler and the delivery job.
type Store interface {
	InsertNotification(ctx context.Context, n shared.Notification) error
	List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Notification, error)
	UnreadCount(ctx context.Context, actor shared.Actor) (int64, error)
	MarkRead(ctx context.Context, actor shared.Actor, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, actor shared.Actor, at time.Time) (int64, error)
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertNotification stores one inbox row.
func (r *Repository) InsertNotification(ctx context.Context, n shared.Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications (tenant_id, user_id, level, message, link)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))`, n.TenantID, n.UserID, string(n.Level), n.Message, n.Link)
	if err != nil {
		return fmt.Errorf("notifications: insert: %w", err)
	}
	return nil
}

// List returns the actor's messages, unread first and newest first within each group.
func (r *Repository) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, user_id, level, message, COALESCE(link, ''), read_at, created_at
FROM notifications
WHERE tenant_id = $1 AND user_id = $2 AND (NOT $3 OR read_at IS NULL)
ORDER BY read_at IS NOT NULL, created_at DESC, id DESC
LIMIT $4`, actor.TenantID, actor.UserID, filter.UnreadOnly, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		var n Notification
		var level string
		err := row.Scan(&n.ID, &n.TenantID, &n.UserID, &level, &n.Message, &n.Link, &n.ReadAt, &n.CreatedAt)
		n.Level = shared.NotificationLevel(level)
		return n, err
	})
}

// UnreadCount counts the actor's unread messages.
func (r *Repository) UnreadCount(ctx context.Context, actor shared.Actor) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
WHERE tenant_id = $1 AND user_id = $2 AND read_at IS NULL`, actor.TenantID, actor.UserID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notifications: unread count: %w", err)
	}
	return count, nil
}

// MarkRead stamps one message. Messages already read keep their first read time.
func (r *Repository) MarkRead(ctx context.Context, actor shared.Actor, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $4)
WHERE id = $1 AND tenant_id = $2 AND user_id = $3`, id, actor.TenantID, actor.UserID, at)
	if err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead stamps every unread message of the actor and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, actor shared.Actor, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = $3
WHERE tenant_id = $1 AND user_id = $2 AND read_at IS NULL`, actor.TenantID, actor.UserID, at)
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
