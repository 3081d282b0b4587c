// Package notifications stores per-user inbox messages and their read state.
package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// ErrNotificationNotFound indicates the message is absent from the caller's inbox.
var ErrNotificationNotFound = fmt.Errorf("%w: notification", shared.ErrNotFound)

// Notification is one stored inbox row.
type Notification struct {
	ID        int64
	TenantID  uuid.UUID
	UserID    int64
	Level     shared.NotificationLevel
	Message   string
	Link      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Read reports whether the recipient has seen the message.
func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// ListFilter narrows inbox listings.
type ListFilter struct {
	UnreadOnly bool
	Limit      int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	}
	return f.Limit
}
