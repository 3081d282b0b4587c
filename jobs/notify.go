package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error)
}

// TaskNotifier implements shared.Notifier by queueing a delivery task.
type TaskNotifier struct {
	queue Enqueuer
}

var _ shared.Notifier = (*TaskNotifier)(nil)

// NewTaskNotifier constructs a TaskNotifier.
func NewTaskNotifier(queue Enqueuer) *TaskNotifier {
	return &TaskNotifier{queue: queue}
}

// Notify enqueues the notification.
func (n *TaskNotifier) Notify(ctx context.Context, msg shared.Notification) error {
	if n == nil || n.queue == nil {
		return errors.New("notifier: queue not configured")
	}
	task, err := NewNotificationTask(msg)
	if err != nil {
		return err
	}
	_, err = n.queue.Enqueue(ctx, task)
	return err
}

// NotificationStore persists delivered notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n shared.Notification) error
}

// NotificationJob delivers queued notifications.
type NotificationJob struct {
	Store  NotificationStore
	Logger *slog.Logger
}

// Handle decodes and stores a notification.
func (j *NotificationJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("notification: store not configured")
	}
	var msg shared.Notification
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("notification: decode: %v: %w", err, asynq.SkipRetry)
	}
	if msg.UserID <= 0 || msg.Message == "" {
		return fmt.Errorf("notification: recipient and message required: %w", asynq.SkipRetry)
	}
	if err := j.Store.InsertNotification(ctx, msg); err != nil {
		j.log().Warn("store notification", slog.String("tenant_id", msg.TenantID.String()), slog.Any("error", err))
		return err
	}
	return nil
}

func (j *NotificationJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("task", TaskNotificationDeliver))
	}
	return slog.Default().With(slog.String("task", TaskNotificationDeliver))
}
