package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-assets/internal/jobs"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBudgetCloseExpired closes Active budget periods past their end date.
	TaskBudgetCloseExpired = "budget:close-expired"
	// TaskNotificationDeliver persists a notification into the inbox.
	TaskNotificationDeliver = "notification:deliver"

	dateLayout = "2006-01-02"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BudgetClosePayload optionally pins the sweep date.
type BudgetClosePayload struct {
	Today string `json:"today,omitempty"`
}

// NewBudgetCloseTask builds a close-expired task. A nil today lets the
// handler use the current date.
func NewBudgetCloseTask(today *time.Time) (*asynq.Task, error) {
	var payload BudgetClosePayload
	if today != nil {
		payload.Today = today.Format(dateLayout)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetCloseExpired, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewNotificationTask wraps a notification for asynchronous delivery.
func NewNotificationTask(n shared.Notification) (*asynq.Task, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDeliver, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewTaskByName builds a task from a CLI style name and optional date argument.
func NewTaskByName(name, date string) (*asynq.Task, error) {
	switch name {
	case TaskBudgetCloseExpired:
		if date == "" {
			return NewBudgetCloseTask(nil)
		}
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("jobs: invalid date %q: %w", date, err)
		}
		return NewBudgetCloseTask(&day)
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}
