package shared

import (
	"context"

	"github.com/google/uuid"
)

// NotificationLevel classifies a notification for the inbox.
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "INFO"
	NotificationWarning NotificationLevel = "WARNING"
)

// Notification is a message addressed to one user of a tenant.
type Notification struct {
	TenantID uuid.UUID         `json:"tenant_id"`
	UserID   int64             `json:"user_id"`
	Level    NotificationLevel `json:"level"`
	Message  string            `json:"message"`
	Link     string            `json:"link,omitempty"`
}

// Notifier delivers notifications. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
