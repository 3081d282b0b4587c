package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role groups permissions inside one tenant.
type Role struct {
	ID          int64
	TenantID    uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// Permission represents an atomic capability. Name matches shared.Action.String().
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserRole links a user to a role within a tenant.
type UserRole struct {
	TenantID uuid.UUID
	UserID   int64
	RoleID   int64
}
