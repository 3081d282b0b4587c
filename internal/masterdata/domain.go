package masterdata

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names a tenant-scoped reference table consulted by the core.
type Kind string

const (
	KindDepartment  Kind = "department"
	KindSupplier    Kind = "supplier"
	KindCategory    Kind = "category"
	KindAssetStatus Kind = "asset_status"
	KindLocation    Kind = "location"
	KindBudgetLine  Kind = "budget_line"
)

// Reference is a named master data row.
type Reference struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Lookup answers existence questions about references within a tenant.
type Lookup interface {
	Exists(ctx context.Context, tenantID uuid.UUID, kind Kind, id uuid.UUID) (bool, error)
}

// Repository provides master data persistence.
type Repository interface {
	Lookup
	List(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Reference, error)
	Create(ctx context.Context, ref Reference) (Reference, error)
}
