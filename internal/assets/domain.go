package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// WrittenOffStatusName is the tenant status assigned by disposal.
const WrittenOffStatusName = "WRITTEN_OFF"

// WrittenOffStatusDetail describes the on-demand written off status.
const WrittenOffStatusDetail = "Asset written off by disposal."

var (
	// ErrAssetNotFound indicates the asset is absent from the caller's tenant.
	ErrAssetNotFound = fmt.Errorf("%w: asset", shared.ErrNotFound)
	// ErrDuplicateAsset indicates an internal code or originating order already used.
	ErrDuplicateAsset = fmt.Errorf("%w: asset already exists for code or order", shared.ErrConflict)
)

// Asset is a tracked physical item. CurrentValue changes only through value adjustments.
type Asset struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	InternalCode    string
	AcquisitionDate time.Time
	CurrentValue    decimal.Decimal
	UsefulLife      int
	CategoryID      uuid.UUID
	StatusID        uuid.UUID
	LocationID      uuid.UUID
	DepartmentID    uuid.UUID
	SupplierID      *uuid.UUID
	PurchaseOrderID *uuid.UUID
	CreatedAt       time.Time
}

// ListFilter narrows asset listings.
type ListFilter struct {
	StatusID     *uuid.UUID
	CategoryID   *uuid.UUID
	DepartmentID *uuid.UUID
	LocationID   *uuid.UUID
}

// codeLengths are the hex suffix lengths tried in order. The full id never collides.
var codeLengths = []int{8, 16, 32}

// InternalCode derives the asset code for an asset received from an order.
func InternalCode(orderID uuid.UUID) string {
	return internalCode(orderID, codeLengths[0])
}

func internalCode(orderID uuid.UUID, n int) string {
	hex := strings.ReplaceAll(orderID.String(), "-", "")
	return "ACT-" + strings.ToUpper(hex[:n])
}

// NextInternalCode returns the shortest code derived from orderID that the
// tenant has not used yet.
func NextInternalCode(ctx context.Context, tx TxRepository, tenantID, orderID uuid.UUID) (string, error) {
	for _, n := range codeLengths {
		code := internalCode(orderID, n)
		taken, err := tx.CodeInUse(ctx, tenantID, code)
		if err != nil {
			return "", fmt.Errorf("assets: check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrDuplicateAsset
}
