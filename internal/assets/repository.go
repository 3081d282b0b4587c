package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
)

// Repository provides PostgreSQL backed asset reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes asset writes that must share a caller's transaction.
type TxRepository interface {
	InsertAsset(ctx context.Context, a Asset) error
	AssetExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	CodeInUse(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	LockAsset(ctx context.Context, tenantID, assetID uuid.UUID) (Asset, error)
	UpdateAssetValue(ctx context.Context, assetID uuid.UUID, value decimal.Decimal) error
	UpdateAssetStatus(ctx context.Context, assetID, statusID uuid.UUID) error
	EnsureStatus(ctx context.Context, tenantID uuid.UUID, name, detail string) (uuid.UUID, error)
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds asset writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

const assetColumns = `a.id, a.tenant_id, a.name, a.internal_code, a.acquisition_date, a.current_value, a.useful_life,
a.category_id, a.status_id, a.location_id, a.department_id, a.supplier_id, a.purchase_order_id, a.created_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.InternalCode, &a.AcquisitionDate, &a.CurrentValue, &a.UsefulLife,
		&a.CategoryID, &a.StatusID, &a.LocationID, &a.DepartmentID, &a.SupplierID, &a.PurchaseOrderID, &a.CreatedAt)
	if db.IsNoRows(err) {
		return Asset{}, ErrAssetNotFound
	}
	return a, err
}

func (r *txRepo) InsertAsset(ctx context.Context, a Asset) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO assets (id, tenant_id, name, internal_code, acquisition_date, current_value, useful_life,
category_id, status_id, location_id, department_id, supplier_id, purchase_order_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.TenantID, a.Name, a.InternalCode, a.AcquisitionDate, a.CurrentValue, a.UsefulLife,
		a.CategoryID, a.StatusID, a.LocationID, a.DepartmentID, a.SupplierID, a.PurchaseOrderID)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateAsset
	}
	return err
}

func (r *txRepo) AssetExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assets WHERE purchase_order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *txRepo) CodeInUse(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assets WHERE tenant_id = $1 AND internal_code = $2)`, tenantID, code).Scan(&exists)
	return exists, err
}

func (r *txRepo) LockAsset(ctx context.Context, tenantID, assetID uuid.UUID) (Asset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets a
WHERE a.id = $1 AND a.tenant_id = $2 FOR UPDATE`, assetID, tenantID))
}

func (r *txRepo) UpdateAssetValue(ctx context.Context, assetID uuid.UUID, value decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE assets SET current_value = $2 WHERE id = $1`, assetID, value)
	return err
}

func (r *txRepo) UpdateAssetStatus(ctx context.Context, assetID, statusID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `UPDATE assets SET status_id = $2 WHERE id = $1`, assetID, statusID)
	return err
}

func (r *txRepo) EnsureStatus(ctx context.Context, tenantID uuid.UUID, name, detail string) (uuid.UUID, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO asset_statuses (id, tenant_id, name, detail)
VALUES ($1, $2, $3, $4) ON CONFLICT (tenant_id, name) DO NOTHING`, uuid.New(), tenantID, name, detail); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := r.tx.QueryRow(ctx, `SELECT id FROM asset_statuses WHERE tenant_id = $1 AND name = $2`, tenantID, name).Scan(&id)
	return id, err
}

// Get returns a tenant scoped asset.
func (r *Repository) Get(ctx context.Context, tenantID, assetID uuid.UUID) (Asset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets a WHERE a.id = $1 AND a.tenant_id = $2`, assetID, tenantID))
}

// List returns the tenant's assets ordered by internal code.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Asset, error) {
	clauses := []string{"a.tenant_id = $1"}
	args := []any{tenantID}
	add := func(column string, v *uuid.UUID) {
		if v == nil {
			return
		}
		args = append(args, *v)
		clauses = append(clauses, fmt.Sprintf("a.%s = $%d", column, len(args)))
	}
	add("status_id", filter.StatusID)
	add("category_id", filter.CategoryID)
	add("department_id", filter.DepartmentID)
	add("location_id", filter.LocationID)

	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets a WHERE `+strings.Join(clauses, " AND ")+` ORDER BY a.internal_code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
