package valuation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
)

// Repository persists valuation history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes history writes sharing the asset's transaction.
type TxRepository interface {
	Assets() assets.TxRepository
	AssetDisposed(ctx context.Context, assetID uuid.UUID) (bool, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
}

type txRepo struct {
	tx     pgx.Tx
	assets assets.TxRepository
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, assets: assets.NewTxRepository(tx)})
	})
}

func (r *txRepo) Assets() assets.TxRepository { return r.assets }

func (r *txRepo) AssetDisposed(ctx context.Context, assetID uuid.UUID) (bool, error) {
	var disposed bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM asset_value_adjustments
WHERE asset_id = $1 AND operation = 'DISPOSE')`, assetID).Scan(&disposed)
	return disposed, err
}

func (r *txRepo) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO asset_value_adjustments (tenant_id, asset_id, operation, value_before, value_after,
factor, revalue_method, depreciation_method, amount, disposal_type, sale_value, reason, notes, actor_id)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''), $11, $12, $13, $14)
RETURNING id, recorded_at`,
		rec.TenantID, rec.AssetID, string(rec.Operation), rec.ValueBefore, rec.ValueAfter,
		rec.Factor, string(rec.RevalueMethod), string(rec.DepreciationMethod), rec.Amount, string(rec.DisposalType),
		rec.SaleValue, rec.Reason, rec.Notes, rec.ActorID).Scan(&rec.ID, &rec.RecordedAt)
	return rec, err
}

// AssetExists reports whether the asset belongs to the tenant.
func (r *Repository) AssetExists(ctx context.Context, tenantID, assetID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assets WHERE id = $1 AND tenant_id = $2)`, assetID, tenantID).Scan(&exists)
	return exists, err
}

// ListRecords returns an asset's history, newest first.
func (r *Repository) ListRecords(ctx context.Context, tenantID, assetID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, asset_id, operation, value_before, value_after, factor,
COALESCE(revalue_method, ''), COALESCE(depreciation_method, ''), amount, COALESCE(disposal_type, ''), sale_value,
reason, notes, actor_id, recorded_at
FROM asset_value_adjustments
WHERE asset_id = $1 AND tenant_id = $2
ORDER BY recorded_at DESC, id DESC`, assetID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var op, revalue, depreciation, disposal string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.AssetID, &op, &rec.ValueBefore, &rec.ValueAfter, &rec.Factor,
			&revalue, &depreciation, &rec.Amount, &disposal, &rec.SaleValue,
			&rec.Reason, &rec.Notes, &rec.ActorID, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Operation = Operation(op)
		rec.RevalueMethod = RevalueMethod(revalue)
		rec.DepreciationMethod = DepreciationMethod(depreciation)
		rec.DisposalType = DisposalType(disposal)
		out = append(out, rec)
	}
	return out, rows.Err()
}
