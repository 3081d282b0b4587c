package masterdata

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// existsQueries holds one tenant-scoped existence query per kind. Budget lines are
// owned by periods, so their tenant comes from the join.
var existsQueries = map[Kind]string{
	KindDepartment:  `SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND tenant_id = $2)`,
	KindSupplier:    `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND tenant_id = $2)`,
	KindCategory:    `SELECT EXISTS (SELECT 1 FROM asset_categories WHERE id = $1 AND tenant_id = $2)`,
	KindAssetStatus: `SELECT EXISTS (SELECT 1 FROM asset_statuses WHERE id = $1 AND tenant_id = $2)`,
	KindLocation:    `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1 AND tenant_id = $2)`,
	KindBudgetLine: `SELECT EXISTS (SELECT 1 FROM budget_lines l JOIN budget_periods p ON p.id = l.period_id
		WHERE l.id = $1 AND p.tenant_id = $2)`,
}

var tables = map[Kind]string{
	KindDepartment:  "departments",
	KindSupplier:    "suppliers",
	KindCategory:    "asset_categories",
	KindAssetStatus: "asset_statuses",
	KindLocation:    "locations",
}

// repo implements Repository.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) Exists(ctx context.Context, tenantID uuid.UUID, kind Kind, id uuid.UUID) (bool, error) {
	query, ok := existsQueries[kind]
	if !ok {
		return false, fmt.Errorf("masterdata: unknown kind %q", kind)
	}
	var exists bool
	if err := r.db.QueryRow(ctx, query, id, tenantID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repo) List(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Reference, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("masterdata: kind %q is not listable", kind)
	}
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, name, created_at FROM `+table+` WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		ref := Reference{Kind: kind}
		if err := rows.Scan(&ref.ID, &ref.TenantID, &ref.Name, &ref.CreatedAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *repo) Create(ctx context.Context, ref Reference) (Reference, error) {
	table, ok := tables[ref.Kind]
	if !ok {
		return Reference{}, fmt.Errorf("masterdata: kind %q is not creatable", ref.Kind)
	}
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `INSERT INTO `+table+` (id, tenant_id, name) VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, created_at`, ref.ID, ref.TenantID, ref.Name).Scan(&ref.ID, &ref.CreatedAt)
	if err != nil {
		return Reference{}, err
	}
	return ref, nil
}
