package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
)

// Repository reads and writes the permission tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EffectivePermissions returns the deduplicated permission names granted to a
// user through every role they hold in the tenant.
func (r *Repository) EffectivePermissions(ctx context.Context, tenantID uuid.UUID, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT p.name
FROM user_roles ur
JOIN roles ro ON ro.id = ur.role_id AND ro.tenant_id = ur.tenant_id
JOIN role_permissions rp ON rp.role_id = ro.id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.tenant_id = $1 AND ur.user_id = $2
ORDER BY p.name`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListPermissions returns the whole catalogue ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Permission, error) {
		var p Permission
		err := row.Scan(&p.ID, &p.Name, &p.Description)
		return p, err
	})
}

// EnsurePermission upserts a permission by name.
func (r *Repository) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return Permission{}, fmt.Errorf("rbac: permission name required")
	}
	var p Permission
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id, name, description`, name, description).Scan(&p.ID, &p.Name, &p.Description)
	return p, err
}

// EnsureRole upserts a role by tenant and name.
func (r *Repository) EnsureRole(ctx context.Context, tenantID uuid.UUID, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required")
	}
	role := Role{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (tenant_id, name, description) VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, name) DO UPDATE SET description = EXCLUDED.description
RETURNING id, name, description, created_at`, tenantID, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	return role, err
}

// SetRolePermissions replaces the permissions attached to a role.
func (r *Repository) SetRolePermissions(ctx context.Context, roleID int64, names []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions rp USING permissions p
WHERE rp.permission_id = p.id AND rp.role_id = $1 AND NOT (p.name = ANY($2))`, roleID, names); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, id FROM permissions WHERE name = ANY($2)
ON CONFLICT DO NOTHING`, roleID, names)
		return err
	})
}

// AssignRole grants a role to a user in the tenant.
func (r *Repository) AssignRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (tenant_id, user_id, role_id) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`, tenantID, userID, roleID)
	return err
}

// RemoveRole revokes a role from a user in the tenant.
func (r *Repository) RemoveRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`,
		tenantID, userID, roleID)
	return err
}
