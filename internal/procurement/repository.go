package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Budget and Assets share
// the same transaction so a receipt commits or rolls back as one unit.
type TxRepository interface {
	InsertRequest(ctx context.Context, pr PurchaseRequest) error
	LockRequest(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error)
	GetRequestTx(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error)
	SaveDecision(ctx context.Context, pr PurchaseRequest) error
	RequestHasOrder(ctx context.Context, requestID uuid.UUID) (bool, error)
	InsertOrder(ctx context.Context, po PurchaseOrder) error
	LockOrder(ctx context.Context, tenantID, id uuid.UUID) (PurchaseOrder, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error
	Budget() budget.TxRepository
	Assets() assets.TxRepository
}

type txRepo struct {
	tx     pgx.Tx
	budget budget.TxRepository
	assets assets.TxRepository
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:     tx,
			budget: budget.NewTxRepository(tx),
			assets: assets.NewTxRepository(tx),
		})
	})
}

func (r *txRepo) Budget() budget.TxRepository { return r.budget }

func (r *txRepo) Assets() assets.TxRepository { return r.assets }

const requestColumns = `r.id, r.tenant_id, r.requester_id, r.department_id, r.description, r.estimated_cost, r.justification,
r.status, r.budget_line_id, r.decided_by, r.decided_at, r.rejection_reason, r.created_at`

func scanRequest(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	var status string
	err := row.Scan(&pr.ID, &pr.TenantID, &pr.RequesterID, &pr.DepartmentID, &pr.Description, &pr.EstimatedCost, &pr.Justification,
		&status, &pr.BudgetLineID, &pr.DecidedBy, &pr.DecidedAt, &pr.RejectionReason, &pr.CreatedAt)
	if db.IsNoRows(err) {
		return PurchaseRequest{}, ErrRequestNotFound
	}
	pr.Status = RequestStatus(status)
	return pr, err
}

const orderColumns = `o.id, o.tenant_id, o.request_id, o.supplier_id, o.final_price, o.order_date, o.estimated_delivery,
o.status, o.created_by, o.created_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.TenantID, &po.RequestID, &po.SupplierID, &po.FinalPrice, &po.OrderDate, &po.EstimatedDelivery,
		&status, &po.CreatedBy, &po.CreatedAt)
	if db.IsNoRows(err) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	po.Status = OrderStatus(status)
	return po, err
}

func (r *txRepo) InsertRequest(ctx context.Context, pr PurchaseRequest) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_requests (id, tenant_id, requester_id, department_id, description, estimated_cost,
justification, status, budget_line_id, rejection_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '')`, pr.ID, pr.TenantID, pr.RequesterID, pr.DepartmentID, pr.Description,
		pr.EstimatedCost, pr.Justification, string(pr.Status), pr.BudgetLineID)
	return err
}

func (r *txRepo) LockRequest(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error) {
	return scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_requests r
WHERE r.id = $1 AND r.tenant_id = $2 FOR UPDATE`, id, tenantID))
}

func (r *txRepo) GetRequestTx(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error) {
	return scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_requests r
WHERE r.id = $1 AND r.tenant_id = $2`, id, tenantID))
}

func (r *txRepo) SaveDecision(ctx context.Context, pr PurchaseRequest) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_requests
SET status = $2, decided_by = $3, decided_at = $4, rejection_reason = $5, budget_line_id = $6
WHERE id = $1`, pr.ID, string(pr.Status), pr.DecidedBy, pr.DecidedAt, pr.RejectionReason, pr.BudgetLineID)
	return err
}

func (r *txRepo) RequestHasOrder(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE request_id = $1)`, requestID).Scan(&exists)
	return exists, err
}

func (r *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_orders (id, tenant_id, request_id, supplier_id, final_price, order_date,
estimated_delivery, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, po.ID, po.TenantID, po.RequestID, po.SupplierID, po.FinalPrice, po.OrderDate,
		po.EstimatedDelivery, string(po.Status), po.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrRequestHasOrder
	}
	return err
}

func (r *txRepo) LockOrder(ctx context.Context, tenantID, id uuid.UUID) (PurchaseOrder, error) {
	return scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders o
WHERE o.id = $1 AND o.tenant_id = $2 FOR UPDATE`, id, tenantID))
}

func (r *txRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// GetRequest returns a tenant scoped request.
func (r *Repository) GetRequest(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_requests r
WHERE r.id = $1 AND r.tenant_id = $2`, id, tenantID))
}

// ListRequests returns the tenant's requests, newest first.
func (r *Repository) ListRequests(ctx context.Context, tenantID uuid.UUID, filter RequestFilter) ([]PurchaseRequest, error) {
	clauses := []string{"r.tenant_id = $1"}
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("r.department_id = $%d", len(args)))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM purchase_requests r
WHERE `+strings.Join(clauses, " AND ")+` ORDER BY r.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// GetOrder returns a tenant scoped order.
func (r *Repository) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (PurchaseOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders o
WHERE o.id = $1 AND o.tenant_id = $2`, id, tenantID))
}

// ListOrders returns the tenant's orders, newest first.
func (r *Repository) ListOrders(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]PurchaseOrder, error) {
	clauses := []string{"o.tenant_id = $1"}
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		clauses = append(clauses, fmt.Sprintf("o.supplier_id = $%d", len(args)))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders o
WHERE `+strings.Join(clauses, " AND ")+` ORDER BY o.order_date DESC, o.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}
