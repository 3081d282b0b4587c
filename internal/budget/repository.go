package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional ledger operations. Lock methods
// hold their row locks until the surrounding transaction ends. Locks are
// always taken line first, then period.
type TxRepository interface {
	InsertPeriod(ctx context.Context, p Period) error
	LockPeriod(ctx context.Context, tenantID, periodID uuid.UUID) (Period, error)
	UpdatePeriodStatus(ctx context.Context, periodID uuid.UUID, status PeriodStatus) error
	ClosePeriodIfExpired(ctx context.Context, periodID uuid.UUID, today time.Time) (bool, error)
	LockLineForEdit(ctx context.Context, tenantID, lineID uuid.UUID) (Line, error)
	InsertLine(ctx context.Context, l Line) error
	UpdateLine(ctx context.Context, l Line) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	LineHasMovements(ctx context.Context, lineID uuid.UUID) (bool, error)
	RecalculateTotal(ctx context.Context, periodID uuid.UUID) (decimal.Decimal, error)
	LockLine(ctx context.Context, tenantID, lineID uuid.UUID) (Line, PeriodStatus, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	AddSpent(ctx context.Context, lineID uuid.UUID, delta decimal.Decimal) error
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger operations to an open transaction so other
// workflows can post movements inside their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const periodColumns = `p.id, p.tenant_id, p.name, p.start_date, p.end_date, p.status, p.total_amount, p.created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	var status string
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.StartDate, &p.EndDate, &status, &p.Total, &p.CreatedAt); err != nil {
		return Period{}, err
	}
	p.Status = PeriodStatus(status)
	return p, nil
}

const lineColumns = `l.id, l.period_id, l.department_id, l.name, l.code, l.assigned_amount, l.spent_amount`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	if err := row.Scan(&l.ID, &l.PeriodID, &l.DepartmentID, &l.Name, &l.Code, &l.Assigned, &l.Spent); err != nil {
		return Line{}, err
	}
	return l, nil
}

func (r *txRepo) InsertPeriod(ctx context.Context, p Period) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO budget_periods (id, tenant_id, name, start_date, end_date, status, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, 0)`, p.ID, p.TenantID, p.Name, p.StartDate, p.EndDate, string(p.Status))
	if db.IsUniqueViolation(err) {
		return ErrDuplicatePeriod
	}
	return err
}

func (r *txRepo) LockPeriod(ctx context.Context, tenantID, periodID uuid.UUID) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods p
WHERE p.id = $1 AND p.tenant_id = $2 FOR UPDATE`, periodID, tenantID)
	p, err := scanPeriod(row)
	if db.IsNoRows(err) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (r *txRepo) UpdatePeriodStatus(ctx context.Context, periodID uuid.UUID, status PeriodStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE budget_periods SET status = $2 WHERE id = $1`, periodID, string(status))
	return err
}

func (r *txRepo) ClosePeriodIfExpired(ctx context.Context, periodID uuid.UUID, today time.Time) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE budget_periods SET status = $2
WHERE id = $1 AND status = $3 AND end_date < $4`, periodID, string(PeriodClosed), string(PeriodActive), today)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepo) LockLineForEdit(ctx context.Context, tenantID, lineID uuid.UUID) (Line, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM budget_lines l
JOIN budget_periods p ON p.id = l.period_id
WHERE l.id = $1 AND p.tenant_id = $2
FOR UPDATE OF l`, lineID, tenantID)
	l, err := scanLine(row)
	if db.IsNoRows(err) {
		return Line{}, ErrLineNotFound
	}
	return l, err
}

func (r *txRepo) InsertLine(ctx context.Context, l Line) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO budget_lines (id, period_id, department_id, name, code, assigned_amount, spent_amount)
VALUES ($1, $2, $3, $4, $5, $6, 0)`, l.ID, l.PeriodID, l.DepartmentID, l.Name, l.Code, l.Assigned)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateLine
	}
	return err
}

func (r *txRepo) UpdateLine(ctx context.Context, l Line) error {
	_, err := r.tx.Exec(ctx, `UPDATE budget_lines SET department_id = $2, name = $3, code = $4, assigned_amount = $5
WHERE id = $1`, l.ID, l.DepartmentID, l.Name, l.Code, l.Assigned)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateLine
	}
	return err
}

func (r *txRepo) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM budget_lines WHERE id = $1`, lineID)
	return err
}

func (r *txRepo) LineHasMovements(ctx context.Context, lineID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM budget_movements WHERE line_id = $1)`, lineID).Scan(&exists)
	return exists, err
}

func (r *txRepo) RecalculateTotal(ctx context.Context, periodID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `UPDATE budget_periods
SET total_amount = (SELECT COALESCE(SUM(assigned_amount), 0) FROM budget_lines WHERE period_id = $1)
WHERE id = $1
RETURNING total_amount`, periodID).Scan(&total)
	return total, err
}

func (r *txRepo) LockLine(ctx context.Context, tenantID, lineID uuid.UUID) (Line, PeriodStatus, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+lineColumns+`, p.status FROM budget_lines l
JOIN budget_periods p ON p.id = l.period_id
WHERE l.id = $1 AND p.tenant_id = $2
FOR UPDATE OF l FOR SHARE OF p`, lineID, tenantID)
	var l Line
	var status string
	err := row.Scan(&l.ID, &l.PeriodID, &l.DepartmentID, &l.Name, &l.Code, &l.Assigned, &l.Spent, &status)
	if db.IsNoRows(err) {
		return Line{}, "", ErrLineNotFound
	}
	if err != nil {
		return Line{}, "", err
	}
	return l, PeriodStatus(status), nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO budget_movements (line_id, purchase_order_id, movement_type, amount, description, forced, actor_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, recorded_at`, m.LineID, m.OrderID, string(m.Type), m.Amount, m.Description, m.Forced, m.ActorID).Scan(&m.ID, &m.RecordedAt)
	return m, err
}

func (r *txRepo) AddSpent(ctx context.Context, lineID uuid.UUID, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE budget_lines SET spent_amount = spent_amount + $2 WHERE id = $1`, lineID, delta)
	return err
}

// GetPeriod returns a tenant scoped period.
func (r *Repository) GetPeriod(ctx context.Context, tenantID, id uuid.UUID) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods p WHERE p.id = $1 AND p.tenant_id = $2`, id, tenantID)
	p, err := scanPeriod(row)
	if db.IsNoRows(err) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

// ListPeriods returns the tenant's periods, newest start date first.
func (r *Repository) ListPeriods(ctx context.Context, tenantID uuid.UUID, filter PeriodFilter) ([]Period, error) {
	where, args := filterClause(tenantID, filter)
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM budget_periods p WHERE `+where+` ORDER BY p.start_date DESC, p.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListLines returns the lines of a tenant scoped period.
func (r *Repository) ListLines(ctx context.Context, tenantID, periodID uuid.UUID) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM budget_lines l
JOIN budget_periods p ON p.id = l.period_id
WHERE l.period_id = $1 AND p.tenant_id = $2
ORDER BY l.code, l.name`, periodID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLine returns a tenant scoped line.
func (r *Repository) GetLine(ctx context.Context, tenantID, lineID uuid.UUID) (Line, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lineColumns+` FROM budget_lines l
JOIN budget_periods p ON p.id = l.period_id
WHERE l.id = $1 AND p.tenant_id = $2`, lineID, tenantID)
	l, err := scanLine(row)
	if db.IsNoRows(err) {
		return Line{}, ErrLineNotFound
	}
	return l, err
}

// ListMovements returns a line's movements, newest first.
func (r *Repository) ListMovements(ctx context.Context, tenantID, lineID uuid.UUID) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.line_id, m.purchase_order_id, m.movement_type, m.amount, m.description, m.forced, m.actor_id, m.recorded_at
FROM budget_movements m
JOIN budget_lines l ON l.id = m.line_id
JOIN budget_periods p ON p.id = l.period_id
WHERE m.line_id = $1 AND p.tenant_id = $2
ORDER BY m.recorded_at DESC, m.id DESC`, lineID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.LineID, &m.OrderID, &kind, &m.Amount, &m.Description, &m.Forced, &m.ActorID, &m.RecordedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListExpiredPeriods returns Active periods whose end date is before today, across tenants.
func (r *Repository) ListExpiredPeriods(ctx context.Context, today time.Time) ([]ExpiredPeriod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, name, end_date FROM budget_periods
WHERE status = $1 AND end_date < $2
ORDER BY end_date, id`, string(PeriodActive), today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpiredPeriod
	for rows.Next() {
		var p ExpiredPeriod
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.EndDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReportSummaries aggregates spent per period for the budget report.
func (r *Repository) ReportSummaries(ctx context.Context, tenantID uuid.UUID, filter PeriodFilter) ([]PeriodSummary, error) {
	where, args := filterClause(tenantID, filter)
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+`, COALESCE(SUM(l.spent_amount), 0)
FROM budget_periods p
LEFT JOIN budget_lines l ON l.period_id = p.id
WHERE `+where+`
GROUP BY p.id
ORDER BY p.start_date DESC, p.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodSummary
	for rows.Next() {
		var s PeriodSummary
		var status string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.StartDate, &s.EndDate, &status, &s.Total, &s.CreatedAt, &s.Spent); err != nil {
			return nil, err
		}
		s.Status = PeriodStatus(status)
		out = append(out, Summarize(s))
	}
	return out, rows.Err()
}

func filterClause(tenantID uuid.UUID, filter PeriodFilter) (string, []any) {
	clauses := []string{"p.tenant_id = $1"}
	args := []any{tenantID}
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if filter.Status != "" {
		add("p.status = $%d", string(filter.Status))
	}
	if filter.StartFrom != nil {
		add("p.start_date >= $%d", *filter.StartFrom)
	}
	if filter.StartTo != nil {
		add("p.start_date <= $%d", *filter.StartTo)
	}
	if filter.EndFrom != nil {
		add("p.end_date >= $%d", *filter.EndFrom)
	}
	if filter.EndTo != nil {
		add("p.end_date <= $%d", *filter.EndTo)
	}
	return strings.Join(clauses, " AND "), args
}
