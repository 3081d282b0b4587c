package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/masterdata"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPeriod(ctx context.Context, tenantID, id uuid.UUID) (Period, error)
	ListPeriods(ctx context.Context, tenantID uuid.UUID, filter PeriodFilter) ([]Period, error)
	ListLines(ctx context.Context, tenantID, periodID uuid.UUID) ([]Line, error)
	GetLine(ctx context.Context, tenantID, lineID uuid.UUID) (Line, error)
	ListMovements(ctx context.Context, tenantID, lineID uuid.UUID) ([]Movement, error)
	ListExpiredPeriods(ctx context.Context, today time.Time) ([]ExpiredPeriod, error)
	ReportSummaries(ctx context.Context, tenantID uuid.UUID, filter PeriodFilter) ([]PeriodSummary, error)
}

// PostingObserver receives committed ledger postings.
type PostingObserver interface {
	ObserveLedgerPosting(movementType string, forced bool)
}

// ReportRenderer turns report rows into a downloadable document.
type ReportRenderer interface {
	RenderBudgetReport(ctx context.Context, rows []PeriodSummary) ([]byte, error)
}

// Service implements the budget period manager and the ledger store operations.
type Service struct {
	repo     RepositoryPort
	refs     masterdata.Lookup
	authz    shared.Authorizer
	audit    shared.AuditPort
	metrics  PostingObserver
	renderer ReportRenderer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the budget service.
func NewService(repo RepositoryPort, refs masterdata.Lookup, authz shared.Authorizer, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, refs: refs, authz: authz, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches a posting observer.
func (s *Service) WithMetrics(m PostingObserver) {
	s.metrics = m
}

// WithRenderer attaches the report renderer.
func (s *Service) WithRenderer(r ReportRenderer) {
	s.renderer = r
}

// CreatePeriodInput describes a new budget period.
type CreatePeriodInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
}

// LineInput describes a budget line create or update.
type LineInput struct {
	DepartmentID uuid.UUID
	Name         string
	Code         string
	Assigned     decimal.Decimal
}

// AdjustmentInput describes a manual ledger adjustment.
type AdjustmentInput struct {
	Type        MovementType
	Amount      decimal.Decimal
	Description string
	Force       bool
}

// CreatePeriod opens a new period in Planning (or Active when requested) with a zero total.
func (s *Service) CreatePeriod(ctx context.Context, actor shared.Actor, input CreatePeriodInput) (Period, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return Period{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Period{}, shared.Validationf("period name required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return Period{}, shared.Validationf("period start and end dates required")
	}
	start, end := dateOnly(input.StartDate), dateOnly(input.EndDate)
	if end.Before(start) {
		return Period{}, shared.Validationf("period end date precedes start date")
	}
	status := input.Status
	if status == "" {
		status = PeriodPlanning
	}
	if status != PeriodPlanning && status != PeriodActive {
		return Period{}, shared.Validationf("period must start as %s or %s", PeriodPlanning, PeriodActive)
	}

	period := Period{
		ID:        uuid.New(),
		TenantID:  actor.TenantID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Status:    status,
		Total:     decimal.Zero,
		CreatedAt: s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertPeriod(ctx, period)
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor, "BUDGET_PERIOD_CREATE", period.ID, map[string]any{"name": period.Name, "status": period.Status})
	return period, nil
}

// SetPeriodStatus applies a manual lifecycle transition.
func (s *Service) SetPeriodStatus(ctx context.Context, actor shared.Actor, periodID uuid.UUID, status PeriodStatus) (Period, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return Period{}, err
	}
	if !status.valid() {
		return Period{}, shared.Validationf("unknown period status %q", status)
	}
	var updated Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.LockPeriod(ctx, actor.TenantID, periodID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(period.Status, status); err != nil {
			return err
		}
		if err := tx.UpdatePeriodStatus(ctx, period.ID, status); err != nil {
			return err
		}
		period.Status = status
		updated = period
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor, "BUDGET_PERIOD_STATUS", periodID, map[string]any{"status": status})
	return updated, nil
}

// CreateLine adds a line to a non-closed period and recomputes the period total.
func (s *Service) CreateLine(ctx context.Context, actor shared.Actor, periodID uuid.UUID, input LineInput) (Line, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return Line{}, err
	}
	line, err := s.validateLine(ctx, actor, input)
	if err != nil {
		return Line{}, err
	}
	line.ID = uuid.New()
	line.PeriodID = periodID
	line.Spent = decimal.Zero
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.LockPeriod(ctx, actor.TenantID, periodID)
		if err != nil {
			return err
		}
		if period.Status == PeriodClosed {
			return ErrPeriodClosed
		}
		if err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
		_, err = tx.RecalculateTotal(ctx, periodID)
		return err
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "BUDGET_LINE_CREATE", line.ID, map[string]any{"period_id": periodID, "assigned": line.Assigned.String()})
	return line, nil
}

// UpdateLine edits a line's identity and assignment. Spent is never touched here.
func (s *Service) UpdateLine(ctx context.Context, actor shared.Actor, lineID uuid.UUID, input LineInput) (Line, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return Line{}, err
	}
	changes, err := s.validateLine(ctx, actor, input)
	if err != nil {
		return Line{}, err
	}
	var updated Line
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockLineForEdit(ctx, actor.TenantID, lineID)
		if err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, actor.TenantID, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status == PeriodClosed {
			return ErrPeriodClosed
		}
		current.DepartmentID = changes.DepartmentID
		current.Name = changes.Name
		current.Code = changes.Code
		current.Assigned = changes.Assigned
		if err := tx.UpdateLine(ctx, current); err != nil {
			return err
		}
		if _, err := tx.RecalculateTotal(ctx, current.PeriodID); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "BUDGET_LINE_UPDATE", lineID, map[string]any{"assigned": updated.Assigned.String()})
	return updated, nil
}

// DeleteLine removes a line without ledger history and recomputes the period total.
func (s *Service) DeleteLine(ctx context.Context, actor shared.Actor, lineID uuid.UUID) error {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.LockLineForEdit(ctx, actor.TenantID, lineID)
		if err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, actor.TenantID, line.PeriodID)
		if err != nil {
			return err
		}
		if period.Status == PeriodClosed {
			return ErrPeriodClosed
		}
		hasMovements, err := tx.LineHasMovements(ctx, lineID)
		if err != nil {
			return err
		}
		if hasMovements {
			return ErrLineHasMovements
		}
		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}
		_, err = tx.RecalculateTotal(ctx, line.PeriodID)
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "BUDGET_LINE_DELETE", lineID, nil)
	return nil
}

// PostAdjustment appends a manual positive or negative adjustment to a line.
func (s *Service) PostAdjustment(ctx context.Context, actor shared.Actor, lineID uuid.UUID, input AdjustmentInput) (Movement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageBudget); err != nil {
		return Movement{}, err
	}
	if input.Force {
		if err := shared.Authorize(ctx, s.authz, actor, shared.ActionForceOverspend); err != nil {
			return Movement{}, err
		}
	}
	if input.Type != MovementPositiveAdjustment && input.Type != MovementNegativeAdjustment {
		return Movement{}, shared.Validationf("adjustment type must be %s or %s", MovementPositiveAdjustment, MovementNegativeAdjustment)
	}
	if !input.Amount.IsPositive() {
		return Movement{}, shared.Validationf("adjustment amount must be positive")
	}
	if err := shared.CheckAmount("adjustment amount", input.Amount); err != nil {
		return Movement{}, err
	}
	if strings.TrimSpace(input.Description) == "" {
		return Movement{}, shared.Validationf("adjustment description required")
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := Post(ctx, tx, Posting{
			TenantID:    actor.TenantID,
			LineID:      lineID,
			Type:        input.Type,
			Amount:      input.Amount,
			Description: strings.TrimSpace(input.Description),
			ActorID:     actor.UserID,
			Force:       input.Force,
		})
		movement = m
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveLedgerPosting(string(movement.Type), movement.Forced)
	}
	s.recordAudit(ctx, actor, "BUDGET_ADJUSTMENT", lineID, map[string]any{
		"type": movement.Type, "amount": movement.Amount.String(), "forced": movement.Forced,
	})
	return movement, nil
}

// CloseExpiredPeriods closes every Active period whose end date is before
// today. Each closure runs in its own transaction; failures are collected
// and do not stop the sweep.
func (s *Service) CloseExpiredPeriods(ctx context.Context, today time.Time) (CloseResult, error) {
	if today.IsZero() {
		today = s.now()
	}
	today = dateOnly(today)
	candidates, err := s.repo.ListExpiredPeriods(ctx, today)
	if err != nil {
		return CloseResult{}, fmt.Errorf("budget: list expired periods: %w", err)
	}
	result := CloseResult{Failed: map[uuid.UUID]error{}}
	for _, candidate := range candidates {
		var closed bool
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			closed, err = tx.ClosePeriodIfExpired(ctx, candidate.ID, today)
			return err
		})
		if err != nil {
			s.logger.Error("budget period auto-close failed",
				slog.String("tenant_id", candidate.TenantID.String()),
				slog.String("period_id", candidate.ID.String()),
				slog.Any("error", err))
			result.Failed[candidate.ID] = err
			continue
		}
		if !closed {
			continue
		}
		s.logger.Info("budget period auto-closed",
			slog.String("tenant_id", candidate.TenantID.String()),
			slog.String("period_id", candidate.ID.String()),
			slog.String("name", candidate.Name),
			slog.Time("end_date", candidate.EndDate))
		result.Closed = append(result.Closed, candidate.ID)
	}
	return result, nil
}

// GetPeriod returns a period with its lines.
func (s *Service) GetPeriod(ctx context.Context, actor shared.Actor, periodID uuid.UUID) (PeriodWithLines, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewBudget); err != nil {
		return PeriodWithLines{}, err
	}
	period, err := s.repo.GetPeriod(ctx, actor.TenantID, periodID)
	if err != nil {
		return PeriodWithLines{}, err
	}
	lines, err := s.repo.ListLines(ctx, actor.TenantID, periodID)
	if err != nil {
		return PeriodWithLines{}, err
	}
	return PeriodWithLines{Period: period, Lines: lines}, nil
}

// ListPeriods returns the tenant's periods.
func (s *Service) ListPeriods(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]Period, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewBudget); err != nil {
		return nil, err
	}
	return s.repo.ListPeriods(ctx, actor.TenantID, filter)
}

// ListMovements returns a line's ledger, newest first.
func (s *Service) ListMovements(ctx context.Context, actor shared.Actor, lineID uuid.UUID) ([]Movement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewBudget); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetLine(ctx, actor.TenantID, lineID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, actor.TenantID, lineID)
}

func (s *Service) validateLine(ctx context.Context, actor shared.Actor, input LineInput) (Line, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Line{}, shared.Validationf("line name required")
	}
	if input.DepartmentID == uuid.Nil {
		return Line{}, shared.Validationf("line department required")
	}
	if input.Assigned.IsNegative() {
		return Line{}, shared.Validationf("assigned amount must not be negative")
	}
	if err := shared.CheckAmount("assigned amount", input.Assigned); err != nil {
		return Line{}, err
	}
	if s.refs != nil {
		ok, err := s.refs.Exists(ctx, actor.TenantID, masterdata.KindDepartment, input.DepartmentID)
		if err != nil {
			return Line{}, err
		}
		if !ok {
			return Line{}, shared.Validationf("department %s not found", input.DepartmentID)
		}
	}
	return Line{
		DepartmentID: input.DepartmentID,
		Name:         name,
		Code:         strings.TrimSpace(input.Code),
		Assigned:     input.Assigned.Round(2),
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "budget",
		EntityID: entityID.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("budget audit", slog.String("action", action), slog.Any("error", err))
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
