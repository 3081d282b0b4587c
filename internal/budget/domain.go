package budget

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// PeriodStatus tracks the budget period lifecycle.
type PeriodStatus string

const (
	PeriodPlanning PeriodStatus = "PLANNING"
	PeriodActive   PeriodStatus = "ACTIVE"
	PeriodClosed   PeriodStatus = "CLOSED"
)

// MovementType classifies ledger movements.
type MovementType string

const (
	MovementExpense            MovementType = "EXPENSE"
	MovementPositiveAdjustment MovementType = "POSITIVE_ADJUSTMENT"
	MovementNegativeAdjustment MovementType = "NEGATIVE_ADJUSTMENT"
)

var (
	// ErrPeriodNotActive indicates spends against a period that is not Active.
	ErrPeriodNotActive = fmt.Errorf("%w: budget period is not active", shared.ErrConflict)
	// ErrPeriodClosed indicates line edits against a Closed period.
	ErrPeriodClosed = fmt.Errorf("%w: budget period is closed", shared.ErrConflict)
	// ErrInvalidTransition indicates a status change outside the allowed edges.
	ErrInvalidTransition = fmt.Errorf("%w: budget period transition not allowed", shared.ErrConflict)
	// ErrDuplicatePeriod indicates a period name already used in the tenant.
	ErrDuplicatePeriod = fmt.Errorf("%w: budget period name already exists", shared.ErrConflict)
	// ErrDuplicateLine indicates a line already exists for the department and name.
	ErrDuplicateLine = fmt.Errorf("%w: budget line already exists for department", shared.ErrConflict)
	// ErrLineHasMovements blocks deleting lines that carry ledger history.
	ErrLineHasMovements = fmt.Errorf("%w: budget line has ledger movements", shared.ErrConflict)
	// ErrPeriodNotFound indicates the period is absent from the caller's tenant.
	ErrPeriodNotFound = fmt.Errorf("%w: budget period", shared.ErrNotFound)
	// ErrLineNotFound indicates the line is absent from the caller's tenant.
	ErrLineNotFound = fmt.Errorf("%w: budget line", shared.ErrNotFound)
)

// Period is a bounded budgeting window owned by a tenant.
type Period struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Line is a department allocation inside a period.
type Line struct {
	ID           uuid.UUID
	PeriodID     uuid.UUID
	DepartmentID uuid.UUID
	Name         string
	Code         string
	Assigned     decimal.Decimal
	Spent        decimal.Decimal
}

// Available returns assigned minus spent. It may be negative after a forced spend.
func (l Line) Available() decimal.Decimal {
	return l.Assigned.Sub(l.Spent)
}

// Movement is an append-only posting against a line.
type Movement struct {
	ID          int64
	LineID      uuid.UUID
	OrderID     *uuid.UUID
	Type        MovementType
	Amount      decimal.Decimal
	Description string
	Forced      bool
	ActorID     int64
	RecordedAt  time.Time
}

// PeriodWithLines bundles a period and its lines for reads.
type PeriodWithLines struct {
	Period
	Lines []Line
}

// PeriodSummary is one row of the budget execution report.
type PeriodSummary struct {
	Period
	Spent    decimal.Decimal
	Variance decimal.Decimal
}

// PeriodFilter narrows period listings and the report.
type PeriodFilter struct {
	Status    PeriodStatus
	StartFrom *time.Time
	StartTo   *time.Time
	EndFrom   *time.Time
	EndTo     *time.Time
}

// ExpiredPeriod identifies a closure candidate across tenants.
type ExpiredPeriod struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	EndDate  time.Time
}

// CloseResult reports the outcome of an auto-close sweep.
type CloseResult struct {
	Closed []uuid.UUID
	Failed map[uuid.UUID]error
}

// ValidateTransition enforces Planning->Active and Active->Closed.
func ValidateTransition(current, target PeriodStatus) error {
	switch {
	case current == PeriodPlanning && target == PeriodActive:
		return nil
	case current == PeriodActive && target == PeriodClosed:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

func (s PeriodStatus) valid() bool {
	switch s {
	case PeriodPlanning, PeriodActive, PeriodClosed:
		return true
	}
	return false
}

func (t MovementType) valid() bool {
	switch t {
	case MovementExpense, MovementPositiveAdjustment, MovementNegativeAdjustment:
		return true
	}
	return false
}
