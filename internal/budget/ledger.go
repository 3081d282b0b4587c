package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Posting describes a movement to append against a budget line.
type Posting struct {
	TenantID    uuid.UUID
	LineID      uuid.UUID
	OrderID     *uuid.UUID
	Type        MovementType
	Amount      decimal.Decimal
	Description string
	ActorID     int64
	Force       bool
}

// Post appends a movement and adjusts spent while holding the line lock.
// Expense and NegativeAdjustment consume funds and are checked against
// available unless forced. PositiveAdjustment releases previously spent funds.
// The movement is marked forced only when the override actually bypassed the check.
func Post(ctx context.Context, tx TxRepository, p Posting) (Movement, error) {
	if !p.Type.valid() {
		return Movement{}, shared.Validationf("unknown movement type %q", p.Type)
	}
	if !p.Amount.IsPositive() {
		return Movement{}, shared.Validationf("movement amount must be positive")
	}
	if err := shared.CheckAmount("movement amount", p.Amount); err != nil {
		return Movement{}, err
	}
	line, status, err := tx.LockLine(ctx, p.TenantID, p.LineID)
	if err != nil {
		return Movement{}, err
	}
	if status != PeriodActive {
		return Movement{}, fmt.Errorf("%w (status %s)", ErrPeriodNotActive, status)
	}

	amount := p.Amount.Round(2)
	delta := amount
	forced := false
	switch p.Type {
	case MovementExpense, MovementNegativeAdjustment:
		if available := line.Available(); available.LessThan(amount) {
			if !p.Force {
				return Movement{}, &shared.InsufficientBudgetError{LineID: line.ID, Available: available, Required: amount}
			}
			forced = true
		}
	case MovementPositiveAdjustment:
		if line.Spent.LessThan(amount) {
			return Movement{}, shared.Validationf("cannot release %s, only %s spent", amount.StringFixed(2), line.Spent.StringFixed(2))
		}
		delta = amount.Neg()
	}
	if err := shared.CheckAmount("spent amount", line.Spent.Add(delta)); err != nil {
		return Movement{}, err
	}

	movement, err := tx.InsertMovement(ctx, Movement{
		LineID:      line.ID,
		OrderID:     p.OrderID,
		Type:        p.Type,
		Amount:      amount,
		Description: p.Description,
		Forced:      forced,
		ActorID:     p.ActorID,
	})
	if err != nil {
		return Movement{}, fmt.Errorf("budget: insert movement: %w", err)
	}
	if err := tx.AddSpent(ctx, line.ID, delta); err != nil {
		return Movement{}, fmt.Errorf("budget: update spent: %w", err)
	}
	return movement, nil
}

// PostExpense appends an Expense movement inside the caller's transaction.
func PostExpense(ctx context.Context, tx TxRepository, p Posting) (Movement, error) {
	p.Type = MovementExpense
	return Post(ctx, tx, p)
}
