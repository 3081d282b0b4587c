package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the resource does not exist within the caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an illegal state transition or duplicate key.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientBudget indicates a budget line cannot cover a spend.
	ErrInsufficientBudget = errors.New("insufficient budget")
	// ErrPermissionDenied indicates the actor lacks the required action.
	ErrPermissionDenied = errors.New("permission denied")
)

// InsufficientBudgetError carries the amounts a caller needs to act on a rejected spend.
type InsufficientBudgetError struct {
	LineID    uuid.UUID
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget on line %s: available %s, required %s",
		e.LineID, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

// Is lets errors.Is match ErrInsufficientBudget.
func (e *InsufficientBudgetError) Is(target error) bool {
	return target == ErrInsufficientBudget
}

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a formatted detail.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
