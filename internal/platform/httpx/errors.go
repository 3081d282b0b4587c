// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var budgetErr *shared.InsufficientBudgetError
	switch {
	case errors.As(err, &budgetErr):
		WriteProblem(w, ProblemDetail{
			Title:     "Insufficient Budget",
			Status:    http.StatusUnprocessableEntity,
			Detail:    err.Error(),
			LineID:    budgetErr.LineID.String(),
			Available: budgetErr.Available.StringFixed(2),
			Required:  budgetErr.Required.StringFixed(2),
		})
	case errors.Is(err, shared.ErrInsufficientBudget):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Budget", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// ErrUnauthorized indicates the request carried no resolvable actor.
var ErrUnauthorized = errors.New("unauthorized")
