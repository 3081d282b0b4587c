package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks struct tags on a decoded request body.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid %s", shared.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

// DecodeAndValidate decodes the JSON body and validates it.
func DecodeAndValidate(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	return Validate(target)
}

// Actor returns the caller resolved by the actor middleware.
func Actor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		return shared.Actor{}, ErrUnauthorized
	}
	return actor, nil
}

// UUIDParam parses a chi URL parameter as a UUID. Malformed identifiers
// cannot name an existing entity and are reported as not found.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", shared.ErrNotFound, name)
	}
	return id, nil
}

// ParseDate parses an optional date value.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", shared.ErrValidation, value)
	}
	return &t, nil
}

// ParseDecimal parses a numeric string. Empty input yields zero and false.
func ParseDecimal(field, value string) (decimal.Decimal, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %s is not a number", shared.ErrValidation, field)
	}
	return d, true, nil
}

// ParseOptionalUUID parses an optional reference identifier.
func ParseOptionalUUID(field, value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid id", shared.ErrValidation, field)
	}
	return &id, nil
}
