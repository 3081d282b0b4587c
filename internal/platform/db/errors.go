package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOverflow     = "22003"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsCheckViolation reports whether err is a CHECK constraint violation.
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation)
}

// IsNumericOverflow reports whether a value did not fit its numeric column.
func IsNumericOverflow(err error) bool {
	return hasCode(err, codeNumericOverflow)
}

// Classify maps data integrity errors raised by PostgreSQL onto
// shared.ErrValidation. Any other error is returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.Validationf("unknown reference (%s)", ConstraintName(err))
	case IsCheckViolation(err):
		return shared.Validationf("value rejected by %s", ConstraintName(err))
	case IsNumericOverflow(err):
		return shared.Validationf("numeric value out of range")
	}
	return err
}

// IsNoRows reports whether err signals an empty result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
