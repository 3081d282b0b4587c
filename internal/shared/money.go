package shared

import "github.com/shopspring/decimal"

// Money columns are NUMERIC(18,2) and factor columns NUMERIC(18,6).
var (
	maxAmount = decimal.New(1, 16)
	maxFactor = decimal.New(1, 12)
)

// CheckAmount rejects money values whose magnitude does not fit a money column.
func CheckAmount(field string, v decimal.Decimal) error {
	if v.Abs().GreaterThanOrEqual(maxAmount) {
		return Validationf("%s %s is out of range", field, v.String())
	}
	return nil
}

// CheckFactor rejects ratios whose magnitude does not fit a factor column.
func CheckFactor(field string, v decimal.Decimal) error {
	if v.Abs().GreaterThanOrEqual(maxFactor) {
		return Validationf("%s %s is out of range", field, v.String())
	}
	return nil
}
