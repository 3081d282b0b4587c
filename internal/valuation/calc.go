package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// CheckRevalue validates revaluation parameters that do not depend on the asset.
func CheckRevalue(p RevalueParams) error {
	switch p.Method {
	case RevalueFactor:
		if p.Value.IsNegative() {
			return shared.Validationf("revaluation factor must not be negative")
		}
		return shared.CheckFactor("revaluation factor", p.Value)
	case RevalueFixed:
		if p.Value.IsNegative() {
			return shared.Validationf("revaluation amount must not be negative")
		}
		return shared.CheckAmount("revaluation amount", p.Value)
	case RevaluePercentage:
		if p.Value.LessThanOrEqual(hundred.Neg()) {
			return shared.Validationf("revaluation percentage must be greater than -100")
		}
		return shared.CheckFactor("revaluation percentage", p.Value)
	default:
		return shared.Validationf("unknown revaluation method %q", p.Method)
	}
}

// Revalue computes the new value and the applied factor for current.
// Amounts are rounded to cents and factors to six places.
func Revalue(current decimal.Decimal, p RevalueParams) (decimal.Decimal, decimal.Decimal, error) {
	if err := CheckRevalue(p); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if p.Method == RevalueFixed {
		newValue := p.Value.Round(2)
		if current.IsZero() {
			return newValue, decimal.Zero, nil
		}
		factor := newValue.Div(current).Round(6)
		if err := shared.CheckFactor("revaluation factor", factor); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return newValue, factor, nil
	}
	if current.IsZero() {
		return decimal.Zero, decimal.Zero, ErrZeroValue
	}
	factor := p.Value
	if p.Method == RevaluePercentage {
		factor = one.Add(p.Value.Div(hundred))
	}
	factor = factor.Round(6)
	if err := shared.CheckFactor("revaluation factor", factor); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	newValue := current.Mul(factor).Round(2)
	if err := shared.CheckAmount("revalued value", newValue); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return newValue, factor, nil
}

// CheckDepreciate validates depreciation parameters that do not depend on the asset.
func CheckDepreciate(p DepreciateParams) error {
	switch p.Method {
	case DepreciationManual:
		if !p.Amount.IsPositive() {
			return shared.Validationf("depreciation amount must be positive")
		}
		return shared.CheckAmount("depreciation amount", p.Amount)
	case DepreciationStraightLine:
		if p.Residual.IsNegative() {
			return shared.Validationf("residual value must not be negative")
		}
		return shared.CheckAmount("residual value", p.Residual)
	case DepreciationDecliningBalance:
		if !p.Rate.IsPositive() || p.Rate.GreaterThan(one) {
			return shared.Validationf("depreciation rate must be within (0, 1]")
		}
	case DepreciationUnitsOfProduction:
		if !p.TotalUnits.IsPositive() || !p.UnitsProduced.IsPositive() {
			return shared.Validationf("produced and total estimated units must be positive")
		}
		if p.Residual.IsNegative() {
			return shared.Validationf("residual value must not be negative")
		}
		return shared.CheckAmount("residual value", p.Residual)
	default:
		return shared.Validationf("unknown depreciation method %q", p.Method)
	}
	return nil
}

// DepreciationAmount computes the amount to deduct from current. The result
// is positive and never exceeds current.
func DepreciationAmount(current decimal.Decimal, usefulLife int, p DepreciateParams) (decimal.Decimal, error) {
	if err := CheckDepreciate(p); err != nil {
		return decimal.Zero, err
	}
	var amount decimal.Decimal
	switch p.Method {
	case DepreciationManual:
		amount = p.Amount
	case DepreciationStraightLine:
		if usefulLife <= 0 {
			return decimal.Zero, shared.Validationf("useful life must be positive for straight line depreciation")
		}
		amount = depreciableBase(current, p.Residual).Div(decimal.NewFromInt(int64(usefulLife)))
	case DepreciationDecliningBalance:
		amount = current.Mul(p.Rate)
	case DepreciationUnitsOfProduction:
		amount = depreciableBase(current, p.Residual).Div(p.TotalUnits).Mul(p.UnitsProduced)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, shared.Validationf("depreciation amount must be positive")
	}
	if amount.GreaterThan(current) {
		return decimal.Zero, shared.Validationf("depreciation amount %s exceeds current value %s", amount.StringFixed(2), current.StringFixed(2))
	}
	return amount, nil
}

// CheckDispose validates disposal parameters.
func CheckDispose(p DisposeParams) error {
	if !p.Type.valid() {
		return shared.Validationf("unknown disposal type %q", p.Type)
	}
	if p.SaleValue == nil {
		return nil
	}
	if p.SaleValue.IsNegative() {
		return shared.Validationf("sale value must not be negative")
	}
	return shared.CheckAmount("sale value", *p.SaleValue)
}

func depreciableBase(current, residual decimal.Decimal) decimal.Decimal {
	base := current.Sub(residual)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}
