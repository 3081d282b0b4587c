package valuation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Operation selects the value adjustment to apply.
type Operation string

const (
	OperationRevalue    Operation = "REVALUE"
	OperationDepreciate Operation = "DEPRECIATE"
	OperationDispose    Operation = "DISPOSE"
)

// RevalueMethod selects how a revaluation derives the new value.
type RevalueMethod string

const (
	RevalueFactor     RevalueMethod = "FACTOR"
	RevalueFixed      RevalueMethod = "FIXED"
	RevaluePercentage RevalueMethod = "PERCENTAGE"
)

// DepreciationMethod selects how the depreciated amount is computed.
type DepreciationMethod string

const (
	DepreciationManual            DepreciationMethod = "MANUAL"
	DepreciationStraightLine      DepreciationMethod = "STRAIGHT_LINE"
	DepreciationDecliningBalance  DepreciationMethod = "DECLINING_BALANCE"
	DepreciationUnitsOfProduction DepreciationMethod = "UNITS_OF_PRODUCTION"
)

// DisposalType classifies why an asset left the register.
type DisposalType string

const (
	DisposalSale     DisposalType = "SALE"
	DisposalWriteOff DisposalType = "WRITE_OFF"
	DisposalDonation DisposalType = "DONATION"
	DisposalLoss     DisposalType = "LOSS"
	DisposalOther    DisposalType = "OTHER"
)

var (
	// ErrZeroValue rejects proportional revaluation of a zero valued asset.
	ErrZeroValue = fmt.Errorf("%w: asset value is zero, only a fixed revaluation applies", shared.ErrValidation)
	// ErrAssetDisposed indicates an adjustment on an asset that was already disposed.
	ErrAssetDisposed = fmt.Errorf("%w: asset already disposed", shared.ErrConflict)
)

// RevalueParams parameterise a revaluation. Value is the factor, the fixed
// amount or the percentage depending on Method.
type RevalueParams struct {
	Method RevalueMethod
	Value  decimal.Decimal
}

// DepreciateParams parameterise a depreciation run.
type DepreciateParams struct {
	Method        DepreciationMethod
	Amount        decimal.Decimal
	Residual      decimal.Decimal
	Rate          decimal.Decimal
	TotalUnits    decimal.Decimal
	UnitsProduced decimal.Decimal
}

// DisposeParams describe a disposal.
type DisposeParams struct {
	Type      DisposalType
	SaleValue *decimal.Decimal
	Reason    string
}

// Params carries the operation specific parameters; only the block matching
// the requested Operation is read.
type Params struct {
	Revalue    RevalueParams
	Depreciate DepreciateParams
	Dispose    DisposeParams
	Notes      string
}

// Record is one immutable entry of an asset's valuation history.
type Record struct {
	ID                 int64
	TenantID           uuid.UUID
	AssetID            uuid.UUID
	Operation          Operation
	ValueBefore        decimal.Decimal
	ValueAfter         decimal.Decimal
	Factor             *decimal.Decimal
	RevalueMethod      RevalueMethod
	DepreciationMethod DepreciationMethod
	Amount             *decimal.Decimal
	DisposalType       DisposalType
	SaleValue          *decimal.Decimal
	Reason             string
	Notes              string
	ActorID            int64
	RecordedAt         time.Time
}

func (o Operation) action() (shared.Action, bool) {
	switch o {
	case OperationRevalue:
		return shared.ActionRevalue, true
	case OperationDepreciate:
		return shared.ActionDepreciate, true
	case OperationDispose:
		return shared.ActionDispose, true
	}
	return 0, false
}

func (t DisposalType) valid() bool {
	switch t {
	case DisposalSale, DisposalWriteOff, DisposalDonation, DisposalLoss, DisposalOther:
		return true
	}
	return false
}
