package valuation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	AssetExists(ctx context.Context, tenantID, assetID uuid.UUID) (bool, error)
	ListRecords(ctx context.Context, tenantID, assetID uuid.UUID) ([]Record, error)
}

// AdjustmentObserver receives committed value adjustments.
type AdjustmentObserver interface {
	ObserveValueAdjustment(operation string)
}

// Service applies revaluations, depreciation and disposals.
type Service struct {
	repo    RepositoryPort
	authz   shared.Authorizer
	audit   shared.AuditPort
	metrics AdjustmentObserver
	logger  *slog.Logger
}

// NewService constructs the valuation service.
func NewService(repo RepositoryPort, authz shared.Authorizer, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, audit: audit, logger: logger}
}

// WithMetrics attaches an adjustment observer.
func (s *Service) WithMetrics(m AdjustmentObserver) {
	s.metrics = m
}

// AdjustValue locks the asset, computes the new value and stores it together
// with exactly one history record.
func (s *Service) AdjustValue(ctx context.Context, actor shared.Actor, assetID uuid.UUID, op Operation, params Params) (Record, error) {
	action, ok := op.action()
	if !ok {
		return Record{}, shared.Validationf("unknown value adjustment %q", op)
	}
	if err := shared.Authorize(ctx, s.authz, actor, action); err != nil {
		return Record{}, err
	}
	if err := checkParams(op, params); err != nil {
		return Record{}, err
	}

	var rec Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.Assets().LockAsset(ctx, actor.TenantID, assetID)
		if err != nil {
			return err
		}
		disposed, err := tx.AssetDisposed(ctx, asset.ID)
		if err != nil {
			return err
		}
		if disposed {
			return ErrAssetDisposed
		}

		draft := Record{
			TenantID:    actor.TenantID,
			AssetID:     asset.ID,
			Operation:   op,
			ValueBefore: asset.CurrentValue,
			Notes:       strings.TrimSpace(params.Notes),
			ActorID:     actor.UserID,
		}
		switch op {
		case OperationRevalue:
			newValue, factor, err := Revalue(asset.CurrentValue, params.Revalue)
			if err != nil {
				return err
			}
			draft.ValueAfter = newValue
			draft.Factor = &factor
			draft.RevalueMethod = params.Revalue.Method
		case OperationDepreciate:
			amount, err := DepreciationAmount(asset.CurrentValue, asset.UsefulLife, params.Depreciate)
			if err != nil {
				return err
			}
			draft.ValueAfter = asset.CurrentValue.Sub(amount)
			draft.Amount = &amount
			draft.DepreciationMethod = params.Depreciate.Method
		case OperationDispose:
			statusID, err := tx.Assets().EnsureStatus(ctx, actor.TenantID, assets.WrittenOffStatusName, assets.WrittenOffStatusDetail)
			if err != nil {
				return err
			}
			if err := tx.Assets().UpdateAssetStatus(ctx, asset.ID, statusID); err != nil {
				return err
			}
			draft.ValueAfter = decimal.Zero
			draft.DisposalType = params.Dispose.Type
			draft.Reason = strings.TrimSpace(params.Dispose.Reason)
			if params.Dispose.SaleValue != nil {
				sale := params.Dispose.SaleValue.Round(2)
				draft.SaleValue = &sale
			}
		}

		if err := tx.Assets().UpdateAssetValue(ctx, asset.ID, draft.ValueAfter); err != nil {
			return err
		}
		rec, err = tx.InsertRecord(ctx, draft)
		return err
	})
	if err != nil {
		return Record{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveValueAdjustment(string(op))
	}
	s.recordAudit(ctx, actor, rec)
	return rec, nil
}

// History returns the asset's valuation records, newest first.
func (s *Service) History(ctx context.Context, actor shared.Actor, assetID uuid.UUID) ([]Record, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewValuation); err != nil {
		return nil, err
	}
	exists, err := s.repo.AssetExists(ctx, actor.TenantID, assetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, assets.ErrAssetNotFound
	}
	return s.repo.ListRecords(ctx, actor.TenantID, assetID)
}

func checkParams(op Operation, params Params) error {
	switch op {
	case OperationRevalue:
		return CheckRevalue(params.Revalue)
	case OperationDepreciate:
		return CheckDepreciate(params.Depreciate)
	case OperationDispose:
		return CheckDispose(params.Dispose)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, rec Record) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   "ASSET_" + string(rec.Operation),
		Entity:   "asset",
		EntityID: rec.AssetID.String(),
		Meta: map[string]any{
			"value_before": rec.ValueBefore.String(),
			"value_after":  rec.ValueAfter.String(),
			"record_id":    rec.ID,
		},
	}); err != nil {
		s.logger.Warn("valuation audit", slog.String("asset_id", rec.AssetID.String()), slog.Any("error", err))
	}
}
