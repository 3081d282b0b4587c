package valuation

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type valuationService interface {
	AdjustValue(ctx context.Context, actor shared.Actor, assetID uuid.UUID, op Operation, params Params) (Record, error)
	History(ctx context.Context, actor shared.Actor, assetID uuid.UUID) ([]Record, error)
}

// Handler exposes valuation endpoints under /assets/{id}.
type Handler struct {
	logger  *slog.Logger
	service valuationService
}

// NewHandler constructs the valuation HTTP handler.
func NewHandler(logger *slog.Logger, service valuationService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets/{id}/valuation", h.history)
	r.Post("/assets/{id}/revaluations", h.revalue)
	r.Post("/assets/{id}/depreciations", h.depreciate)
	r.Post("/assets/{id}/disposal", h.dispose)
}

type revaluePayload struct {
	Method string `json:"method" validate:"required,oneof=FACTOR FIXED PERCENTAGE"`
	Value  string `json:"value" validate:"required"`
	Notes  string `json:"notes"`
}

type depreciatePayload struct {
	Method        string `json:"method" validate:"required,oneof=MANUAL STRAIGHT_LINE DECLINING_BALANCE UNITS_OF_PRODUCTION"`
	Amount        string `json:"amount"`
	Residual      string `json:"residual_value"`
	Rate          string `json:"rate"`
	TotalUnits    string `json:"total_units"`
	UnitsProduced string `json:"units_produced"`
	Notes         string `json:"notes"`
}

type disposePayload struct {
	Type      string `json:"type" validate:"required,oneof=SALE WRITE_OFF DONATION LOSS OTHER"`
	SaleValue string `json:"sale_value"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

type recordResponse struct {
	ID                 int64              `json:"id"`
	AssetID            uuid.UUID          `json:"asset_id"`
	Operation          Operation          `json:"operation"`
	ValueBefore        decimal.Decimal    `json:"value_before"`
	ValueAfter         decimal.Decimal    `json:"value_after"`
	Factor             *decimal.Decimal   `json:"factor,omitempty"`
	RevalueMethod      RevalueMethod      `json:"revalue_method,omitempty"`
	DepreciationMethod DepreciationMethod `json:"depreciation_method,omitempty"`
	Amount             *decimal.Decimal   `json:"amount,omitempty"`
	DisposalType       DisposalType       `json:"disposal_type,omitempty"`
	SaleValue          *decimal.Decimal   `json:"sale_value,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	ActorID            int64              `json:"actor_id"`
	RecordedAt         time.Time          `json:"recorded_at"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	records, err := h.service.History(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) revalue(w http.ResponseWriter, r *http.Request) {
	var req revaluePayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	value, _, err := httpx.ParseDecimal("value", req.Value)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.adjust(w, r, OperationRevalue, Params{
		Revalue: RevalueParams{Method: RevalueMethod(req.Method), Value: value},
		Notes:   req.Notes,
	})
}

func (h *Handler) depreciate(w http.ResponseWriter, r *http.Request) {
	var req depreciatePayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p := DepreciateParams{Method: DepreciationMethod(req.Method)}
	fields := []struct {
		name   string
		raw    string
		target *decimal.Decimal
	}{
		{"amount", req.Amount, &p.Amount},
		{"residual_value", req.Residual, &p.Residual},
		{"rate", req.Rate, &p.Rate},
		{"total_units", req.TotalUnits, &p.TotalUnits},
		{"units_produced", req.UnitsProduced, &p.UnitsProduced},
	}
	for _, f := range fields {
		v, _, err := httpx.ParseDecimal(f.name, f.raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		*f.target = v
	}
	h.adjust(w, r, OperationDepreciate, Params{Depreciate: p, Notes: req.Notes})
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	var req disposePayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p := DisposeParams{Type: DisposalType(req.Type), Reason: req.Reason}
	sale, ok, err := httpx.ParseDecimal("sale_value", req.SaleValue)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if ok {
		p.SaleValue = &sale
	}
	h.adjust(w, r, OperationDispose, Params{Dispose: p, Notes: req.Notes})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, op Operation, params Params) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.AdjustValue(r.Context(), actor, id, op, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Debug("valuation request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorAndID(r *http.Request) (shared.Actor, uuid.UUID, error) {
	actor, err := httpx.Actor(r)
	if err != nil {
		return shared.Actor{}, uuid.Nil, err
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		return shared.Actor{}, uuid.Nil, err
	}
	return actor, id, nil
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:                 rec.ID,
		AssetID:            rec.AssetID,
		Operation:          rec.Operation,
		ValueBefore:        rec.ValueBefore,
		ValueAfter:         rec.ValueAfter,
		Factor:             rec.Factor,
		RevalueMethod:      rec.RevalueMethod,
		DepreciationMethod: rec.DepreciationMethod,
		Amount:             rec.Amount,
		DisposalType:       rec.DisposalType,
		SaleValue:          rec.SaleValue,
		Reason:             rec.Reason,
		Notes:              rec.Notes,
		ActorID:            rec.ActorID,
		RecordedAt:         rec.RecordedAt,
	}
}
