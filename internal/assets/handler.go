package assets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type assetService interface {
	Get(ctx context.Context, actor shared.Actor, assetID uuid.UUID) (Asset, error)
	List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Asset, error)
}

// Handler exposes the asset register as JSON.
type Handler struct {
	logger  *slog.Logger
	service assetService
}

// NewHandler constructs an asset HTTP handler.
func NewHandler(logger *slog.Logger, service assetService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets", h.list)
	r.Get("/assets/{id}", h.get)
}

// Response is the JSON view of an asset.
type Response struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	InternalCode    string          `json:"internal_code"`
	AcquisitionDate string          `json:"acquisition_date"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	UsefulLife      int             `json:"useful_life"`
	CategoryID      uuid.UUID       `json:"category_id"`
	StatusID        uuid.UUID       `json:"status_id"`
	LocationID      uuid.UUID       `json:"location_id"`
	DepartmentID    uuid.UUID       `json:"department_id"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id,omitempty"`
}

// ToResponse converts an asset to its JSON view.
func ToResponse(a Asset) Response {
	return Response{
		ID:              a.ID,
		Name:            a.Name,
		InternalCode:    a.InternalCode,
		AcquisitionDate: a.AcquisitionDate.Format(httpx.DateLayout),
		CurrentValue:    a.CurrentValue,
		UsefulLife:      a.UsefulLife,
		CategoryID:      a.CategoryID,
		StatusID:        a.StatusID,
		LocationID:      a.LocationID,
		DepartmentID:    a.DepartmentID,
		SupplierID:      a.SupplierID,
		PurchaseOrderID: a.PurchaseOrderID,
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asset, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(asset))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var filter ListFilter
	refs := []struct {
		key    string
		target **uuid.UUID
	}{
		{"status_id", &filter.StatusID},
		{"category_id", &filter.CategoryID},
		{"department_id", &filter.DepartmentID},
		{"location_id", &filter.LocationID},
	}
	for _, ref := range refs {
		id, err := httpx.ParseOptionalUUID(ref.key, q.Get(ref.key))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		*ref.target = id
	}
	list, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.logger.Debug("list assets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]Response, 0, len(list))
	for _, a := range list {
		out = append(out, ToResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}
