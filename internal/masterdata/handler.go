package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Handler lists reference data for pickers.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler constructs a master data handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind := Kind(chi.URLParam(r, "kind"))
	if _, ok := tables[kind]; !ok {
		httpx.RespondError(w, shared.Validationf("unknown reference kind %q", kind))
		return
	}
	refs, err := h.repo.List(r.Context(), actor.TenantID, kind)
	if err != nil {
		h.logger.Error("list master data", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if refs == nil {
		refs = []Reference{}
	}
	httpx.JSON(w, http.StatusOK, refs)
}
