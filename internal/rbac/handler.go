package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
)

type permissionService interface {
	Catalogue(ctx context.Context) ([]Permission, error)
	EffectivePermissions(ctx context.Context, tenantID uuid.UUID, userID int64) ([]string, error)
}

// Handler exposes the permission catalogue and the caller's own grants.
type Handler struct {
	logger  *slog.Logger
	service permissionService
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service permissionService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Get("/me", h.myPermissions)
	})
}

type permissionResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	if _, err := httpx.Actor(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.Catalogue(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{Name: p.Name, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), actor.TenantID, actor.UserID)
	if err != nil {
		h.logger.Error("effective permissions", slog.String("tenant_id", actor.TenantID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
