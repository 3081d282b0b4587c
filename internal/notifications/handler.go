package notifications

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Handler serves the caller's inbox. Every actor may read their own messages.
type Handler struct {
	logger *slog.Logger
	store  Store
	now    func() time.Time
}

// NewHandler constructs an inbox handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, now: time.Now}
}

// MountRoutes registers inbox routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
	})
}

type notificationResponse struct {
	ID        int64      `json:"id"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
	Link      string     `json:"link,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{UnreadOnly: r.URL.Query().Get("unread") == "true"}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.RespondError(w, shared.Validationf("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	items, err := h.store.List(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "list notifications", err)
		return
	}
	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID: n.ID, Level: string(n.Level), Message: n.Message, Link: n.Link,
			Read: n.Read(), ReadAt: n.ReadAt, CreatedAt: n.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	count, err := h.store.UnreadCount(r.Context(), actor)
	if err != nil {
		h.fail(w, "count unread notifications", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validationf("invalid notification id"))
		return
	}
	if err := h.store.MarkRead(r.Context(), actor, id, h.now().UTC()); err != nil {
		h.fail(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	count, err := h.store.MarkAllRead(r.Context(), actor, h.now().UTC())
	if err != nil {
		h.fail(w, "mark all notifications read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"marked": count})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Debug(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
