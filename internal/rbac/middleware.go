package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// Middleware gates HTTP routes on permissions. Services still authorize
// their own operations; this is for routes without a service behind them.
type Middleware struct {
	Authorizer shared.Authorizer
	Logger     *slog.Logger
}

// RequireAll ensures the current actor holds every listed action.
func (m Middleware) RequireAll(actions ...shared.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := httpx.Actor(r)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			for _, action := range actions {
				if err := shared.Authorize(r.Context(), m.Authorizer, actor, action); err != nil {
					if m.Logger != nil {
						m.Logger.Debug("rbac require", slog.String("action", action.String()), slog.Any("error", err))
					}
					httpx.RespondError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
