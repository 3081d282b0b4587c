package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/rbac"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/jobs"
)

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "test"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestJobsRouteRequiresBudgetManager(t *testing.T) {
	tenant := uuid.New()
	authz := shared.AuthorizerFunc(func(_ context.Context, actor shared.Actor, action shared.Action) (bool, error) {
		return actor.UserID == 1 && action == shared.ActionManageBudget, nil
	})
	router := NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test"},
		JobHandler:     jobs.NewHandler(nil, nil),
		RBACMiddleware: rbac.Middleware{Authorizer: authz},
	})

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
		if user != "" {
			req.Header.Set(HeaderTenantID, tenant.String())
			req.Header.Set(HeaderUserID, user)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, call("1"))
	require.Equal(t, http.StatusForbidden, call("2"))
	require.Equal(t, http.StatusUnauthorized, call(""))
	require.Equal(t, http.StatusUnauthorized, call("not-a-number"))
}

func TestActorMiddlewareResolvesHeaders(t *testing.T) {
	tenant := uuid.New()
	var got shared.Actor
	var found bool
	h := ActorMiddleware(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, found = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTenantID, tenant.String())
	req.Header.Set(HeaderUserID, "42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	require.Equal(t, shared.Actor{TenantID: tenant, UserID: 42}, got)
}
