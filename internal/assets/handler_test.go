package assets_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/internal/testutil"
)

func TestAssetEndpoints(t *testing.T) {
	store := testutil.NewStore()
	actor := shared.Actor{TenantID: uuid.New(), UserID: 2}
	itDept, opsDept := uuid.New(), uuid.New()
	laptop := store.SeedAsset(assets.Asset{
		TenantID: actor.TenantID, Name: "Laptop", InternalCode: "ACT-00000001", DepartmentID: itDept,
		AcquisitionDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), CurrentValue: decimal.RequireFromString("1250.50"), UsefulLife: 4,
	})
	store.SeedAsset(assets.Asset{TenantID: actor.TenantID, Name: "Forklift", InternalCode: "ACT-00000002", DepartmentID: opsDept})
	foreign := store.SeedAsset(assets.Asset{TenantID: uuid.New(), Name: "Van", InternalCode: "ACT-00000003"})

	r := chi.NewRouter()
	assets.NewHandler(slog.Default(), assets.NewService(store.AssetReads(), testutil.AllowAll)).MountRoutes(r)
	get := func(path string, actor *shared.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if actor != nil {
			req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/assets/"+laptop.ID.String(), &actor)
	require.Equal(t, http.StatusOK, rec.Code)
	var got assets.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "ACT-00000001", got.InternalCode)
	require.Equal(t, "2025-06-15", got.AcquisitionDate)
	require.True(t, got.CurrentValue.Equal(decimal.RequireFromString("1250.5")))

	rec = get("/assets?department_id="+itDept.String(), &actor)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []assets.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, laptop.ID, listed[0].ID)

	rec = get("/assets", &actor)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)

	require.Equal(t, http.StatusNotFound, get("/assets/"+foreign.ID.String(), &actor).Code)
	require.Equal(t, http.StatusNotFound, get("/assets/not-an-id", &actor).Code)
	require.Equal(t, http.StatusBadRequest, get("/assets?category_id=abc", &actor).Code)
	require.Equal(t, http.StatusUnauthorized, get("/assets", nil).Code)
}

func TestAssetEndpointsNeedViewPermission(t *testing.T) {
	store := testutil.NewStore()
	actor := shared.Actor{TenantID: uuid.New(), UserID: 2}
	a := store.SeedAsset(assets.Asset{TenantID: actor.TenantID, Name: "Desk", InternalCode: "ACT-0000000A"})

	r := chi.NewRouter()
	assets.NewHandler(nil, assets.NewService(store.AssetReads(), testutil.Allow(shared.ActionViewBudget))).MountRoutes(r)
	req := httptest.NewRequest(http.MethodGet, "/assets/"+a.ID.String(), nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
