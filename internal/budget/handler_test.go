package budget_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/internal/testutil"
)

type apiClient struct {
	t      *testing.T
	router chi.Router
}

func newAPI(t *testing.T, f fixture) apiClient {
	t.Helper()
	r := chi.NewRouter()
	budget.NewHandler(slog.Default(), f.service).MountRoutes(r)
	return apiClient{t: t, router: r}
}

func (c apiClient) do(method, path, body string, actor *shared.Actor) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreatePeriodEndpoint(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	api := newAPI(t, f)

	rec := api.do(http.MethodPost, "/budget/periods", `{"name":"Audit day","start_date":"2025-03-01","end_date":"2025-03-01"}`, &f.actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	require.Equal(t, "PLANNING", created["status"])
	require.Equal(t, "2025-03-01", created["start_date"])
	require.Equal(t, "2025-03-01", created["end_date"])

	cases := []struct {
		name string
		body string
		code int
	}{
		{"duplicate name", `{"name":"Audit day","start_date":"2025-04-01","end_date":"2025-04-30"}`, http.StatusConflict},
		{"missing name", `{"start_date":"2025-01-01","end_date":"2025-12-31"}`, http.StatusBadRequest},
		{"bad date", `{"name":"FY","start_date":"01/01/2025","end_date":"2025-12-31"}`, http.StatusBadRequest},
		{"end before start", `{"name":"FY","start_date":"2025-12-31","end_date":"2025-01-01"}`, http.StatusBadRequest},
		{"closed on creation", `{"name":"FY","start_date":"2025-01-01","end_date":"2025-12-31","status":"CLOSED"}`, http.StatusBadRequest},
		{"unknown field", `{"name":"FY","start_date":"2025-01-01","end_date":"2025-12-31","owner":"me"}`, http.StatusBadRequest},
		{"malformed json", `{"name":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, api.do(http.MethodPost, "/budget/periods", tc.body, &f.actor).Code)
		})
	}

	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/budget/periods", `{}`, nil).Code)
}

func TestPeriodEndpointsMapErrors(t *testing.T) {
	f := newFixture(t, testutil.Allow(shared.ActionViewBudget))
	api := newAPI(t, f)
	p := f.store.SeedPeriod(budget.Period{TenantID: f.actor.TenantID, Name: "FY", StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31), Status: budget.PeriodActive})
	f.store.SeedLine(budget.Line{PeriodID: p.ID, DepartmentID: f.dept, Name: "IT", Assigned: money("500")})

	rec := api.do(http.MethodGet, "/budget/periods/"+p.ID.String(), "", &f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	require.Equal(t, "500", got["total"])
	require.Len(t, got["lines"], 1)

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/budget/periods/not-a-uuid", "", &f.actor).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/budget/periods/"+uuid.NewString(), "", &f.actor).Code)
	require.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/budget/periods/"+p.ID.String()+"/status", `{"status":"CLOSED"}`, &f.actor).Code)

	rec = api.do(http.MethodGet, "/budget/periods?status=ACTIVE&start_from=2025-01-01", "", &f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]map[string]any](t, rec), 1)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/budget/periods?end_to=tomorrow", "", &f.actor).Code)
}

func TestLineEndpointsOnClosedPeriodConflict(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	api := newAPI(t, f)
	p := f.activePeriod(t)
	l := f.line(t, p.ID, "IT equipment", "1000")

	linePath := "/budget/periods/" + p.ID.String() + "/lines"
	rec := api.do(http.MethodPost, linePath, `{"department_id":"`+f.dept.String()+`","name":"Furniture","assigned":"abc"}`, &f.actor)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, linePath, `{"department_id":"`+f.dept.String()+`","name":"Furniture","assigned":"250.50"}`, &f.actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "250.5", decodeBody[map[string]any](t, rec)["available"])

	rec = api.do(http.MethodPost, "/budget/periods/"+p.ID.String()+"/status", `{"status":"CLOSED"}`, &f.actor)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, linePath, `{"department_id":"`+f.dept.String()+`","name":"Travel","assigned":"10"}`, &f.actor)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = api.do(http.MethodPut, "/budget/lines/"+l.ID.String(), `{"department_id":"`+f.dept.String()+`","name":"IT equipment","assigned":"5"}`, &f.actor)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, http.StatusConflict, api.do(http.MethodDelete, "/budget/lines/"+l.ID.String(), "", &f.actor).Code)
	require.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/budget/periods/"+p.ID.String()+"/status", `{"status":"ACTIVE"}`, &f.actor).Code)
}

func TestAdjustmentEndpoint(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	api := newAPI(t, f)
	p := f.activePeriod(t)
	l := f.line(t, p.ID, "IT equipment", "100")
	path := "/budget/lines/" + l.ID.String() + "/adjustments"

	rec := api.do(http.MethodPost, path, `{"type":"NEGATIVE_ADJUSTMENT","amount":"150","description":"license true-up"}`, &f.actor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problem := decodeBody[httpx.ProblemDetail](t, rec)
	require.Equal(t, l.ID.String(), problem.LineID)
	require.Equal(t, "100.00", problem.Available)
	require.Equal(t, "150.00", problem.Required)

	rec = api.do(http.MethodPost, path, `{"type":"NEGATIVE_ADJUSTMENT","amount":"150","description":"license true-up","force":true}`, &f.actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	movement := decodeBody[map[string]any](t, rec)
	require.Equal(t, true, movement["forced"])
	require.Equal(t, "NEGATIVE_ADJUSTMENT", movement["type"])

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, path, `{"type":"EXPENSE","amount":"1","description":"x"}`, &f.actor).Code)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, path, `{"type":"POSITIVE_ADJUSTMENT","amount":"ten","description":"x"}`, &f.actor).Code)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, path, `{"type":"POSITIVE_ADJUSTMENT","amount":"1e20","description":"x"}`, &f.actor).Code)

	rec = api.do(http.MethodGet, "/budget/lines/"+l.ID.String()+"/movements", "", &f.actor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestForcedAdjustmentNeedsOverridePermission(t *testing.T) {
	f := newFixture(t, testutil.Allow(shared.ActionManageBudget))
	api := newAPI(t, f)
	p := f.store.SeedPeriod(budget.Period{TenantID: f.actor.TenantID, Name: "FY", Status: budget.PeriodActive})
	l := f.store.SeedLine(budget.Line{PeriodID: p.ID, DepartmentID: f.dept, Name: "IT", Assigned: money("10")})

	rec := api.do(http.MethodPost, "/budget/lines/"+l.ID.String()+"/adjustments",
		`{"type":"NEGATIVE_ADJUSTMENT","amount":"50","description":"fee","force":true}`, &f.actor)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, f.store.Movements(l.ID))
}
