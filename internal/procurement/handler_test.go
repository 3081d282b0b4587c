package procurement_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/procurement"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/internal/testutil"
)

func serve(t *testing.T, f *fixture, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	procurement.NewHandler(slog.Default(), f.service).MountRoutes(r)
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(shared.ContextWithActor(req.Context(), f.actor))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) receiveBody(force bool) string {
	return fmt.Sprintf(`{"category_id":%q,"status_id":%q,"location_id":%q,"useful_life":5,"force_overspend":%t}`,
		f.receive.CategoryID, f.receive.StatusID, f.receive.LocationID, force)
}

func TestReceiveEndpointReportsShortfall(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	line := f.budgetLine(budget.PeriodActive, "1000", "800")
	po := f.approvedOrder(&line.ID, "500")
	path := "/procurement/orders/" + po.ID.String() + "/receive"

	rec := serve(t, f, http.MethodPost, path, f.receiveBody(false))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, line.ID.String(), problem.LineID)
	require.Equal(t, "200.00", problem.Available)
	require.Equal(t, "500.00", problem.Required)
	require.Zero(t, f.store.AssetCount())
	require.Equal(t, procurement.OrderGenerated, f.store.Order(po.ID).Status)

	rec = serve(t, f, http.MethodPost, path, f.receiveBody(true))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		Asset struct {
			InternalCode string `json:"internal_code"`
			CurrentValue string `json:"current_value"`
		} `json:"asset"`
		MovementID   *int64 `json:"movement_id"`
		BudgetForced bool   `json:"budget_forced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "COMPLETED", out.Order.Status)
	require.Equal(t, "500", out.Asset.CurrentValue)
	require.NotEmpty(t, out.Asset.InternalCode)
	require.NotNil(t, out.MovementID)
	require.True(t, out.BudgetForced)

	require.Equal(t, http.StatusConflict, serve(t, f, http.MethodPost, path, f.receiveBody(false)).Code)
}

func TestForcedReceiveEndpointNeedsOverridePermission(t *testing.T) {
	f := newFixture(t, testutil.Allow(shared.ActionReceiveOrder))
	line := f.budgetLine(budget.PeriodActive, "100", "90")
	po := f.approvedOrder(&line.ID, "50")

	rec := serve(t, f, http.MethodPost, "/procurement/orders/"+po.ID.String()+"/receive", f.receiveBody(true))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, f.store.AssetCount())
}

func TestReceiveEndpointValidatesPayload(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	po := f.approvedOrder(nil, "100")
	path := "/procurement/orders/" + po.ID.String() + "/receive"

	cases := map[string]string{
		"zero useful life": fmt.Sprintf(`{"category_id":%q,"status_id":%q,"location_id":%q,"useful_life":0}`,
			f.receive.CategoryID, f.receive.StatusID, f.receive.LocationID),
		"missing location": fmt.Sprintf(`{"category_id":%q,"status_id":%q,"useful_life":5}`,
			f.receive.CategoryID, f.receive.StatusID),
		"bad uuid": `{"category_id":"x","status_id":"y","location_id":"z","useful_life":5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, path, body).Code)
		})
	}
	require.Equal(t, http.StatusNotFound, serve(t, f, http.MethodPost, "/procurement/orders/"+uuid.NewString()+"/receive", f.receiveBody(false)).Code)
	require.Equal(t, procurement.OrderGenerated, f.store.Order(po.ID).Status)
}

func TestRequestEndpoints(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	dept := f.dept.String()

	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, "/procurement/requests",
		`{"department_id":"`+dept+`","description":"Desk","estimated_cost":"cheap"}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, "/procurement/requests",
		`{"department_id":"`+dept+`","description":"Desk","estimated_cost":"1e17"}`).Code)

	rec := serve(t, f, http.MethodPost, "/procurement/requests",
		`{"department_id":"`+dept+`","description":"Desk","estimated_cost":"320.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID            uuid.UUID `json:"id"`
		Status        string    `json:"status"`
		EstimatedCost string    `json:"estimated_cost"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "PENDING", created.Status)
	require.Equal(t, "320", created.EstimatedCost)

	decision := "/procurement/requests/" + created.ID.String() + "/decision"
	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, decision, `{"decision":"MAYBE"}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, decision, `{"decision":"REJECTED"}`).Code)

	rec = serve(t, f, http.MethodPost, decision, `{"decision":"APPROVED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusConflict, serve(t, f, http.MethodPost, decision, `{"decision":"REJECTED","reason":"late"}`).Code)

	rec = serve(t, f, http.MethodGet, "/procurement/requests?status=APPROVED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
}

func TestOrderEndpointsMapStateConflicts(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	pending := f.store.SeedRequest(procurement.PurchaseRequest{
		TenantID: f.actor.TenantID, DepartmentID: f.dept, Description: "Chair", Status: procurement.RequestPending,
	})
	body := fmt.Sprintf(`{"request_id":%q,"supplier_id":%q,"final_price":"90"}`, pending.ID, f.supplier)
	require.Equal(t, http.StatusConflict, serve(t, f, http.MethodPost, "/procurement/orders", body).Code)

	badPrice := fmt.Sprintf(`{"request_id":%q,"supplier_id":%q,"final_price":"ninety"}`, pending.ID, f.supplier)
	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, "/procurement/orders", badPrice).Code)
	badDate := fmt.Sprintf(`{"request_id":%q,"supplier_id":%q,"final_price":"90","estimated_delivery":"soon"}`, pending.ID, f.supplier)
	require.Equal(t, http.StatusBadRequest, serve(t, f, http.MethodPost, "/procurement/orders", badDate).Code)

	po := f.approvedOrder(nil, "100")
	orderPath := "/procurement/orders/" + po.ID.String()
	require.Equal(t, http.StatusOK, serve(t, f, http.MethodPost, orderPath+"/cancel", "").Code)
	require.Equal(t, http.StatusConflict, serve(t, f, http.MethodPost, orderPath+"/send", "").Code)
	require.Equal(t, http.StatusConflict, serve(t, f, http.MethodPost, orderPath+"/receive", f.receiveBody(false)).Code)

	rec := serve(t, f, http.MethodGet, orderPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "CANCELLED", got["status"])
	require.Equal(t, http.StatusNotFound, serve(t, f, http.MethodGet, "/procurement/orders/nope", "").Code)
}
