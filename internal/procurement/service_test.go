package procurement_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/masterdata"
	"github.com/odyssey-erp/odyssey-assets/internal/procurement"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/internal/testutil"
)

var now = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *testutil.Store
	service  *procurement.Service
	notifier *testutil.Notifier
	audit    *testutil.Audit
	actor    shared.Actor
	dept     uuid.UUID
	supplier uuid.UUID
	receive  procurement.ReceiveInput
}

func newFixture(t *testing.T, authz shared.Authorizer) *fixture {
	t.Helper()
	store := testutil.NewStore()
	actor := shared.Actor{TenantID: uuid.New(), UserID: 11}
	f := &fixture{
		store:    store,
		notifier: &testutil.Notifier{},
		audit:    &testutil.Audit{},
		actor:    actor,
		dept:     store.AddRef(actor.TenantID, masterdata.KindDepartment),
		supplier: store.AddRef(actor.TenantID, masterdata.KindSupplier),
		receive: procurement.ReceiveInput{
			CategoryID: store.AddRef(actor.TenantID, masterdata.KindCategory),
			StatusID:   store.AddRef(actor.TenantID, masterdata.KindAssetStatus),
			LocationID: store.AddRef(actor.TenantID, masterdata.KindLocation),
			UsefulLife: 5,
		},
	}
	f.service = procurement.NewService(store.Procurement(), store, authz, f.notifier, f.audit, nil)
	f.service.WithNow(func() time.Time { return now })
	return f
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// budgetLine seeds a line with the given assignment and spend in a period of the given status.
func (f *fixture) budgetLine(status budget.PeriodStatus, assigned, spent string) budget.Line {
	p := f.store.SeedPeriod(budget.Period{TenantID: f.actor.TenantID, Name: "FY-" + uuid.NewString(), Status: status})
	return f.store.SeedLine(budget.Line{
		PeriodID: p.ID, DepartmentID: f.dept, Name: "IT", Assigned: money(assigned), Spent: money(spent),
	})
}

// approvedOrder seeds an approved request charged to lineID and a generated order for price.
func (f *fixture) approvedOrder(lineID *uuid.UUID, price string) procurement.PurchaseOrder {
	pr := f.store.SeedRequest(procurement.PurchaseRequest{
		TenantID: f.actor.TenantID, RequesterID: 3, DepartmentID: f.dept, Description: "Laptop",
		EstimatedCost: money(price), Status: procurement.RequestApproved, BudgetLineID: lineID, CreatedAt: now,
	})
	return f.store.SeedOrder(procurement.PurchaseOrder{
		TenantID: f.actor.TenantID, RequestID: pr.ID, SupplierID: f.supplier, FinalPrice: money(price),
		OrderDate: now, Status: procurement.OrderGenerated, CreatedBy: f.actor.UserID, CreatedAt: now,
	})
}

func TestRequestDecisionWorkflow(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()

	pr, err := f.service.CreateRequest(ctx, f.actor, procurement.CreateRequestInput{
		DepartmentID: f.dept, Description: "Standing desk", EstimatedCost: money("450"),
	})
	require.NoError(t, err)
	require.Equal(t, procurement.RequestPending, pr.Status)
	require.Equal(t, f.actor.UserID, pr.RequesterID)

	_, err = f.service.DecideRequest(ctx, f.actor, pr.ID, procurement.DecisionInput{Approve: false})
	require.ErrorIs(t, err, shared.ErrValidation)

	decided, err := f.service.DecideRequest(ctx, f.actor, pr.ID, procurement.DecisionInput{Approve: false, Reason: "duplicate"})
	require.NoError(t, err)
	require.Equal(t, procurement.RequestRejected, decided.Status)
	require.Equal(t, "duplicate", decided.RejectionReason)
	require.NotNil(t, decided.DecidedAt)
	require.Equal(t, now, *decided.DecidedAt)
	require.Equal(t, f.actor.UserID, *decided.DecidedBy)

	_, err = f.service.DecideRequest(ctx, f.actor, pr.ID, procurement.DecisionInput{Approve: true})
	require.ErrorIs(t, err, procurement.ErrRequestDecided)

	require.Len(t, f.notifier.Sent, 1)
	sent := f.notifier.Sent[0]
	require.Equal(t, shared.NotificationWarning, sent.Level)
	require.Equal(t, f.actor.UserID, sent.UserID)
	require.Equal(t, "/procurement/requests/"+pr.ID.String(), sent.Link)
}

func TestApprovalAttachesBudgetLineAndSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	f.notifier.Err = errors.New("push gateway down")
	ctx := context.Background()
	line := f.budgetLine(budget.PeriodActive, "1000", "0")

	pr, err := f.service.CreateRequest(ctx, f.actor, procurement.CreateRequestInput{
		DepartmentID: f.dept, Description: "Monitor", EstimatedCost: money("200"),
	})
	require.NoError(t, err)

	_, err = f.service.DecideRequest(ctx, f.actor, pr.ID, procurement.DecisionInput{Approve: true, BudgetLineID: ptr(uuid.New())})
	require.ErrorIs(t, err, shared.ErrValidation)

	decided, err := f.service.DecideRequest(ctx, f.actor, pr.ID, procurement.DecisionInput{Approve: true, BudgetLineID: &line.ID})
	require.NoError(t, err)
	require.Equal(t, procurement.RequestApproved, decided.Status)
	require.Equal(t, line.ID, *decided.BudgetLineID)
	require.Equal(t, shared.NotificationInfo, f.notifier.Sent[len(f.notifier.Sent)-1].Level)

	stored, err := f.service.GetRequest(ctx, f.actor, pr.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.RequestApproved, stored.Status)
}

func TestCreateOrderRequiresApprovedUnlinkedRequest(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()
	pending := f.store.SeedRequest(procurement.PurchaseRequest{
		TenantID: f.actor.TenantID, DepartmentID: f.dept, Description: "Chair", Status: procurement.RequestPending,
	})
	_, err := f.service.CreateOrder(ctx, f.actor, procurement.CreateOrderInput{
		RequestID: pending.ID, SupplierID: f.supplier, FinalPrice: money("90"),
	})
	require.ErrorIs(t, err, procurement.ErrRequestNotApproved)

	approved := f.store.SeedRequest(procurement.PurchaseRequest{
		TenantID: f.actor.TenantID, DepartmentID: f.dept, Description: "Chair", Status: procurement.RequestApproved,
	})
	po, err := f.service.CreateOrder(ctx, f.actor, procurement.CreateOrderInput{
		RequestID: approved.ID, SupplierID: f.supplier, FinalPrice: money("89.999"),
	})
	require.NoError(t, err)
	require.Equal(t, procurement.OrderGenerated, po.Status)
	require.True(t, po.FinalPrice.Equal(money("90")))

	_, err = f.service.CreateOrder(ctx, f.actor, procurement.CreateOrderInput{
		RequestID: approved.ID, SupplierID: f.supplier, FinalPrice: money("90"),
	})
	require.ErrorIs(t, err, procurement.ErrRequestHasOrder)

	_, err = f.service.CreateOrder(ctx, f.actor, procurement.CreateOrderInput{
		RequestID: approved.ID, SupplierID: uuid.New(), FinalPrice: money("90"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOrderTransitions(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()
	po := f.approvedOrder(nil, "100")

	sent, err := f.service.SendOrder(ctx, f.actor, po.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.OrderSent, sent.Status)

	_, err = f.service.SendOrder(ctx, f.actor, po.ID)
	require.ErrorIs(t, err, procurement.ErrInvalidOrderTransition)

	cancelled, err := f.service.CancelOrder(ctx, f.actor, po.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.OrderCancelled, cancelled.Status)

	_, err = f.service.CancelOrder(ctx, f.actor, po.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.service.ReceiveOrder(ctx, f.actor, po.ID, f.receive)
	require.ErrorIs(t, err, procurement.ErrOrderCancelled)
	require.Zero(t, f.store.AssetCount())
}

func TestReceiveOrderPostsExpenseAndCreatesAsset(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()
	line := f.budgetLine(budget.PeriodActive, "1000", "300")
	first := f.approvedOrder(&line.ID, "500")

	result, err := f.service.ReceiveOrder(ctx, f.actor, first.ID, f.receive)
	require.NoError(t, err)
	require.Equal(t, procurement.OrderCompleted, result.Order.Status)
	require.Equal(t, procurement.OrderCompleted, f.store.Order(first.ID).Status)
	require.Equal(t, assets.InternalCode(first.ID), result.Asset.InternalCode)
	require.Equal(t, "Laptop", result.Asset.Name)
	require.Equal(t, f.dept, result.Asset.DepartmentID)
	require.Equal(t, f.supplier, *result.Asset.SupplierID)
	require.True(t, result.Asset.CurrentValue.Equal(money("500")))
	require.NotNil(t, result.Movement)
	require.Equal(t, budget.MovementExpense, result.Movement.Type)
	require.Equal(t, "Asset purchase: Laptop", result.Movement.Description)
	require.Equal(t, first.ID, *result.Movement.OrderID)
	require.True(t, f.store.Line(line.ID).Spent.Equal(money("800")))

	second := f.approvedOrder(&line.ID, "500")
	_, err = f.service.ReceiveOrder(ctx, f.actor, second.ID, f.receive)
	var insufficient *shared.InsufficientBudgetError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(money("200")))
	require.True(t, insufficient.Required.Equal(money("500")))

	require.Equal(t, procurement.OrderGenerated, f.store.Order(second.ID).Status)
	require.Equal(t, 1, f.store.AssetCount(), "rejected receipt leaves no asset")
	require.True(t, f.store.Line(line.ID).Spent.Equal(money("800")))
	require.Len(t, f.store.Movements(line.ID), 1)
}

func TestReceiveOrderIsIdempotentlyRejected(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()
	line := f.budgetLine(budget.PeriodActive, "1000", "0")
	po := f.approvedOrder(&line.ID, "100")

	_, err := f.service.ReceiveOrder(ctx, f.actor, po.ID, f.receive)
	require.NoError(t, err)
	_, err = f.service.ReceiveOrder(ctx, f.actor, po.ID, f.receive)
	require.ErrorIs(t, err, procurement.ErrOrderCompleted)
	require.Equal(t, 1, f.store.AssetCount())
	require.True(t, f.store.Line(line.ID).Spent.Equal(money("100")))
}

func TestReceiveOrderAgainstInactivePeriodConflicts(t *testing.T) {
	for _, status := range []budget.PeriodStatus{budget.PeriodPlanning, budget.PeriodClosed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, testutil.AllowAll)
			line := f.budgetLine(status, "1000", "0")
			po := f.approvedOrder(&line.ID, "100")

			_, err := f.service.ReceiveOrder(context.Background(), f.actor, po.ID, f.receive)
			require.ErrorIs(t, err, budget.ErrPeriodNotActive)
			require.Zero(t, f.store.AssetCount())
			require.Equal(t, procurement.OrderGenerated, f.store.Order(po.ID).Status)
		})
	}
}

func TestForcedReceiveMarksMovement(t *testing.T) {
	f := newFixture(t, testutil.Allow(shared.ActionReceiveOrder))
	ctx := context.Background()
	line := f.budgetLine(budget.PeriodActive, "100", "90")
	po := f.approvedOrder(&line.ID, "50")

	in := f.receive
	in.ForceOverspend = true
	_, err := f.service.ReceiveOrder(ctx, f.actor, po.ID, in)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	f.service = procurement.NewService(f.store.Procurement(), f.store, testutil.AllowAll, f.notifier, f.audit, nil)
	result, err := f.service.ReceiveOrder(ctx, f.actor, po.ID, in)
	require.NoError(t, err)
	require.True(t, result.Movement.Forced)
	require.True(t, f.store.Line(line.ID).Available().Equal(money("-40")))

	covered := f.approvedOrder(&line.ID, "0.01")
	f.store.SeedLine(budget.Line{ID: line.ID, PeriodID: line.PeriodID, DepartmentID: f.dept, Name: "IT", Assigned: money("1000"), Spent: money("140")})
	result, err = f.service.ReceiveOrder(ctx, f.actor, covered.ID, in)
	require.NoError(t, err)
	require.False(t, result.Movement.Forced, "override that bypassed nothing is not recorded as forced")
}

func TestReceiveOrderWithoutBudgetLine(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	po := f.approvedOrder(nil, "100")

	result, err := f.service.ReceiveOrder(context.Background(), f.actor, po.ID, f.receive)
	require.NoError(t, err)
	require.Nil(t, result.Movement)
	require.Equal(t, procurement.OrderCompleted, result.Order.Status)
}

func TestReceiveOrderLengthensCollidingAssetCode(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	po := f.approvedOrder(nil, "100")
	f.store.SeedAsset(assets.Asset{TenantID: f.actor.TenantID, Name: "Older laptop", InternalCode: assets.InternalCode(po.ID)})

	result, err := f.service.ReceiveOrder(context.Background(), f.actor, po.ID, f.receive)
	require.NoError(t, err)
	require.NotEqual(t, assets.InternalCode(po.ID), result.Asset.InternalCode)
	require.True(t, strings.HasPrefix(result.Asset.InternalCode, assets.InternalCode(po.ID)))
	require.Len(t, result.Asset.InternalCode, len("ACT-")+16)
}

func TestOrderAmountsBeyondColumnRangeAreRejected(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	ctx := context.Background()

	_, err := f.service.CreateRequest(ctx, f.actor, procurement.CreateRequestInput{
		DepartmentID: f.dept, Description: "Data center", EstimatedCost: money("1e16"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	approved := f.store.SeedRequest(procurement.PurchaseRequest{
		TenantID: f.actor.TenantID, DepartmentID: f.dept, Description: "Data center", Status: procurement.RequestApproved,
	})
	_, err = f.service.CreateOrder(ctx, f.actor, procurement.CreateOrderInput{
		RequestID: approved.ID, SupplierID: f.supplier, FinalPrice: money("123456789012345678"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceiveOrderRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	line := f.budgetLine(budget.PeriodActive, "1000", "0")
	po := f.approvedOrder(&line.ID, "100")
	f.store.FailOn("AddSpent", errors.New("connection reset"))

	_, err := f.service.ReceiveOrder(context.Background(), f.actor, po.ID, f.receive)
	require.Error(t, err)
	require.Zero(t, f.store.AssetCount())
	require.Empty(t, f.store.Movements(line.ID))
	require.Equal(t, procurement.OrderGenerated, f.store.Order(po.ID).Status)
}

func TestReceiveOrderValidatesBeforeLocking(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	po := f.approvedOrder(nil, "100")

	in := f.receive
	in.UsefulLife = 0
	_, err := f.service.ReceiveOrder(context.Background(), f.actor, po.ID, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = f.receive
	in.LocationID = uuid.New()
	_, err = f.service.ReceiveOrder(context.Background(), f.actor, po.ID, in)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, f.store.AssetCount())
}

func TestConcurrentReceiptsOnSameLineNeverDoubleSpend(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	line := f.budgetLine(budget.PeriodActive, "1000", "300")
	orders := []procurement.PurchaseOrder{f.approvedOrder(&line.ID, "500"), f.approvedOrder(&line.ID, "500")}

	var wg sync.WaitGroup
	errs := make([]error, len(orders))
	for i, po := range orders {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.service.ReceiveOrder(context.Background(), f.actor, id, f.receive)
		}(i, po.ID)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrInsufficientBudget):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, insufficient)
	require.True(t, f.store.Line(line.ID).Spent.Equal(money("800")))
	require.Equal(t, 1, f.store.AssetCount())
}

func TestCrossTenantOrderIsNotFound(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	po := f.approvedOrder(nil, "100")
	intruder := shared.Actor{TenantID: uuid.New(), UserID: 5}

	_, err := f.service.GetOrder(context.Background(), intruder, po.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.service.SendOrder(context.Background(), intruder, po.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListsAreTenantScoped(t *testing.T) {
	f := newFixture(t, testutil.AllowAll)
	f.approvedOrder(nil, "100")
	f.approvedOrder(nil, "200")

	orders, err := f.service.ListOrders(context.Background(), f.actor, procurement.OrderFilter{Status: procurement.OrderGenerated})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	requests, err := f.service.ListRequests(context.Background(), shared.Actor{TenantID: uuid.New(), UserID: 1}, procurement.RequestFilter{})
	require.NoError(t, err)
	require.Empty(t, requests)
}

func ptr[T any](v T) *T { return &v }
