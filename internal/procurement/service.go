package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/masterdata"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, tenantID, id uuid.UUID) (PurchaseRequest, error)
	ListRequests(ctx context.Context, tenantID uuid.UUID, filter RequestFilter) ([]PurchaseRequest, error)
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (PurchaseOrder, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]PurchaseOrder, error)
}

// Service orchestrates the request, order and receipt workflow.
type Service struct {
	repo     RepositoryPort
	refs     masterdata.Lookup
	authz    shared.Authorizer
	notifier shared.Notifier
	audit    shared.AuditPort
	metrics  budget.PostingObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, refs masterdata.Lookup, authz shared.Authorizer, notifier shared.Notifier, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, refs: refs, authz: authz, notifier: notifier, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches a posting observer for receipt expenses.
func (s *Service) WithMetrics(m budget.PostingObserver) {
	s.metrics = m
}

// CreateRequestInput describes a new purchase request.
type CreateRequestInput struct {
	DepartmentID  uuid.UUID
	Description   string
	EstimatedCost decimal.Decimal
	Justification string
	BudgetLineID  *uuid.UUID
}

// DecisionInput approves or rejects a pending request.
type DecisionInput struct {
	Approve      bool
	Reason       string
	BudgetLineID *uuid.UUID
}

// CreateOrderInput describes an order for an approved request.
type CreateOrderInput struct {
	RequestID         uuid.UUID
	SupplierID        uuid.UUID
	FinalPrice        decimal.Decimal
	EstimatedDelivery *time.Time
}

// ReceiveInput carries the attributes of the asset created on receipt.
type ReceiveInput struct {
	CategoryID     uuid.UUID
	StatusID       uuid.UUID
	LocationID     uuid.UUID
	UsefulLife     int
	ForceOverspend bool
}

// ReceiveResult reports what a successful receipt produced.
type ReceiveResult struct {
	Order    PurchaseOrder
	Asset    assets.Asset
	Movement *budget.Movement
}

// CreateRequest records a new pending request for the actor.
func (s *Service) CreateRequest(ctx context.Context, actor shared.Actor, input CreateRequestInput) (PurchaseRequest, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionCreateRequest); err != nil {
		return PurchaseRequest{}, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return PurchaseRequest{}, shared.Validationf("request description required")
	}
	if !input.EstimatedCost.IsPositive() {
		return PurchaseRequest{}, shared.Validationf("estimated cost must be positive")
	}
	if err := shared.CheckAmount("estimated cost", input.EstimatedCost); err != nil {
		return PurchaseRequest{}, err
	}
	if err := s.requireRef(ctx, actor, masterdata.KindDepartment, &input.DepartmentID); err != nil {
		return PurchaseRequest{}, err
	}
	if err := s.requireRef(ctx, actor, masterdata.KindBudgetLine, input.BudgetLineID); err != nil {
		return PurchaseRequest{}, err
	}
	pr := PurchaseRequest{
		ID:            uuid.New(),
		TenantID:      actor.TenantID,
		RequesterID:   actor.UserID,
		DepartmentID:  input.DepartmentID,
		Description:   description,
		EstimatedCost: input.EstimatedCost.Round(2),
		Justification: strings.TrimSpace(input.Justification),
		Status:        RequestPending,
		BudgetLineID:  input.BudgetLineID,
		CreatedAt:     s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertRequest(ctx, pr)
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "PR_CREATE", pr.ID, map[string]any{"estimated_cost": pr.EstimatedCost.String()})
	return pr, nil
}

// DecideRequest approves or rejects a pending request exactly once and notifies the requester.
func (s *Service) DecideRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID, input DecisionInput) (PurchaseRequest, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionApproveRequest); err != nil {
		return PurchaseRequest{}, err
	}
	reason := strings.TrimSpace(input.Reason)
	if !input.Approve && reason == "" {
		return PurchaseRequest{}, shared.Validationf("rejection reason required")
	}
	if input.Approve {
		if err := s.requireRef(ctx, actor, masterdata.KindBudgetLine, input.BudgetLineID); err != nil {
			return PurchaseRequest{}, err
		}
	}
	var decided PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.LockRequest(ctx, actor.TenantID, requestID)
		if err != nil {
			return err
		}
		if pr.Status != RequestPending {
			return fmt.Errorf("%w (status %s)", ErrRequestDecided, pr.Status)
		}
		now := s.now()
		decider := actor.UserID
		pr.DecidedBy = &decider
		pr.DecidedAt = &now
		if input.Approve {
			pr.Status = RequestApproved
			if input.BudgetLineID != nil {
				pr.BudgetLineID = input.BudgetLineID
			}
		} else {
			pr.Status = RequestRejected
			pr.RejectionReason = reason
		}
		if err := tx.SaveDecision(ctx, pr); err != nil {
			return err
		}
		decided = pr
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "PR_DECIDE", decided.ID, map[string]any{"status": decided.Status, "reason": decided.RejectionReason})
	s.notifyDecision(ctx, decided)
	return decided, nil
}

// CreateOrder raises the single order of an approved request.
func (s *Service) CreateOrder(ctx context.Context, actor shared.Actor, input CreateOrderInput) (PurchaseOrder, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageOrder); err != nil {
		return PurchaseOrder{}, err
	}
	if input.RequestID == uuid.Nil {
		return PurchaseOrder{}, shared.Validationf("purchase request required")
	}
	if !input.FinalPrice.IsPositive() {
		return PurchaseOrder{}, shared.Validationf("final price must be positive")
	}
	if err := shared.CheckAmount("final price", input.FinalPrice); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.requireRef(ctx, actor, masterdata.KindSupplier, &input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now()
	po := PurchaseOrder{
		ID:                uuid.New(),
		TenantID:          actor.TenantID,
		RequestID:         input.RequestID,
		SupplierID:        input.SupplierID,
		FinalPrice:        input.FinalPrice.Round(2),
		OrderDate:         dateOnly(now),
		EstimatedDelivery: input.EstimatedDelivery,
		Status:            OrderGenerated,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.LockRequest(ctx, actor.TenantID, input.RequestID)
		if err != nil {
			return err
		}
		if pr.Status != RequestApproved {
			return fmt.Errorf("%w (status %s)", ErrRequestNotApproved, pr.Status)
		}
		linked, err := tx.RequestHasOrder(ctx, pr.ID)
		if err != nil {
			return err
		}
		if linked {
			return ErrRequestHasOrder
		}
		return tx.InsertOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "PO_CREATE", po.ID, map[string]any{"request_id": po.RequestID, "final_price": po.FinalPrice.String()})
	return po, nil
}

// SendOrder moves a generated order to Sent.
func (s *Service) SendOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (PurchaseOrder, error) {
	return s.transitionOrder(ctx, actor, orderID, OrderSent, "PO_SEND")
}

// CancelOrder cancels an order that has not been received.
func (s *Service) CancelOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (PurchaseOrder, error) {
	return s.transitionOrder(ctx, actor, orderID, OrderCancelled, "PO_CANCEL")
}

func (s *Service) transitionOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID, target OrderStatus, auditAction string) (PurchaseOrder, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionManageOrder); err != nil {
		return PurchaseOrder{}, err
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if !canTransition(po.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderTransition, po.Status, target)
		}
		if err := tx.UpdateOrderStatus(ctx, po.ID, target); err != nil {
			return err
		}
		po.Status = target
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, auditAction, orderID, map[string]any{"status": target})
	return updated, nil
}

// ReceiveOrder turns an order into an asset and posts its expense to the
// request's budget line. Asset creation, ledger posting and the order status
// change commit together or not at all.
func (s *Service) ReceiveOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID, input ReceiveInput) (ReceiveResult, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionReceiveOrder); err != nil {
		return ReceiveResult{}, err
	}
	if input.ForceOverspend {
		if err := shared.Authorize(ctx, s.authz, actor, shared.ActionForceOverspend); err != nil {
			return ReceiveResult{}, err
		}
	}
	if input.UsefulLife <= 0 {
		return ReceiveResult{}, shared.Validationf("useful life must be positive")
	}
	for _, ref := range []struct {
		kind masterdata.Kind
		id   uuid.UUID
	}{
		{masterdata.KindCategory, input.CategoryID},
		{masterdata.KindAssetStatus, input.StatusID},
		{masterdata.KindLocation, input.LocationID},
	} {
		id := ref.id
		if id == uuid.Nil {
			return ReceiveResult{}, shared.Validationf("%s required", ref.kind)
		}
		if err := s.requireRef(ctx, actor, ref.kind, &id); err != nil {
			return ReceiveResult{}, err
		}
	}

	var result ReceiveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, actor.TenantID, orderID)
		if err != nil {
			return err
		}
		switch po.Status {
		case OrderCompleted:
			return ErrOrderCompleted
		case OrderCancelled:
			return ErrOrderCancelled
		}
		linked, err := tx.Assets().AssetExistsForOrder(ctx, po.ID)
		if err != nil {
			return err
		}
		if linked {
			return ErrOrderHasAsset
		}
		pr, err := tx.GetRequestTx(ctx, actor.TenantID, po.RequestID)
		if err != nil {
			return err
		}

		code, err := assets.NextInternalCode(ctx, tx.Assets(), actor.TenantID, po.ID)
		if err != nil {
			return err
		}
		now := s.now()
		supplierID := po.SupplierID
		purchaseOrderID := po.ID
		asset := assets.Asset{
			ID:              uuid.New(),
			TenantID:        actor.TenantID,
			Name:            pr.Description,
			InternalCode:    code,
			AcquisitionDate: dateOnly(now),
			CurrentValue:    po.FinalPrice,
			UsefulLife:      input.UsefulLife,
			CategoryID:      input.CategoryID,
			StatusID:        input.StatusID,
			LocationID:      input.LocationID,
			DepartmentID:    pr.DepartmentID,
			SupplierID:      &supplierID,
			PurchaseOrderID: &purchaseOrderID,
			CreatedAt:       now,
		}
		if err := tx.Assets().InsertAsset(ctx, asset); err != nil {
			return err
		}

		if pr.BudgetLineID != nil {
			movement, err := budget.PostExpense(ctx, tx.Budget(), budget.Posting{
				TenantID:    actor.TenantID,
				LineID:      *pr.BudgetLineID,
				OrderID:     &purchaseOrderID,
				Amount:      po.FinalPrice,
				Description: "Asset purchase: " + asset.Name,
				ActorID:     actor.UserID,
				Force:       input.ForceOverspend,
			})
			if err != nil {
				return err
			}
			result.Movement = &movement
		}

		if err := tx.UpdateOrderStatus(ctx, po.ID, OrderCompleted); err != nil {
			return err
		}
		po.Status = OrderCompleted
		result.Order = po
		result.Asset = asset
		return nil
	})
	if err != nil {
		return ReceiveResult{}, err
	}

	meta := map[string]any{"asset_id": result.Asset.ID, "internal_code": result.Asset.InternalCode}
	if result.Movement != nil {
		meta["line_id"] = result.Movement.LineID
		meta["forced"] = result.Movement.Forced
		if s.metrics != nil {
			s.metrics.ObserveLedgerPosting(string(result.Movement.Type), result.Movement.Forced)
		}
		if result.Movement.Forced {
			s.logger.Warn("purchase order received over budget",
				slog.String("tenant_id", actor.TenantID.String()),
				slog.String("order_id", orderID.String()),
				slog.String("line_id", result.Movement.LineID.String()),
				slog.Int64("actor_id", actor.UserID))
		}
	}
	s.recordAudit(ctx, actor, "PO_RECEIVE", orderID, meta)
	return result, nil
}

// GetRequest returns one request of the caller's tenant.
func (s *Service) GetRequest(ctx context.Context, actor shared.Actor, id uuid.UUID) (PurchaseRequest, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewProcurement); err != nil {
		return PurchaseRequest{}, err
	}
	return s.repo.GetRequest(ctx, actor.TenantID, id)
}

// ListRequests returns the caller's requests.
func (s *Service) ListRequests(ctx context.Context, actor shared.Actor, filter RequestFilter) ([]PurchaseRequest, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewProcurement); err != nil {
		return nil, err
	}
	return s.repo.ListRequests(ctx, actor.TenantID, filter)
}

// GetOrder returns one order of the caller's tenant.
func (s *Service) GetOrder(ctx context.Context, actor shared.Actor, id uuid.UUID) (PurchaseOrder, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewProcurement); err != nil {
		return PurchaseOrder{}, err
	}
	return s.repo.GetOrder(ctx, actor.TenantID, id)
}

// ListOrders returns the caller's orders.
func (s *Service) ListOrders(ctx context.Context, actor shared.Actor, filter OrderFilter) ([]PurchaseOrder, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewProcurement); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, actor.TenantID, filter)
}

func (s *Service) notifyDecision(ctx context.Context, pr PurchaseRequest) {
	if s.notifier == nil {
		return
	}
	n := shared.Notification{
		TenantID: pr.TenantID,
		UserID:   pr.RequesterID,
		Link:     "/procurement/requests/" + pr.ID.String(),
	}
	if pr.Status == RequestApproved {
		n.Level = shared.NotificationInfo
		n.Message = fmt.Sprintf("Your purchase request %q was approved.", pr.Description)
	} else {
		n.Level = shared.NotificationWarning
		n.Message = fmt.Sprintf("Your purchase request %q was rejected: %s", pr.Description, pr.RejectionReason)
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("purchase request notification failed",
			slog.String("tenant_id", pr.TenantID.String()),
			slog.String("request_id", pr.ID.String()),
			slog.Any("error", err))
	}
}

func (s *Service) requireRef(ctx context.Context, actor shared.Actor, kind masterdata.Kind, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if *id == uuid.Nil {
		return shared.Validationf("%s required", kind)
	}
	if s.refs == nil {
		return nil
	}
	ok, err := s.refs.Exists(ctx, actor.TenantID, kind, *id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.Validationf("%s %s not found", kind, *id)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "procurement",
		EntityID: entityID.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("procurement audit", slog.String("action", action), slog.Any("error", err))
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
