package procurement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RequestStatus tracks the purchase request decision.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// OrderStatus tracks the purchase order lifecycle.
type OrderStatus string

const (
	OrderGenerated OrderStatus = "GENERATED"
	OrderSent      OrderStatus = "SENT"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var (
	// ErrRequestNotFound indicates the request is absent from the caller's tenant.
	ErrRequestNotFound = fmt.Errorf("%w: purchase request", shared.ErrNotFound)
	// ErrOrderNotFound indicates the order is absent from the caller's tenant.
	ErrOrderNotFound = fmt.Errorf("%w: purchase order", shared.ErrNotFound)
	// ErrRequestDecided indicates a decision on a request that is no longer pending.
	ErrRequestDecided = fmt.Errorf("%w: purchase request already decided", shared.ErrConflict)
	// ErrRequestNotApproved blocks orders for requests that were not approved.
	ErrRequestNotApproved = fmt.Errorf("%w: purchase request is not approved", shared.ErrConflict)
	// ErrRequestHasOrder blocks a second order for the same request.
	ErrRequestHasOrder = fmt.Errorf("%w: purchase request already has an order", shared.ErrConflict)
	// ErrOrderCompleted indicates the order was already received.
	ErrOrderCompleted = fmt.Errorf("%w: purchase order already completed", shared.ErrConflict)
	// ErrOrderCancelled indicates the order was cancelled.
	ErrOrderCancelled = fmt.Errorf("%w: purchase order cancelled", shared.ErrConflict)
	// ErrOrderHasAsset indicates an asset already references the order.
	ErrOrderHasAsset = fmt.Errorf("%w: purchase order already has an asset", shared.ErrConflict)
	// ErrInvalidOrderTransition indicates a status change outside the allowed edges.
	ErrInvalidOrderTransition = fmt.Errorf("%w: purchase order transition not allowed", shared.ErrConflict)
)

// PurchaseRequest asks for the acquisition of an asset.
type PurchaseRequest struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	RequesterID     int64
	DepartmentID    uuid.UUID
	Description     string
	EstimatedCost   decimal.Decimal
	Justification   string
	Status          RequestStatus
	BudgetLineID    *uuid.UUID
	DecidedBy       *int64
	DecidedAt       *time.Time
	RejectionReason string
	CreatedAt       time.Time
}

// PurchaseOrder procures the item of exactly one approved request.
type PurchaseOrder struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	RequestID         uuid.UUID
	SupplierID        uuid.UUID
	FinalPrice        decimal.Decimal
	OrderDate         time.Time
	EstimatedDelivery *time.Time
	Status            OrderStatus
	CreatedBy         int64
	CreatedAt         time.Time
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	Status       RequestStatus
	DepartmentID *uuid.UUID
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status     OrderStatus
	SupplierID *uuid.UUID
}

// canTransition reports the legal manual order transitions.
func canTransition(from, to OrderStatus) bool {
	switch to {
	case OrderSent:
		return from == OrderGenerated
	case OrderCancelled, OrderCompleted:
		return from == OrderGenerated || from == OrderSent
	}
	return false
}
