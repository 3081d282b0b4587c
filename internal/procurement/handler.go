package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type procurementService interface {
	CreateRequest(ctx context.Context, actor shared.Actor, input CreateRequestInput) (PurchaseRequest, error)
	DecideRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID, input DecisionInput) (PurchaseRequest, error)
	GetRequest(ctx context.Context, actor shared.Actor, id uuid.UUID) (PurchaseRequest, error)
	ListRequests(ctx context.Context, actor shared.Actor, filter RequestFilter) ([]PurchaseRequest, error)
	CreateOrder(ctx context.Context, actor shared.Actor, input CreateOrderInput) (PurchaseOrder, error)
	SendOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (PurchaseOrder, error)
	CancelOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (PurchaseOrder, error)
	ReceiveOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID, input ReceiveInput) (ReceiveResult, error)
	GetOrder(ctx context.Context, actor shared.Actor, id uuid.UUID) (PurchaseOrder, error)
	ListOrders(ctx context.Context, actor shared.Actor, filter OrderFilter) ([]PurchaseOrder, error)
}

// Handler exposes procurement endpoints as JSON.
type Handler struct {
	logger  *slog.Logger
	service procurementService
}

// NewHandler builds a procurement HTTP handler.
func NewHandler(logger *slog.Logger, service procurementService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/procurement", func(r chi.Router) {
		r.Get("/requests", h.listRequests)
		r.Post("/requests", h.createRequest)
		r.Get("/requests/{id}", h.getRequest)
		r.Post("/requests/{id}/decision", h.decideRequest)
		r.Get("/orders", h.listOrders)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/send", h.sendOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
		r.Post("/orders/{id}/receive", h.receiveOrder)
	})
}

type requestPayload struct {
	DepartmentID  uuid.UUID `json:"department_id" validate:"required"`
	Description   string    `json:"description" validate:"required,max=500"`
	EstimatedCost string    `json:"estimated_cost" validate:"required"`
	Justification string    `json:"justification"`
	BudgetLineID  string    `json:"budget_line_id"`
}

type decisionPayload struct {
	Decision     string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Reason       string `json:"reason" validate:"required_if=Decision REJECTED"`
	BudgetLineID string `json:"budget_line_id"`
}

type orderPayload struct {
	RequestID         uuid.UUID `json:"request_id" validate:"required"`
	SupplierID        uuid.UUID `json:"supplier_id" validate:"required"`
	FinalPrice        string    `json:"final_price" validate:"required"`
	EstimatedDelivery string    `json:"estimated_delivery"`
}

type receivePayload struct {
	CategoryID     uuid.UUID `json:"category_id" validate:"required"`
	StatusID       uuid.UUID `json:"status_id" validate:"required"`
	LocationID     uuid.UUID `json:"location_id" validate:"required"`
	UsefulLife     int       `json:"useful_life" validate:"required,gt=0"`
	ForceOverspend bool      `json:"force_overspend"`
}

type requestResponse struct {
	ID              uuid.UUID       `json:"id"`
	RequesterID     int64           `json:"requester_id"`
	DepartmentID    uuid.UUID       `json:"department_id"`
	Description     string          `json:"description"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
	Justification   string          `json:"justification,omitempty"`
	Status          RequestStatus   `json:"status"`
	BudgetLineID    *uuid.UUID      `json:"budget_line_id,omitempty"`
	DecidedBy       *int64          `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type orderResponse struct {
	ID                uuid.UUID       `json:"id"`
	RequestID         uuid.UUID       `json:"request_id"`
	SupplierID        uuid.UUID       `json:"supplier_id"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	OrderDate         string          `json:"order_date"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
	Status            OrderStatus     `json:"status"`
	CreatedBy         int64           `json:"created_by"`
}

type receiveResponse struct {
	Order        orderResponse   `json:"order"`
	Asset        assets.Response `json:"asset"`
	MovementID   *int64          `json:"movement_id,omitempty"`
	BudgetForced bool            `json:"budget_forced"`
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	dept, err := httpx.ParseOptionalUUID("department_id", q.Get("department_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requests, err := h.service.ListRequests(r.Context(), actor, RequestFilter{
		Status:       RequestStatus(q.Get("status")),
		DepartmentID: dept,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, pr := range requests {
		out = append(out, toRequestResponse(pr))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req requestPayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cost, _, err := httpx.ParseDecimal("estimated_cost", req.EstimatedCost)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.ParseOptionalUUID("budget_line_id", req.BudgetLineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.CreateRequest(r.Context(), actor, CreateRequestInput{
		DepartmentID:  req.DepartmentID,
		Description:   req.Description,
		EstimatedCost: cost,
		Justification: req.Justification,
		BudgetLineID:  lineID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(pr))
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.GetRequest(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req decisionPayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.ParseOptionalUUID("budget_line_id", req.BudgetLineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.DecideRequest(r.Context(), actor, id, DecisionInput{
		Approve:      req.Decision == string(RequestApproved),
		Reason:       req.Reason,
		BudgetLineID: lineID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	supplier, err := httpx.ParseOptionalUUID("supplier_id", q.Get("supplier_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.service.ListOrders(r.Context(), actor, OrderFilter{
		Status:     OrderStatus(q.Get("status")),
		SupplierID: supplier,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, po := range orders {
		out = append(out, toOrderResponse(po))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req orderPayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, _, err := httpx.ParseDecimal("final_price", req.FinalPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	delivery, err := httpx.ParseDate(req.EstimatedDelivery)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.CreateOrder(r.Context(), actor, CreateOrderInput{
		RequestID:         req.RequestID,
		SupplierID:        req.SupplierID,
		FinalPrice:        price,
		EstimatedDelivery: delivery,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(po))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.GetOrder(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) sendOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.SendOrder)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelOrder)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, shared.Actor, uuid.UUID) (PurchaseOrder, error)) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := fn(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receivePayload
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.ReceiveOrder(r.Context(), actor, id, ReceiveInput{
		CategoryID:     req.CategoryID,
		StatusID:       req.StatusID,
		LocationID:     req.LocationID,
		UsefulLife:     req.UsefulLife,
		ForceOverspend: req.ForceOverspend,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := receiveResponse{
		Order: toOrderResponse(result.Order),
		Asset: assets.ToResponse(result.Asset),
	}
	if result.Movement != nil {
		movementID := result.Movement.ID
		resp.MovementID = &movementID
		resp.BudgetForced = result.Movement.Forced
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Debug("procurement request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorAndID(r *http.Request) (shared.Actor, uuid.UUID, error) {
	actor, err := httpx.Actor(r)
	if err != nil {
		return shared.Actor{}, uuid.Nil, err
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		return shared.Actor{}, uuid.Nil, err
	}
	return actor, id, nil
}

func toRequestResponse(pr PurchaseRequest) requestResponse {
	return requestResponse{
		ID:              pr.ID,
		RequesterID:     pr.RequesterID,
		DepartmentID:    pr.DepartmentID,
		Description:     pr.Description,
		EstimatedCost:   pr.EstimatedCost,
		Justification:   pr.Justification,
		Status:          pr.Status,
		BudgetLineID:    pr.BudgetLineID,
		DecidedBy:       pr.DecidedBy,
		DecidedAt:       pr.DecidedAt,
		RejectionReason: pr.RejectionReason,
		CreatedAt:       pr.CreatedAt,
	}
}

func toOrderResponse(po PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:         po.ID,
		RequestID:  po.RequestID,
		SupplierID: po.SupplierID,
		FinalPrice: po.FinalPrice,
		OrderDate:  po.OrderDate.Format(httpx.DateLayout),
		Status:     po.Status,
		CreatedBy:  po.CreatedBy,
	}
	if po.EstimatedDelivery != nil {
		resp.EstimatedDelivery = po.EstimatedDelivery.Format(httpx.DateLayout)
	}
	return resp
}
