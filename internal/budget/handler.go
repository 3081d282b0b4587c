package budget

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type budgetService interface {
	CreatePeriod(ctx context.Context, actor shared.Actor, input CreatePeriodInput) (Period, error)
	SetPeriodStatus(ctx context.Context, actor shared.Actor, periodID uuid.UUID, status PeriodStatus) (Period, error)
	GetPeriod(ctx context.Context, actor shared.Actor, periodID uuid.UUID) (PeriodWithLines, error)
	ListPeriods(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]Period, error)
	CreateLine(ctx context.Context, actor shared.Actor, periodID uuid.UUID, input LineInput) (Line, error)
	UpdateLine(ctx context.Context, actor shared.Actor, lineID uuid.UUID, input LineInput) (Line, error)
	DeleteLine(ctx context.Context, actor shared.Actor, lineID uuid.UUID) error
	PostAdjustment(ctx context.Context, actor shared.Actor, lineID uuid.UUID, input AdjustmentInput) (Movement, error)
	ListMovements(ctx context.Context, actor shared.Actor, lineID uuid.UUID) ([]Movement, error)
	Report(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]PeriodSummary, error)
	ReportWorkbook(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]byte, error)
}

// Handler exposes budget endpoints as JSON.
type Handler struct {
	logger  *slog.Logger
	service budgetService
}

// NewHandler constructs a budget HTTP handler.
func NewHandler(logger *slog.Logger, service budgetService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/budget", func(r chi.Router) {
		r.Get("/periods", h.listPeriods)
		r.Post("/periods", h.createPeriod)
		r.Get("/periods/{id}", h.getPeriod)
		r.Post("/periods/{id}/status", h.setStatus)
		r.Post("/periods/{id}/lines", h.createLine)
		r.Put("/lines/{id}", h.updateLine)
		r.Delete("/lines/{id}", h.deleteLine)
		r.Get("/lines/{id}/movements", h.listMovements)
		r.Post("/lines/{id}/adjustments", h.postAdjustment)
		r.Get("/report", h.report)
		r.Get("/report.xlsx", h.reportWorkbook)
	})
}

type periodRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=PLANNING ACTIVE"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PLANNING ACTIVE CLOSED"`
}

type lineRequest struct {
	DepartmentID uuid.UUID `json:"department_id" validate:"required"`
	Name         string    `json:"name" validate:"required,max=150"`
	Code         string    `json:"code" validate:"max=30"`
	Assigned     string    `json:"assigned" validate:"required"`
}

type adjustmentRequest struct {
	Type        string `json:"type" validate:"required,oneof=POSITIVE_ADJUSTMENT NEGATIVE_ADJUSTMENT"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required"`
	Force       bool   `json:"force"`
}

type periodResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Status    PeriodStatus    `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Lines     []lineResponse  `json:"lines,omitempty"`
}

type lineResponse struct {
	ID           uuid.UUID       `json:"id"`
	PeriodID     uuid.UUID       `json:"period_id"`
	DepartmentID uuid.UUID       `json:"department_id"`
	Name         string          `json:"name"`
	Code         string          `json:"code"`
	Assigned     decimal.Decimal `json:"assigned"`
	Spent        decimal.Decimal `json:"spent"`
	Available    decimal.Decimal `json:"available"`
}

type movementResponse struct {
	ID          int64           `json:"id"`
	LineID      uuid.UUID       `json:"line_id"`
	OrderID     *uuid.UUID      `json:"purchase_order_id,omitempty"`
	Type        MovementType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Forced      bool            `json:"forced"`
	ActorID     int64           `json:"actor_id"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

type summaryResponse struct {
	periodResponse
	Spent    decimal.Decimal `json:"spent"`
	Variance decimal.Decimal `json:"variance"`
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	actor, filter, err := h.actorAndFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodResponse(p, nil))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req periodRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.ParseDate(req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.ParseDate(req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), actor, CreatePeriodInput{
		Name:      req.Name,
		StartDate: *start,
		EndDate:   *end,
		Status:    PeriodStatus(req.Status),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period, nil))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.GetPeriod(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period.Period, period.Lines))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.SetPeriodStatus(r.Context(), actor, id, PeriodStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period, nil))
}

func (h *Handler) createLine(w http.ResponseWriter, r *http.Request) {
	actor, periodID, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := decodeLine(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.CreateLine(r.Context(), actor, periodID, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLineResponse(line))
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	actor, lineID, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := decodeLine(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.UpdateLine(r.Context(), actor, lineID, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLineResponse(line))
}

func (h *Handler) deleteLine(w http.ResponseWriter, r *http.Request) {
	actor, lineID, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteLine(r.Context(), actor, lineID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	actor, lineID, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.ListMovements(r.Context(), actor, lineID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, lineID, err := actorAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, _, err := httpx.ParseDecimal("amount", req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.PostAdjustment(r.Context(), actor, lineID, AdjustmentInput{
		Type:        MovementType(req.Type),
		Amount:      amount,
		Description: req.Description,
		Force:       req.Force,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	actor, filter, err := h.actorAndFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Report(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]summaryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryResponse{
			periodResponse: toPeriodResponse(row.Period, nil),
			Spent:          row.Spent,
			Variance:       row.Variance,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reportWorkbook(w http.ResponseWriter, r *http.Request) {
	actor, filter, err := h.actorAndFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.service.ReportWorkbook(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="budget-report-%s.xlsx"`, time.Now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) actorAndFilter(r *http.Request) (shared.Actor, PeriodFilter, error) {
	actor, err := httpx.Actor(r)
	if err != nil {
		return shared.Actor{}, PeriodFilter{}, err
	}
	q := r.URL.Query()
	filter := PeriodFilter{Status: PeriodStatus(q.Get("status"))}
	dates := []struct {
		key    string
		target **time.Time
	}{
		{"start_from", &filter.StartFrom},
		{"start_to", &filter.StartTo},
		{"end_from", &filter.EndFrom},
		{"end_to", &filter.EndTo},
	}
	for _, d := range dates {
		parsed, err := httpx.ParseDate(q.Get(d.key))
		if err != nil {
			return shared.Actor{}, PeriodFilter{}, err
		}
		*d.target = parsed
	}
	return actor, filter, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Debug("budget request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
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

func decodeLine(r *http.Request) (LineInput, error) {
	var req lineRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		return LineInput{}, err
	}
	assigned, _, err := httpx.ParseDecimal("assigned", req.Assigned)
	if err != nil {
		return LineInput{}, err
	}
	return LineInput{DepartmentID: req.DepartmentID, Name: req.Name, Code: req.Code, Assigned: assigned}, nil
}

func toPeriodResponse(p Period, lines []Line) periodResponse {
	resp := periodResponse{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate.Format(httpx.DateLayout),
		EndDate:   p.EndDate.Format(httpx.DateLayout),
		Status:    p.Status,
		Total:     p.Total,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, toLineResponse(l))
	}
	return resp
}

func toLineResponse(l Line) lineResponse {
	return lineResponse{
		ID:           l.ID,
		PeriodID:     l.PeriodID,
		DepartmentID: l.DepartmentID,
		Name:         l.Name,
		Code:         l.Code,
		Assigned:     l.Assigned,
		Spent:        l.Spent,
		Available:    l.Available(),
	}
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:          m.ID,
		LineID:      m.LineID,
		OrderID:     m.OrderID,
		Type:        m.Type,
		Amount:      m.Amount,
		Description: m.Description,
		Forced:      m.Forced,
		ActorID:     m.ActorID,
		RecordedAt:  m.RecordedAt,
	}
}
