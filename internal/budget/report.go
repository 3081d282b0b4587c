package budget

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// ErrRendererUnavailable indicates no report renderer was configured.
var ErrRendererUnavailable = errors.New("budget: report renderer not configured")

// Report returns per-period execution figures, newest start date first.
func (s *Service) Report(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]PeriodSummary, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewBudgetReport); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.valid() {
		return nil, shared.Validationf("unknown period status %q", filter.Status)
	}
	return s.repo.ReportSummaries(ctx, actor.TenantID, filter)
}

// ReportWorkbook renders the report through the configured renderer.
func (s *Service) ReportWorkbook(ctx context.Context, actor shared.Actor, filter PeriodFilter) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererUnavailable
	}
	rows, err := s.Report(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderBudgetReport(ctx, rows)
}

// Summarize fills the variance of a report row. Periods without an
// assignment report no variance.
func Summarize(row PeriodSummary) PeriodSummary {
	if row.Total.IsZero() {
		row.Variance = decimal.Zero
		return row
	}
	row.Variance = row.Total.Sub(row.Spent)
	return row
}
