// Package report renders downloadable documents.
package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
)

const (
	budgetSheet = "Budget"
	dateLayout  = "2006-01-02"
)

var budgetHeadings = []string{"Period", "Status", "Start", "End", "Total", "Spent", "Variance"}

// BudgetWorkbook renders the budget execution report as xlsx.
type BudgetWorkbook struct{}

var _ budget.ReportRenderer = BudgetWorkbook{}

// RenderBudgetReport writes one row per period plus a totals row.
func (BudgetWorkbook) RenderBudgetReport(ctx context.Context, rows []budget.PeriodSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", budgetSheet); err != nil {
		return nil, err
	}
	for i, h := range budgetHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(budgetSheet, cell, h); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(budgetSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := i + 2
		values := []any{
			row.Name,
			string(row.Status),
			row.StartDate.Format(dateLayout),
			row.EndDate.Format(dateLayout),
			row.Total.InexactFloat64(),
			row.Spent.InexactFloat64(),
			row.Variance.InexactFloat64(),
		}
		if err := f.SetSheetRow(budgetSheet, fmt.Sprintf("A%d", r), &values); err != nil {
			return nil, err
		}
	}

	last := len(rows) + 1
	totals := last + 1
	if err := f.SetCellValue(budgetSheet, fmt.Sprintf("A%d", totals), "Total"); err != nil {
		return nil, err
	}
	for _, col := range []string{"E", "F", "G"} {
		formula := fmt.Sprintf("SUM(%s2:%s%d)", col, col, last)
		if len(rows) == 0 {
			formula = "0"
		}
		if err := f.SetCellFormula(budgetSheet, fmt.Sprintf("%s%d", col, totals), formula); err != nil {
			return nil, err
		}
	}
	if err := f.SetRowStyle(budgetSheet, totals, totals, bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(budgetSheet, "E2", fmt.Sprintf("G%d", totals), money); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(budgetSheet, "A", "A", 28); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("report: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
