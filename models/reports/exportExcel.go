package reports

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const dailySummarySheet = "Daily Summary"

var dailySummaryHeadings = []string{
	"Date",
	"Carried Forward",
	"Fund Transfers",
	"Transfers In",
	"Worker Wages",
	"Material (Cash)",
	"Material (Deferred)",
	"Transportation",
	"Worker Transfers",
	"Misc Expenses",
	"Transfers Out",
	"Total Income",
	"Total Expenses",
	"Remaining Balance",
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// ExportDailySummaryReport renders report as an .xlsx workbook: one row per day
// followed by a totals row.
func ExportDailySummaryReport(report *DailySummaryReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dailySummarySheet); err != nil {
		return nil, err
	}
	sheet := dailySummarySheet

	title := report.Project.Name
	if !report.DateFrom.IsZero() || !report.DateTo.IsZero() {
		title = fmt.Sprintf("%s (%s - %s)", title, report.DateFrom, report.DateTo)
	}
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return nil, err
	}

	const headerRow = 3
	for i, h := range dailySummaryHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(dailySummaryHeadings))
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, headerRow), headerStyle); err != nil {
		return nil, err
	}

	rowNo := headerRow + 1
	for _, s := range report.Summaries {
		values := []interface{}{
			s.SummaryDate.String(),
			money(s.CarriedForwardAmount),
			money(s.TotalFundTransfers),
			money(s.TotalProjectTransfersIn),
			money(s.TotalWorkerWages),
			money(s.TotalMaterialCosts),
			money(s.TotalDeferredPurchases),
			money(s.TotalTransportationCosts),
			money(s.TotalWorkerTransfers),
			money(s.TotalMiscExpenses),
			money(s.TotalProjectTransfersOut),
			money(s.TotalIncome),
			money(s.TotalExpenses),
			money(s.RemainingBalance),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNo), &values); err != nil {
			return nil, err
		}
		rowNo++
	}

	t := report.Totals
	totals := []interface{}{
		"Total",
		money(t.OpeningBalance),
		money(t.TotalFundTransfers),
		money(t.TotalProjectTransfersIn),
		money(t.TotalWorkerWages),
		money(t.TotalMaterialCosts),
		money(t.TotalDeferredPurchases),
		money(t.TotalTransportationCosts),
		money(t.TotalWorkerTransfers),
		money(t.TotalMiscExpenses),
		money(t.TotalProjectTransfersOut),
		money(t.PeriodIncome),
		money(t.PeriodExpenses),
		money(t.ClosingBalance),
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNo), &totals); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", headerRow+1), fmt.Sprintf("%s%d", lastCol, rowNo), moneyStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", rowNo), fmt.Sprintf("%s%d", lastCol, rowNo), totalStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DailySummaryFileName is the download / archive name of an export.
func DailySummaryFileName(report *DailySummaryReport) string {
	from, to := report.DateFrom.String(), report.DateTo.String()
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "latest"
	}
	return fmt.Sprintf("daily-summaries_%s_%s_%s.xlsx", report.Project.ID, from, to)
}
