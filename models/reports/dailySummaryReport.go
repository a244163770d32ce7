package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type DailySummaryTotals struct {
	OpeningBalance           decimal.Decimal `json:"opening_balance"`
	TotalFundTransfers       decimal.Decimal `json:"total_fund_transfers"`
	TotalProjectTransfersIn  decimal.Decimal `json:"total_project_transfers_in"`
	TotalWorkerWages         decimal.Decimal `json:"total_worker_wages"`
	TotalMaterialCosts       decimal.Decimal `json:"total_material_costs"`
	TotalDeferredPurchases   decimal.Decimal `json:"total_deferred_purchases"`
	TotalTransportationCosts decimal.Decimal `json:"total_transportation_costs"`
	TotalWorkerTransfers     decimal.Decimal `json:"total_worker_transfers"`
	TotalMiscExpenses        decimal.Decimal `json:"total_misc_expenses"`
	TotalProjectTransfersOut decimal.Decimal `json:"total_project_transfers_out"`
	// in-range inflows and outflows, without the opening balance
	PeriodIncome   decimal.Decimal `json:"period_income"`
	PeriodExpenses decimal.Decimal `json:"period_expenses"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

type DailySummaryReport struct {
	Project   *models.Project               `json:"project"`
	DateFrom  models.Date                   `json:"date_from,omitempty"`
	DateTo    models.Date                   `json:"date_to,omitempty"`
	Summaries []*models.DailyExpenseSummary `json:"summaries"`
	Totals    DailySummaryTotals            `json:"totals"`
}

// GetDailySummaryReport returns the stored summaries of a project in [from, to]
// with period totals. The opening balance is the balance carried into the first
// day of the range.
func (b *Builder) GetDailySummaryReport(ctx context.Context, projectId string, from, to models.Date) (*DailySummaryReport, error) {
	ctx, span := tracer.Start(ctx, "GetDailySummaryReport", trace.WithAttributes(attribute.String("project_id", projectId)))
	defer span.End()
	defer logSlowReport(ctx, b.logger, "daily_summary_report", time.Now(), map[string]any{"project_id": projectId})

	project, err := b.store.GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, utils.NewFieldError("dateFrom", "ltefield", "dateFrom must not be after dateTo")
	}
	summaries, err := b.store.ListDailySummaries(ctx, projectId, from, to)
	if err != nil {
		return nil, err
	}

	report := &DailySummaryReport{
		Project:   project,
		DateFrom:  from,
		DateTo:    to,
		Summaries: summaries,
	}
	if report.Summaries == nil {
		report.Summaries = []*models.DailyExpenseSummary{}
	}

	t := &report.Totals
	if len(summaries) > 0 {
		t.OpeningBalance = summaries[0].CarriedForwardAmount
		t.ClosingBalance = summaries[len(summaries)-1].RemainingBalance
	} else if !from.IsZero() {
		opening, err := b.store.GetPreviousBalance(ctx, projectId, from)
		if err != nil {
			return nil, err
		}
		t.OpeningBalance = opening
		t.ClosingBalance = opening
	}
	for _, s := range summaries {
		t.TotalFundTransfers = t.TotalFundTransfers.Add(s.TotalFundTransfers)
		t.TotalProjectTransfersIn = t.TotalProjectTransfersIn.Add(s.TotalProjectTransfersIn)
		t.TotalWorkerWages = t.TotalWorkerWages.Add(s.TotalWorkerWages)
		t.TotalMaterialCosts = t.TotalMaterialCosts.Add(s.TotalMaterialCosts)
		t.TotalDeferredPurchases = t.TotalDeferredPurchases.Add(s.TotalDeferredPurchases)
		t.TotalTransportationCosts = t.TotalTransportationCosts.Add(s.TotalTransportationCosts)
		t.TotalWorkerTransfers = t.TotalWorkerTransfers.Add(s.TotalWorkerTransfers)
		t.TotalMiscExpenses = t.TotalMiscExpenses.Add(s.TotalMiscExpenses)
		t.TotalProjectTransfersOut = t.TotalProjectTransfersOut.Add(s.TotalProjectTransfersOut)
		t.PeriodExpenses = t.PeriodExpenses.Add(s.TotalExpenses)
	}
	t.PeriodIncome = t.TotalFundTransfers.Add(t.TotalProjectTransfersIn)
	return report, nil
}
