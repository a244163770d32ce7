package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/shopspring/decimal"
)

// largest tolerated |income - expenses - remaining|
var balanceTolerance = decimal.NewFromFloat(0.01)

// BalanceIntegrityError means a computed summary does not add up. It is never retried.
type BalanceIntegrityError struct {
	ProjectId        string
	Date             models.Date
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	RemainingBalance decimal.Decimal
}

func (e *BalanceIntegrityError) Error() string {
	return fmt.Sprintf("balance integrity check failed for project %s on %s: income %s - expenses %s != remaining %s",
		e.ProjectId, e.Date, e.TotalIncome.String(), e.TotalExpenses.String(), e.RemainingBalance.String())
}

// ComputeDailySummary builds the summary of one project-day from the carried-forward
// balance and the day's transactions. It does not touch storage.
//
//	income   = carriedForward + fund transfers + incoming project transfers
//	expenses = paid wages + cash purchases + transportation + worker transfers
//	           + misc expenses + outgoing project transfers
//	remaining = income - expenses
//
// Deferred purchases are reported in TotalDeferredPurchases and never reach expenses.
// Wages count what was paid out that day, not what was earned.
func ComputeDailySummary(projectId string, date models.Date, carriedForward decimal.Decimal, day *models.DayTransactions) (*models.DailyExpenseSummary, error) {
	if day == nil {
		day = &models.DayTransactions{}
	}
	summary := &models.DailyExpenseSummary{
		ProjectId:            projectId,
		SummaryDate:          date,
		CarriedForwardAmount: carriedForward,
	}

	for _, t := range day.FundTransfers {
		summary.TotalFundTransfers = summary.TotalFundTransfers.Add(t.Amount)
	}
	for _, t := range day.IncomingTransfers {
		summary.TotalProjectTransfersIn = summary.TotalProjectTransfersIn.Add(t.Amount)
	}
	for _, t := range day.OutgoingTransfers {
		summary.TotalProjectTransfersOut = summary.TotalProjectTransfersOut.Add(t.Amount)
	}
	for _, a := range day.Attendance {
		summary.TotalWorkerWages = summary.TotalWorkerWages.Add(a.PaidAmount)
	}
	for _, p := range day.MaterialPurchases {
		if p.IsCash() {
			summary.TotalMaterialCosts = summary.TotalMaterialCosts.Add(p.TotalAmount)
		} else {
			summary.TotalDeferredPurchases = summary.TotalDeferredPurchases.Add(p.TotalAmount)
		}
	}
	for _, e := range day.Transportation {
		summary.TotalTransportationCosts = summary.TotalTransportationCosts.Add(e.Amount)
	}
	for _, t := range day.WorkerTransfers {
		summary.TotalWorkerTransfers = summary.TotalWorkerTransfers.Add(t.Amount)
	}
	for _, e := range day.MiscExpenses {
		summary.TotalMiscExpenses = summary.TotalMiscExpenses.Add(e.Amount)
	}

	summary.TotalIncome = carriedForward.
		Add(summary.TotalFundTransfers).
		Add(summary.TotalProjectTransfersIn)
	summary.TotalExpenses = summary.TotalWorkerWages.
		Add(summary.TotalMaterialCosts).
		Add(summary.TotalTransportationCosts).
		Add(summary.TotalWorkerTransfers).
		Add(summary.TotalMiscExpenses).
		Add(summary.TotalProjectTransfersOut)
	summary.RemainingBalance = summary.TotalIncome.Sub(summary.TotalExpenses)

	if err := CheckBalanceIntegrity(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// CheckBalanceIntegrity verifies income - expenses = remaining within the tolerance.
func CheckBalanceIntegrity(summary *models.DailyExpenseSummary) error {
	diff := summary.TotalIncome.Sub(summary.TotalExpenses).Sub(summary.RemainingBalance).Abs()
	if diff.GreaterThanOrEqual(balanceTolerance) {
		return &BalanceIntegrityError{
			ProjectId:        summary.ProjectId,
			Date:             summary.SummaryDate,
			TotalIncome:      summary.TotalIncome,
			TotalExpenses:    summary.TotalExpenses,
			RemainingBalance: summary.RemainingBalance,
		}
	}
	return nil
}
