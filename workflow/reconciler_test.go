package workflow_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/stretchr/testify/require"
)

const (
	day1 models.Date = "2024-01-01"
	day2 models.Date = "2024-01-02"
	day3 models.Date = "2024-01-03"
)

func TestReconcile_CashPositionAcrossDays(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	w := e.worker(t, "Ahmad", "300")

	e.fund(t, p.ID, day1, "1000")
	r1 := e.reconcile(t, p.ID, day1)
	require.True(t, r1.Changed)
	requireDecimal(t, "1000", r1.Summary.RemainingBalance)

	e.attendance(t, p.ID, w.ID, day2, "300", "1", "300")
	purchase := e.purchase(t, p.ID, day2, "200", models.PurchaseTypeCash)
	r2 := e.reconcile(t, p.ID, day2)
	requireDecimal(t, "1000", r2.Summary.CarriedForwardAmount)
	requireDecimal(t, "300", r2.Summary.TotalWorkerWages)
	requireDecimal(t, "200", r2.Summary.TotalMaterialCosts)
	requireDecimal(t, "500", r2.Summary.TotalExpenses)
	requireDecimal(t, "500", r2.Summary.RemainingBalance)

	// switching the purchase to deferred gives the cash back to the day
	input := e.purchaseInput(p.ID, day2, "200", models.PurchaseTypeDeferred)
	_, err := e.store.UpdateMaterialPurchase(e.ctx, purchase.ID, input)
	require.NoError(t, err)

	r2 = e.reconcile(t, p.ID, day2)
	require.True(t, r2.Changed)
	requireDecimal(t, "0", r2.Summary.TotalMaterialCosts)
	requireDecimal(t, "200", r2.Summary.TotalDeferredPurchases)
	requireDecimal(t, "700", r2.Summary.RemainingBalance)

	stored, err := e.store.GetDailySummary(e.ctx, p.ID, day2)
	require.NoError(t, err)
	requireDecimal(t, "700", stored.RemainingBalance)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")

	first := e.reconcile(t, p.ID, day1)
	second := e.reconcile(t, p.ID, day1)

	require.True(t, first.Changed)
	require.False(t, second.Changed)
	require.True(t, first.Summary.SameTotals(second.Summary))
	require.Equal(t, first.Summary.ID, second.Summary.ID)
	require.Len(t, e.summaries(t, p.ID), 1)
	require.Equal(t, 1, e.notifier.count(), "unchanged reconcile must not publish")
}

func TestReconcile_ZeroActivityDayCarriesForward(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	e.reconcile(t, p.ID, day1)

	r := e.reconcile(t, p.ID, day3)
	requireDecimal(t, "1000", r.Summary.CarriedForwardAmount)
	requireDecimal(t, "1000", r.Summary.TotalIncome)
	requireDecimal(t, "0", r.Summary.TotalExpenses)
	requireDecimal(t, "1000", r.Summary.RemainingBalance)
}

func TestReconcile_RemainingIsPrefixSum(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	w := e.worker(t, "Ahmad", "150")

	e.fund(t, p.ID, day1, "1000")
	e.attendance(t, p.ID, w.ID, day1, "150", "1", "150")
	e.fund(t, p.ID, day2, "250")
	e.purchase(t, p.ID, day2, "90.5", models.PurchaseTypeCash)
	e.purchase(t, p.ID, day3, "400", models.PurchaseTypeDeferred)
	_, err := e.store.CreateTransportationExpense(e.ctx, &models.NewTransportationExpense{
		ProjectId:   p.ID,
		Amount:      dec("35"),
		Description: "truck",
		ExpenseDate: day3,
	})
	require.NoError(t, err)

	for _, d := range []models.Date{day1, day2, day3} {
		e.reconcile(t, p.ID, d)
	}

	running := dec("0")
	rows := e.summaries(t, p.ID)
	require.Len(t, rows, 3)
	for _, row := range rows {
		cash := row.TotalFundTransfers.Add(row.TotalProjectTransfersIn).Sub(row.TotalExpenses)
		running = running.Add(cash)
		requireDecimal(t, running.String(), row.RemainingBalance, row.SummaryDate)
	}
	requireDecimal(t, "974.5", running)
}

func TestReconcile_ReportsStaleLaterSummaries(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	e.fund(t, p.ID, day2, "500")
	e.reconcile(t, p.ID, day1)
	e.reconcile(t, p.ID, day2)

	e.fund(t, p.ID, day1, "200")
	r := e.reconcile(t, p.ID, day1)
	require.True(t, r.Changed)
	require.EqualValues(t, 1, r.LaterSummaries)
	require.EqualValues(t, 1, r.StaleLaterSummaries())

	// the later day is only reported, never rewritten
	stored, err := e.store.GetDailySummary(e.ctx, p.ID, day2)
	require.NoError(t, err)
	requireDecimal(t, "1500", stored.RemainingBalance)

	unchanged := e.reconcile(t, p.ID, day1)
	require.EqualValues(t, 0, unchanged.StaleLaterSummaries())
}

func TestReconcile_UnknownProject(t *testing.T) {
	e := newEnv(t)
	_, err := e.reconciler.Reconcile(e.ctx, "missing", day1)
	require.True(t, utils.IsNotFound(err), "got %v", err)
}

func TestReconcile_RemovesDuplicateRows(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")

	db := e.store.DB()
	require.NoError(t, db.Migrator().DropIndex(&models.DailyExpenseSummary{}, "idx_des_project_date"))
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		row := &models.DailyExpenseSummary{
			ProjectId:        p.ID,
			SummaryDate:      day1,
			RemainingBalance: dec("1"),
		}
		row.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(row).Error)
	}

	r := e.reconcile(t, p.ID, day1)
	require.EqualValues(t, 2, r.DuplicatesRemoved)
	require.True(t, r.Changed)

	rows := e.summaries(t, p.ID)
	require.Len(t, rows, 1)
	requireDecimal(t, "1000", rows[0].RemainingBalance)
	require.True(t, rows[0].CreatedAt.Equal(base.Add(2*time.Minute)), "newest row must survive")
}

func TestReconcile_ConcurrentCallsKeepOneRow(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.reconciler.Reconcile(e.ctx, p.ID, day1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows := e.summaries(t, p.ID)
	require.Len(t, rows, 1)
	requireDecimal(t, "1000", rows[0].RemainingBalance)
}

func TestReconcile_FailedFetchLeavesStoredRow(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	e.reconcile(t, p.ID, day1)

	e.fund(t, p.ID, day1, "300")
	require.NoError(t, e.store.DB().Migrator().DropTable(&models.WorkerMiscExpense{}))

	_, err := e.reconciler.Reconcile(e.ctx, p.ID, day1)
	require.Error(t, err)

	stored, err := e.store.GetDailySummary(e.ctx, p.ID, day1)
	require.NoError(t, err)
	requireDecimal(t, "1000", stored.RemainingBalance)
}

func TestFixDay_RebuildsRow(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	first := e.reconcile(t, p.ID, day1)

	r, err := e.reconciler.FixDay(e.ctx, p.ID, day1)
	require.NoError(t, err)
	require.True(t, r.Changed)
	require.NotEqual(t, first.Summary.ID, r.Summary.ID)
	requireDecimal(t, "1000", r.Summary.RemainingBalance)
	require.Len(t, e.summaries(t, p.ID), 1)
}

func TestRecalculateAll_RepairsStaleHistory(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	e.fund(t, p.ID, day2, "500")
	e.reconcile(t, p.ID, day1)
	e.reconcile(t, p.ID, day2)

	e.fund(t, p.ID, day1, "200")
	e.reconcile(t, p.ID, day1)

	recalculator := workflow.NewBalanceRecalculator(e.reconciler)
	result, err := recalculator.RecalculateAll(e.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Days)
	require.EqualValues(t, 2, result.RemovedRows)
	require.Equal(t, day1, result.FirstDate)
	require.Equal(t, day2, result.LastDate)
	requireDecimal(t, "1700", dec(result.RemainingBalance))

	rows := e.summaries(t, p.ID)
	require.Len(t, rows, 2)
	requireDecimal(t, "1200", rows[1].CarriedForwardAmount)
	requireDecimal(t, "1700", rows[1].RemainingBalance)
}

func TestRecalculateAll_IsDeterministic(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	w := e.worker(t, "Ahmad", "120")
	for i, d := range []models.Date{day1, day2, day3} {
		e.fund(t, p.ID, d, "400")
		e.attendance(t, p.ID, w.ID, d, "120", "1", []string{"120", "60", "0"}[i])
		e.reconcile(t, p.ID, d)
	}

	recalculator := workflow.NewBalanceRecalculator(e.reconciler)
	_, err := recalculator.RecalculateAll(e.ctx, p.ID)
	require.NoError(t, err)
	first := e.summaries(t, p.ID)

	_, err = recalculator.RecalculateAll(e.ctx, p.ID)
	require.NoError(t, err)
	second := e.summaries(t, p.ID)

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].SummaryDate, second[i].SummaryDate)
		require.True(t, first[i].SameTotals(second[i]), "day %s differs", first[i].SummaryDate)
	}
	requireDecimal(t, "1020", second[2].RemainingBalance)
}

func TestRecalculateAll_FailureRollsBack(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")
	e.fund(t, p.ID, day1, "1000")
	e.fund(t, p.ID, day2, "500")
	e.reconcile(t, p.ID, day1)
	e.reconcile(t, p.ID, day2)

	require.NoError(t, e.store.DB().Migrator().DropTable(&models.WorkerMiscExpense{}))

	_, err := workflow.NewBalanceRecalculator(e.reconciler).RecalculateAll(e.ctx, p.ID)
	var recalcErr *workflow.RecalculationError
	require.True(t, errors.As(err, &recalcErr), "got %v", err)
	require.Equal(t, day1, recalcErr.Date)
	require.Equal(t, p.ID, recalcErr.ProjectId)

	rows := e.summaries(t, p.ID)
	require.Len(t, rows, 2, "deleted summaries must be restored on failure")
	requireDecimal(t, "1500", rows[1].RemainingBalance)
}

func TestRecalculateAll_ProjectWithoutSummaries(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Tower A")

	result, err := workflow.NewBalanceRecalculator(e.reconciler).RecalculateAll(e.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, result.Days)
	require.Equal(t, "0", result.RemainingBalance)
}
