package reports_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, name string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %s got %s", name, want, got)
}

type fixture struct {
	ctx     context.Context
	store   *models.Store
	builder *reports.Builder
}

func newFixture(t *testing.T) *fixture {
	store := modeltest.OpenStore(t)
	return &fixture{
		ctx:     context.Background(),
		store:   store,
		builder: reports.NewBuilder(store, nil, config.NewLogger("error")),
	}
}

func (f *fixture) project(t *testing.T, name string) *models.Project {
	t.Helper()
	p, err := f.store.CreateProject(f.ctx, &models.NewProject{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) attend(t *testing.T, projectId, workerId string, date models.Date, wage, paid string) {
	t.Helper()
	paymentType := models.PaymentTypeFull
	if dec(paid).LessThan(dec(wage)) {
		paymentType = models.PaymentTypePartial
	}
	_, err := f.store.CreateWorkerAttendance(f.ctx, &models.NewWorkerAttendance{
		ProjectId:      projectId,
		WorkerId:       workerId,
		AttendanceDate: date,
		DailyWage:      dec(wage),
		PaidAmount:     dec(paid),
		PaymentType:    paymentType,
	})
	require.NoError(t, err)
}

// Worker W on project A: two days earning 200 and 150, 300 paid on site and a
// 50 remittance on Jan 3. Project B has no activity. A February day sits
// outside the statement range.
func (f *fixture) workerHistory(t *testing.T) (w *models.Worker, a, b *models.Project) {
	t.Helper()
	a = f.project(t, "Tower A")
	b = f.project(t, "Tower B")
	w, err := f.store.CreateWorker(f.ctx, &models.NewWorker{Name: "Ahmad"})
	require.NoError(t, err)

	f.attend(t, a.ID, w.ID, "2024-01-01", "200", "150")
	f.attend(t, a.ID, w.ID, "2024-01-02", "150", "150")
	_, err = f.store.CreateWorkerTransfer(f.ctx, &models.NewWorkerTransfer{
		WorkerId:      w.ID,
		ProjectId:     a.ID,
		Amount:        dec("50"),
		RecipientName: "Ahmad's family",
		TransferDate:  "2024-01-03",
	})
	require.NoError(t, err)
	f.attend(t, a.ID, w.ID, "2024-02-01", "200", "0")
	return w, a, b
}

func TestBuildWorkerStatement_GroupsByProject(t *testing.T) {
	f := newFixture(t)
	w, a, b := f.workerHistory(t)

	s, err := f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{
		WorkerId:   w.ID,
		ProjectIds: []string{a.ID, b.ID},
		DateFrom:   "2024-01-01",
		DateTo:     "2024-01-31",
	})
	require.NoError(t, err)

	require.Len(t, s.Projects, 2)
	require.Equal(t, a.ID, s.Projects[0].Project.ID)
	require.Equal(t, b.ID, s.Projects[1].Project.ID)

	onA := s.Projects[0].Totals
	requireDecimal(t, "2", onA.TotalWorkDays, "work days")
	requireDecimal(t, "350", onA.TotalEarned, "earned")
	requireDecimal(t, "300", onA.TotalPaid, "paid")
	requireDecimal(t, "50", onA.TotalTransferred, "transferred")
	requireDecimal(t, "0", onA.NetBalance, "net")
	require.Equal(t, 2, onA.AttendanceCount)
	require.Equal(t, 1, onA.TransferCount)

	onB := s.Projects[1]
	require.Empty(t, onB.Attendance)
	require.NotNil(t, onB.Attendance)
	requireDecimal(t, "0", onB.Totals.NetBalance, "idle project")

	requireDecimal(t, "350", s.Totals.TotalEarned, "grand earned")
	requireDecimal(t, "0", s.Totals.NetBalance, "grand net")
	require.Len(t, s.Attendance, 2)
	require.Len(t, s.Transfers, 1)
}

func TestBuildWorkerStatement_NoActivityIsNotAnError(t *testing.T) {
	f := newFixture(t)
	w, _, b := f.workerHistory(t)

	s, err := f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{
		WorkerId:   w.ID,
		ProjectIds: []string{b.ID},
		DateFrom:   "2023-01-01",
		DateTo:     "2023-12-31",
	})
	require.NoError(t, err)
	require.Equal(t, 0, s.Totals.AttendanceCount)
	require.True(t, s.Totals.NetBalance.IsZero())
}

func TestBuildWorkerStatement_RejectsBadQueries(t *testing.T) {
	f := newFixture(t)
	w, a, _ := f.workerHistory(t)

	_, err := f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{WorkerId: w.ID})
	var validation *utils.ValidationError
	require.True(t, errors.As(err, &validation), "got %v", err)
	require.Contains(t, validation.Fields, "dateFrom")
	require.Contains(t, validation.Fields, "dateTo")
	require.Contains(t, validation.Fields, "projectId")

	_, err = f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{
		WorkerId:   w.ID,
		ProjectIds: []string{a.ID},
		DateFrom:   "2024-02-01",
		DateTo:     "2024-01-01",
	})
	require.True(t, errors.As(err, &validation))

	_, err = f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{
		WorkerId:   w.ID,
		ProjectIds: []string{a.ID, "missing"},
		DateFrom:   "2024-01-01",
		DateTo:     "2024-01-31",
	})
	require.True(t, utils.IsNotFound(err))

	_, err = f.builder.BuildWorkerStatement(f.ctx, reports.WorkerStatementQuery{
		WorkerId:   "missing",
		ProjectIds: []string{a.ID},
		DateFrom:   "2024-01-01",
		DateTo:     "2024-01-31",
	})
	require.True(t, utils.IsNotFound(err))
}

func TestParseProjectIds(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, reports.ParseProjectIds(" a ", "b, c,a,,"))
	require.Empty(t, reports.ParseProjectIds("", ""))
}

func TestGetWorkerBalance_CoversWholeHistory(t *testing.T) {
	f := newFixture(t)
	w, a, b := f.workerHistory(t)

	balance, err := f.builder.GetWorkerBalance(f.ctx, w.ID, a.ID)
	require.NoError(t, err)
	requireDecimal(t, "550", balance.TotalEarned, "earned")
	requireDecimal(t, "300", balance.TotalPaid, "paid")
	requireDecimal(t, "50", balance.TotalTransferred, "transferred")
	requireDecimal(t, "200", balance.CurrentBalance, "balance")

	idle, err := f.builder.GetWorkerBalance(f.ctx, w.ID, b.ID)
	require.NoError(t, err)
	require.True(t, idle.CurrentBalance.IsZero())

	_, err = f.builder.GetWorkerBalance(f.ctx, w.ID, "missing")
	require.True(t, utils.IsNotFound(err))
}

func TestBuildSupplierStatement_OwedIsDeferredMinusPaid(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Tower A")
	supplier, err := f.store.CreateSupplier(f.ctx, &models.NewSupplier{Name: "Golden Cement"})
	require.NoError(t, err)

	for _, purchase := range []struct {
		kind  models.PurchaseType
		price string
	}{
		{models.PurchaseTypeCash, "100"},
		{models.PurchaseTypeDeferred, "300"},
	} {
		_, err := f.store.CreateMaterialPurchase(f.ctx, &models.NewMaterialPurchase{
			ProjectId:    p.ID,
			MaterialName: "Cement",
			MaterialUnit: "bag",
			SupplierId:   &supplier.ID,
			Quantity:     dec("1"),
			UnitPrice:    dec(purchase.price),
			PurchaseType: purchase.kind,
			PurchaseDate: "2024-01-02",
		})
		require.NoError(t, err)
	}
	_, err = f.store.CreateSupplierPayment(f.ctx, &models.NewSupplierPayment{
		SupplierId:  supplier.ID,
		ProjectId:   &p.ID,
		Amount:      dec("120"),
		PaymentDate: "2024-01-05",
	})
	require.NoError(t, err)

	s, err := f.builder.BuildSupplierStatement(f.ctx, reports.SupplierStatementQuery{SupplierId: supplier.ID})
	require.NoError(t, err)
	require.Equal(t, "Golden Cement", s.Purchases[0].SupplierName)
	requireDecimal(t, "400", s.Totals.TotalPurchases, "purchases")
	requireDecimal(t, "100", s.Totals.CashPurchases, "cash")
	requireDecimal(t, "300", s.Totals.DeferredPurchases, "deferred")
	requireDecimal(t, "120", s.Totals.TotalPaid, "paid")
	requireDecimal(t, "180", s.Totals.RemainingBalance, "owed")
	require.Equal(t, 2, s.Totals.PurchaseCount)
	require.Equal(t, 1, s.Totals.PaymentCount)

	before, err := f.builder.BuildSupplierStatement(f.ctx, reports.SupplierStatementQuery{
		SupplierId: supplier.ID,
		DateTo:     "2024-01-03",
	})
	require.NoError(t, err)
	requireDecimal(t, "300", before.Totals.RemainingBalance, "owed before payment")

	_, err = f.builder.BuildSupplierStatement(f.ctx, reports.SupplierStatementQuery{SupplierId: "missing"})
	require.True(t, utils.IsNotFound(err))
}

func (f *fixture) storeSummary(t *testing.T, projectId string, date models.Date, carried, funds, expenses string) {
	t.Helper()
	income := dec(carried).Add(dec(funds))
	require.NoError(t, f.store.UpsertDailySummary(f.ctx, &models.DailyExpenseSummary{
		ProjectId:            projectId,
		SummaryDate:          date,
		CarriedForwardAmount: dec(carried),
		TotalFundTransfers:   dec(funds),
		TotalMiscExpenses:    dec(expenses),
		TotalIncome:          income,
		TotalExpenses:        dec(expenses),
		RemainingBalance:     income.Sub(dec(expenses)),
	}))
}

func TestGetDailySummaryReport_Totals(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Tower A")
	f.storeSummary(t, p.ID, "2024-01-01", "0", "1000", "0")
	f.storeSummary(t, p.ID, "2024-01-02", "1000", "500", "200")

	all, err := f.builder.GetDailySummaryReport(f.ctx, p.ID, "", "")
	require.NoError(t, err)
	require.Len(t, all.Summaries, 2)
	requireDecimal(t, "0", all.Totals.OpeningBalance, "opening")
	requireDecimal(t, "1500", all.Totals.PeriodIncome, "income")
	requireDecimal(t, "200", all.Totals.PeriodExpenses, "expenses")
	requireDecimal(t, "1300", all.Totals.ClosingBalance, "closing")

	second, err := f.builder.GetDailySummaryReport(f.ctx, p.ID, "2024-01-02", "2024-01-02")
	require.NoError(t, err)
	requireDecimal(t, "1000", second.Totals.OpeningBalance, "opening")
	requireDecimal(t, "500", second.Totals.PeriodIncome, "income")
	requireDecimal(t, "1300", second.Totals.ClosingBalance, "closing")

	empty, err := f.builder.GetDailySummaryReport(f.ctx, p.ID, "2024-01-10", "2024-01-20")
	require.NoError(t, err)
	require.Empty(t, empty.Summaries)
	requireDecimal(t, "1300", empty.Totals.OpeningBalance, "carried into empty range")
	requireDecimal(t, "1300", empty.Totals.ClosingBalance, "closing of empty range")

	_, err = f.builder.GetDailySummaryReport(f.ctx, p.ID, "2024-01-20", "2024-01-10")
	var validation *utils.ValidationError
	require.True(t, errors.As(err, &validation))
}

func TestExportDailySummaryReport(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Tower A")
	f.storeSummary(t, p.ID, "2024-01-01", "0", "1000", "0")
	f.storeSummary(t, p.ID, "2024-01-02", "1000", "500", "200")

	report, err := f.builder.GetDailySummaryReport(f.ctx, p.ID, "2024-01-01", "2024-01-02")
	require.NoError(t, err)
	data, err := reports.ExportDailySummaryReport(report)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	sheet := "Daily Summary"
	raw := excelize.Options{RawCellValue: true}
	cell := func(name string) string {
		v, err := book.GetCellValue(sheet, name, raw)
		require.NoError(t, err)
		return v
	}
	require.Equal(t, "Tower A (2024-01-01 - 2024-01-02)", cell("A1"))
	require.Equal(t, "Date", cell("A3"))
	require.Equal(t, "Remaining Balance", cell("N3"))
	require.Equal(t, "2024-01-01", cell("A4"))
	require.Equal(t, "2024-01-02", cell("A5"))
	require.Equal(t, "1300", cell("N5"))
	require.Equal(t, "Total", cell("A6"))
	require.Equal(t, "1500", cell("L6"))
	require.Equal(t, "1300", cell("N6"))

	require.Equal(t, "daily-summaries_"+p.ID+"_2024-01-01_2024-01-02.xlsx", reports.DailySummaryFileName(report))
}

func TestReportCache_NilIsDisabled(t *testing.T) {
	var cache *reports.ReportCache
	require.NoError(t, cache.Flush(context.Background()))

	disabled := reports.NewReportCache(nil, 0, nil)
	require.NoError(t, disabled.Flush(context.Background()))
}

func TestGetDailyExpenseReport(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Tower A")
	w, err := f.store.CreateWorker(f.ctx, &models.NewWorker{Name: "Ahmad"})
	require.NoError(t, err)
	driver, err := f.store.CreateWorker(f.ctx, &models.NewWorker{Name: "Saleh"})
	require.NoError(t, err)
	f.storeSummary(t, p.ID, "2024-01-01", "0", "1000", "0")

	_, err = f.store.CreateMaterialPurchase(f.ctx, &models.NewMaterialPurchase{
		ProjectId:    p.ID,
		MaterialName: "Cement",
		MaterialUnit: "bag",
		SupplierName: "Golden Cement",
		Quantity:     dec("10"),
		UnitPrice:    dec("40"),
		PurchaseType: models.PurchaseTypeDeferred,
		PurchaseDate: "2024-01-02",
	})
	require.NoError(t, err)
	_, err = f.store.CreateTransportationExpense(f.ctx, &models.NewTransportationExpense{
		ProjectId:   p.ID,
		WorkerId:    &driver.ID,
		Amount:      dec("50"),
		Description: "sand delivery",
		ExpenseDate: "2024-01-02",
	})
	require.NoError(t, err)
	_, err = f.store.CreateWorkerTransfer(f.ctx, &models.NewWorkerTransfer{
		WorkerId:      w.ID,
		ProjectId:     p.ID,
		Amount:        dec("100"),
		RecipientName: "Ahmad's family",
		TransferDate:  "2024-01-02",
	})
	require.NoError(t, err)

	report, err := f.builder.GetDailyExpenseReport(f.ctx, p.ID, "2024-01-02")
	require.NoError(t, err)
	require.Equal(t, p.ID, report.Project.ID)
	require.Nil(t, report.Summary)
	require.False(t, report.InSync)
	require.Len(t, report.MaterialPurchases, 1)
	require.Len(t, report.Transportation, 1)
	require.Len(t, report.WorkerTransfers, 1)
	require.Empty(t, report.FundTransfers)
	requireDecimal(t, "1000", report.PreviousBalance, "previous")
	requireDecimal(t, "400", report.Computed.TotalDeferredPurchases, "deferred")
	requireDecimal(t, "150", report.Computed.TotalExpenses, "expenses")
	requireDecimal(t, "850", report.Computed.RemainingBalance, "remaining")
	require.ElementsMatch(t, []string{w.ID, driver.ID}, report.WorkerIds())
	require.Empty(t, report.CounterpartProjectIds())

	// a stored row that no longer matches the records
	f.storeSummary(t, p.ID, "2024-01-02", "1000", "0", "0")
	report, err = f.builder.GetDailyExpenseReport(f.ctx, p.ID, "2024-01-02")
	require.NoError(t, err)
	require.NotNil(t, report.Summary)
	require.False(t, report.InSync)

	quiet, err := f.builder.GetDailyExpenseReport(f.ctx, p.ID, "2024-01-05")
	require.NoError(t, err)
	require.Nil(t, quiet.Summary)
	require.Empty(t, quiet.Attendance)
	requireDecimal(t, "1000", quiet.Computed.RemainingBalance, "carried only")

	_, err = f.builder.GetDailyExpenseReport(f.ctx, "missing", "2024-01-02")
	require.True(t, utils.IsNotFound(err))
}
