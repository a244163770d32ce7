package workflow_test

import (
	"context"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []*models.DailyExpenseSummary
}

func (n *recordingNotifier) SummaryReconciled(_ context.Context, s *models.DailyExpenseSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

type env struct {
	ctx        context.Context
	store      *models.Store
	reconciler *workflow.Reconciler
	notifier   *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := modeltest.OpenStore(t)
	notifier := &recordingNotifier{}
	logger := config.NewLogger("error")
	return &env{
		ctx:        context.Background(),
		store:      store,
		reconciler: workflow.NewReconciler(store, workflow.NewSummaryLocks(nil, logger), notifier, logger),
		notifier:   notifier,
	}
}

func (e *env) project(t *testing.T, name string) *models.Project {
	t.Helper()
	p, err := e.store.CreateProject(e.ctx, &models.NewProject{Name: name})
	require.NoError(t, err)
	return p
}

func (e *env) worker(t *testing.T, name string, wage string) *models.Worker {
	t.Helper()
	w, err := e.store.CreateWorker(e.ctx, &models.NewWorker{Name: name, DailyWage: dec(wage)})
	require.NoError(t, err)
	return w
}

func (e *env) fund(t *testing.T, projectId string, date models.Date, amount string) *models.FundTransfer {
	t.Helper()
	f, err := e.store.CreateFundTransfer(e.ctx, &models.NewFundTransfer{
		ProjectId:    projectId,
		Amount:       dec(amount),
		SenderName:   "owner",
		TransferDate: date,
	})
	require.NoError(t, err)
	return f
}

func (e *env) attendance(t *testing.T, projectId, workerId string, date models.Date, wage, days, paid string) *models.WorkerAttendance {
	t.Helper()
	workDays := dec(days)
	paymentType := models.PaymentTypeFull
	if dec(paid).LessThan(dec(wage).Mul(workDays)) {
		paymentType = models.PaymentTypePartial
	}
	a, err := e.store.CreateWorkerAttendance(e.ctx, &models.NewWorkerAttendance{
		ProjectId:      projectId,
		WorkerId:       workerId,
		AttendanceDate: date,
		WorkDays:       &workDays,
		DailyWage:      dec(wage),
		PaidAmount:     dec(paid),
		PaymentType:    paymentType,
	})
	require.NoError(t, err)
	return a
}

func (e *env) purchaseInput(projectId string, date models.Date, total string, purchaseType models.PurchaseType) *models.NewMaterialPurchase {
	return &models.NewMaterialPurchase{
		ProjectId:    projectId,
		MaterialName: "Cement",
		MaterialUnit: "bag",
		SupplierName: "Golden Cement",
		Quantity:     dec("1"),
		UnitPrice:    dec(total),
		PurchaseType: purchaseType,
		PurchaseDate: date,
	}
}

func (e *env) purchase(t *testing.T, projectId string, date models.Date, total string, purchaseType models.PurchaseType) *models.MaterialPurchase {
	t.Helper()
	p, err := e.store.CreateMaterialPurchase(e.ctx, e.purchaseInput(projectId, date, total, purchaseType))
	require.NoError(t, err)
	return p
}

func (e *env) reconcile(t *testing.T, projectId string, date models.Date) *workflow.ReconcileResult {
	t.Helper()
	result, err := e.reconciler.Reconcile(e.ctx, projectId, date)
	require.NoError(t, err)
	return result
}

func (e *env) summaries(t *testing.T, projectId string) []*models.DailyExpenseSummary {
	t.Helper()
	rows, err := e.store.ListDailySummaries(e.ctx, projectId, "", "")
	require.NoError(t, err)
	return rows
}
