package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are DB-free. They pin the arithmetic of one project-day.

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeDailySummary_AllCategories(t *testing.T) {
	day := &models.DayTransactions{
		FundTransfers:     []*models.FundTransfer{{Amount: dec("1000")}, {Amount: dec("250.50")}},
		IncomingTransfers: []*models.ProjectFundTransfer{{Amount: dec("300")}},
		OutgoingTransfers: []*models.ProjectFundTransfer{{Amount: dec("100")}},
		Attendance: []*models.WorkerAttendance{
			{DailyWage: dec("200"), WorkDays: dec("1"), PaidAmount: dec("200")},
			{DailyWage: dec("150"), WorkDays: dec("2"), PaidAmount: dec("50")},
		},
		MaterialPurchases: []*models.MaterialPurchase{
			{PurchaseType: models.PurchaseTypeCash, TotalAmount: dec("120")},
			{PurchaseType: models.PurchaseTypeDeferred, TotalAmount: dec("900")},
		},
		Transportation:  []*models.TransportationExpense{{Amount: dec("30")}},
		WorkerTransfers: []*models.WorkerTransfer{{Amount: dec("75")}},
		MiscExpenses:    []*models.WorkerMiscExpense{{Amount: dec("5.25")}},
	}

	s, err := ComputeDailySummary("p1", "2024-03-02", dec("40"), day)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"carried", s.CarriedForwardAmount, "40"},
		{"fund transfers", s.TotalFundTransfers, "1250.50"},
		{"transfers in", s.TotalProjectTransfersIn, "300"},
		{"transfers out", s.TotalProjectTransfersOut, "100"},
		{"wages", s.TotalWorkerWages, "250"},
		{"material", s.TotalMaterialCosts, "120"},
		{"deferred", s.TotalDeferredPurchases, "900"},
		{"transport", s.TotalTransportationCosts, "30"},
		{"worker transfers", s.TotalWorkerTransfers, "75"},
		{"misc", s.TotalMiscExpenses, "5.25"},
		{"income", s.TotalIncome, "1590.50"},
		{"expenses", s.TotalExpenses, "580.25"},
		{"remaining", s.RemainingBalance, "1010.25"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s: got %s want %s", c.name, c.got, c.want)
		}
	}
	if s.ProjectId != "p1" || s.SummaryDate != "2024-03-02" {
		t.Fatalf("unexpected key %s@%s", s.ProjectId, s.SummaryDate)
	}
}

func TestComputeDailySummary_DeferredPurchaseNeverCounts(t *testing.T) {
	for _, amount := range []string{"0.01", "500", "99999999.9999"} {
		day := &models.DayTransactions{
			MaterialPurchases: []*models.MaterialPurchase{{PurchaseType: models.PurchaseTypeDeferred, TotalAmount: dec(amount)}},
		}
		s, err := ComputeDailySummary("p1", "2024-03-02", dec("100"), day)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if !s.TotalExpenses.IsZero() {
			t.Fatalf("deferred %s: expenses %s, want 0", amount, s.TotalExpenses)
		}
		if !s.RemainingBalance.Equal(dec("100")) {
			t.Fatalf("deferred %s: remaining %s, want 100", amount, s.RemainingBalance)
		}
		if !s.TotalDeferredPurchases.Equal(dec(amount)) {
			t.Fatalf("deferred %s: deferred total %s", amount, s.TotalDeferredPurchases)
		}
	}
}

func TestComputeDailySummary_WagesArePaidNotEarned(t *testing.T) {
	day := &models.DayTransactions{
		Attendance: []*models.WorkerAttendance{{DailyWage: dec("200"), WorkDays: dec("2"), PaidAmount: decimal.Zero}},
	}
	s, err := ComputeDailySummary("p1", "2024-03-02", decimal.Zero, day)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !s.TotalWorkerWages.IsZero() || !s.TotalExpenses.IsZero() {
		t.Fatalf("unpaid attendance counted: wages %s expenses %s", s.TotalWorkerWages, s.TotalExpenses)
	}
}

func TestComputeDailySummary_ZeroActivityCarriesForward(t *testing.T) {
	for _, day := range []*models.DayTransactions{nil, {}} {
		s, err := ComputeDailySummary("p1", "2024-03-02", dec("1234.5"), day)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if !s.TotalIncome.Equal(dec("1234.5")) || !s.TotalExpenses.IsZero() || !s.RemainingBalance.Equal(dec("1234.5")) {
			t.Fatalf("zero-activity day: income %s expenses %s remaining %s", s.TotalIncome, s.TotalExpenses, s.RemainingBalance)
		}
	}
}

func TestComputeDailySummary_NegativeBalanceIsAllowed(t *testing.T) {
	day := &models.DayTransactions{
		MiscExpenses: []*models.WorkerMiscExpense{{Amount: dec("70")}},
	}
	s, err := ComputeDailySummary("p1", "2024-03-02", dec("20"), day)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !s.RemainingBalance.Equal(dec("-50")) {
		t.Fatalf("remaining %s, want -50", s.RemainingBalance)
	}
}

func TestCheckBalanceIntegrity(t *testing.T) {
	ok := &models.DailyExpenseSummary{
		TotalIncome:      dec("100"),
		TotalExpenses:    dec("40"),
		RemainingBalance: dec("60.009"),
	}
	if err := CheckBalanceIntegrity(ok); err != nil {
		t.Fatalf("within tolerance: %v", err)
	}

	bad := &models.DailyExpenseSummary{
		ProjectId:        "p1",
		SummaryDate:      "2024-03-02",
		TotalIncome:      dec("100"),
		TotalExpenses:    dec("40"),
		RemainingBalance: dec("60.01"),
	}
	err := CheckBalanceIntegrity(bad)
	var integrity *BalanceIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected BalanceIntegrityError, got %v", err)
	}
	if integrity.ProjectId != "p1" || integrity.Date != "2024-03-02" {
		t.Fatalf("error lost its key: %+v", integrity)
	}
	if retryable(err) {
		t.Fatal("integrity errors must not be retried")
	}
}

func TestReconcileQueueBackoffIsCapped(t *testing.T) {
	q := NewReconcileQueue(nil, nil, QueueOptions{InitialBackoff: 500 * time.Millisecond})
	if got := q.backoff(1); got.Milliseconds() != 500 {
		t.Fatalf("attempt 1 backoff %s", got)
	}
	if got := q.backoff(3); got.Milliseconds() != 2000 {
		t.Fatalf("attempt 3 backoff %s", got)
	}
	if got := q.backoff(40); got != q.MaxBackoff {
		t.Fatalf("attempt 40 backoff %s, want cap %s", got, q.MaxBackoff)
	}
}
