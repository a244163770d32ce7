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

// SupplierStatementQuery bounds are optional; a blank ProjectId means every project.
type SupplierStatementQuery struct {
	SupplierId string
	ProjectId  string
	DateFrom   models.Date
	DateTo     models.Date
}

type SupplierStatementTotals struct {
	TotalPurchases    decimal.Decimal `json:"total_purchases"`
	CashPurchases     decimal.Decimal `json:"cash_purchases"`
	DeferredPurchases decimal.Decimal `json:"deferred_purchases"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	PurchaseCount     int             `json:"purchase_count"`
	PaymentCount      int             `json:"payment_count"`
}

type SupplierStatement struct {
	Supplier  *models.Supplier           `json:"supplier"`
	ProjectId string                     `json:"project_id,omitempty"`
	DateFrom  models.Date                `json:"date_from,omitempty"`
	DateTo    models.Date                `json:"date_to,omitempty"`
	Purchases []*models.MaterialPurchase `json:"purchases"`
	Payments  []*models.SupplierPayment  `json:"payments"`
	Totals    SupplierStatementTotals    `json:"totals"`
}

// BuildSupplierStatement lists a supplier's purchases and payments. What is
// still owed is deferred purchases minus payments; cash purchases were settled
// when made.
func (b *Builder) BuildSupplierStatement(ctx context.Context, q SupplierStatementQuery) (*SupplierStatement, error) {
	ctx, span := tracer.Start(ctx, "BuildSupplierStatement", trace.WithAttributes(
		attribute.String("supplier_id", q.SupplierId),
	))
	defer span.End()
	defer logSlowReport(ctx, b.logger, "supplier_statement", time.Now(), map[string]any{"supplier_id": q.SupplierId})

	supplier, err := b.store.GetSupplier(ctx, q.SupplierId)
	if err != nil {
		return nil, err
	}
	if !q.DateFrom.IsZero() && !q.DateTo.IsZero() && q.DateFrom.After(q.DateTo) {
		return nil, utils.NewFieldError("dateFrom", "ltefield", "dateFrom must not be after dateTo")
	}
	if q.ProjectId != "" {
		if _, err := b.store.GetProject(ctx, q.ProjectId); err != nil {
			return nil, err
		}
	}

	cacheKey := supplierStatementCacheKey(q)
	if cached := b.cache.getSupplierStatement(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	purchases, err := b.store.ListPurchasesForSupplier(ctx, supplier.ID, q.ProjectId, "", q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}
	payments, err := b.store.ListSupplierPayments(ctx, supplier.ID, q.ProjectId, q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}

	statement := &SupplierStatement{
		Supplier:  supplier,
		ProjectId: q.ProjectId,
		DateFrom:  q.DateFrom,
		DateTo:    q.DateTo,
		Purchases: make([]*models.MaterialPurchase, 0, len(purchases)),
		Payments:  make([]*models.SupplierPayment, 0, len(payments)),
	}
	t := &statement.Totals
	for _, p := range purchases {
		statement.Purchases = append(statement.Purchases, p)
		t.TotalPurchases = t.TotalPurchases.Add(p.TotalAmount)
		if p.IsCash() {
			t.CashPurchases = t.CashPurchases.Add(p.TotalAmount)
		} else {
			t.DeferredPurchases = t.DeferredPurchases.Add(p.TotalAmount)
		}
		t.PurchaseCount++
	}
	for _, p := range payments {
		statement.Payments = append(statement.Payments, p)
		t.TotalPaid = t.TotalPaid.Add(p.Amount)
		t.PaymentCount++
	}
	t.RemainingBalance = t.DeferredPurchases.Sub(t.TotalPaid)

	b.cache.setSupplierStatement(ctx, cacheKey, statement)
	return statement, nil
}
