package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// SupplierPayment settles deferred purchases. It is a supplier-account movement and
// does not enter the project's daily cash summary.
type SupplierPayment struct {
	Base
	SupplierId      string          `gorm:"size:36;not null;index:idx_sp_supplier_date,priority:1" json:"supplier_id"`
	ProjectId       *string         `gorm:"size:36;index" json:"project_id"`
	PurchaseId      *string         `gorm:"size:36;index" json:"purchase_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	PaymentMethod   string          `gorm:"size:50;not null;default:cash" json:"payment_method"`
	PaymentDate     Date            `gorm:"type:date;not null;index:idx_sp_supplier_date,priority:2" json:"payment_date"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
}

type NewSupplierPayment struct {
	SupplierId      string          `json:"supplier_id" validate:"required"`
	ProjectId       *string         `json:"project_id"`
	PurchaseId      *string         `json:"purchase_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method" validate:"max=50"`
	PaymentDate     Date            `json:"payment_date" validate:"required"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Notes           string          `json:"notes"`
}

func (input *NewSupplierPayment) validate(ctx context.Context, s *Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = "cash"
	}
	if err := validateResourceId[Supplier](ctx, s, "Supplier", input.SupplierId); err != nil {
		return err
	}
	if input.ProjectId != nil && *input.ProjectId == "" {
		input.ProjectId = nil
	}
	if input.ProjectId != nil {
		if err := validateResourceId[Project](ctx, s, "Project", *input.ProjectId); err != nil {
			return err
		}
	}
	if input.PurchaseId != nil && *input.PurchaseId == "" {
		input.PurchaseId = nil
	}
	if input.PurchaseId != nil {
		purchase, err := s.GetMaterialPurchase(ctx, *input.PurchaseId)
		if err != nil {
			return err
		}
		if purchase.SupplierId == nil || *purchase.SupplierId != input.SupplierId {
			return utils.NewFieldError("purchase_id", "supplier", "purchase does not belong to this supplier")
		}
	}
	return nil
}

func (p *SupplierPayment) apply(input *NewSupplierPayment) {
	p.SupplierId = input.SupplierId
	p.ProjectId = input.ProjectId
	p.PurchaseId = input.PurchaseId
	p.Amount = input.Amount
	p.PaymentMethod = input.PaymentMethod
	p.PaymentDate = input.PaymentDate
	p.ReferenceNumber = input.ReferenceNumber
	p.Notes = input.Notes
}

func (s *Store) CreateSupplierPayment(ctx context.Context, input *NewSupplierPayment) (*SupplierPayment, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	var payment SupplierPayment
	payment.apply(input)
	if err := s.conn(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) UpdateSupplierPayment(ctx context.Context, id string, input *NewSupplierPayment) (*SupplierPayment, error) {
	payment, err := s.GetSupplierPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	payment.apply(input)
	if err := s.conn(ctx).Save(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Store) DeleteSupplierPayment(ctx context.Context, id string) (*SupplierPayment, error) {
	payment, err := s.GetSupplierPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[SupplierPayment](ctx, s, "SupplierPayment", id); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Store) GetSupplierPayment(ctx context.Context, id string) (*SupplierPayment, error) {
	return getResource[SupplierPayment](ctx, s, "SupplierPayment", id)
}

// ListSupplierPayments filters by supplier, optional project and [from, to].
func (s *Store) ListSupplierPayments(ctx context.Context, supplierId string, projectId string, from, to Date) ([]*SupplierPayment, error) {
	var results []*SupplierPayment
	db := s.conn(ctx).Where("supplier_id = ?", supplierId)
	if projectId != "" {
		db = db.Where("project_id = ?", projectId)
	}
	if !from.IsZero() {
		db = db.Where("payment_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("payment_date <= ?", to)
	}
	if err := db.Order("payment_date").Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
