package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// MaterialPurchase is a purchase of material for a project. Only cash purchases leave the
// project's cash box on the purchase date; deferred purchases are owed to the supplier.
type MaterialPurchase struct {
	Base
	ProjectId       string          `gorm:"size:36;not null;index:idx_mp_project_date,priority:1" json:"project_id"`
	MaterialId      string          `gorm:"size:36;not null;index" json:"material_id"`
	SupplierId      *string         `gorm:"size:36;index" json:"supplier_id"`
	SupplierName    string          `gorm:"size:255" json:"supplier_name"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	PurchaseType    PurchaseType    `gorm:"size:20;not null;default:cash" json:"purchase_type"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_amount"`
	InvoiceNumber   string          `gorm:"size:100" json:"invoice_number"`
	InvoiceDate     Date            `gorm:"type:date" json:"invoice_date"`
	PurchaseDate    Date            `gorm:"type:date;not null;index:idx_mp_project_date,priority:2" json:"purchase_date"`
	Notes           string          `gorm:"type:text" json:"notes"`
}

// NewMaterialPurchase names its material either by MaterialId or by (MaterialName, MaterialUnit).
type NewMaterialPurchase struct {
	ProjectId        string          `json:"project_id" validate:"required"`
	MaterialId       string          `json:"material_id"`
	MaterialName     string          `json:"material_name" validate:"max=255"`
	MaterialUnit     string          `json:"material_unit" validate:"max=50"`
	MaterialCategory string          `json:"material_category" validate:"max=100"`
	SupplierId       *string         `json:"supplier_id"`
	SupplierName     string          `json:"supplier_name" validate:"max=255"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	PurchaseType     PurchaseType    `json:"purchase_type"`
	InvoiceNumber    string          `json:"invoice_number" validate:"max=100"`
	InvoiceDate      Date            `json:"invoice_date"`
	PurchaseDate     Date            `json:"purchase_date" validate:"required"`
	Notes            string          `json:"notes"`
}

func (p *MaterialPurchase) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: p.ProjectId, Date: p.PurchaseDate}}
}

func (p *MaterialPurchase) IsCash() bool {
	return p.PurchaseType == PurchaseTypeCash
}

func (input *NewMaterialPurchase) validate(ctx context.Context, s *Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return err
	}
	if err := requirePositive("unit_price", input.UnitPrice); err != nil {
		return err
	}
	if input.PurchaseType == "" {
		input.PurchaseType = PurchaseTypeCash
	}
	if input.PurchaseType != PurchaseTypeCash && input.PurchaseType != PurchaseTypeDeferred {
		return utils.NewFieldError("purchase_type", "oneof", "purchase type must be cash or deferred")
	}
	if input.MaterialId == "" && (strings.TrimSpace(input.MaterialName) == "" || strings.TrimSpace(input.MaterialUnit) == "") {
		return utils.NewFieldError("material_id", "required", "material_id or material_name and material_unit are required")
	}
	if err := validateResourceId[Project](ctx, s, "Project", input.ProjectId); err != nil {
		return err
	}
	if input.MaterialId != "" {
		if err := validateResourceId[Material](ctx, s, "Material", input.MaterialId); err != nil {
			return err
		}
	}
	if input.SupplierId != nil && *input.SupplierId == "" {
		input.SupplierId = nil
	}
	if input.SupplierId != nil {
		supplier, err := s.GetSupplier(ctx, *input.SupplierId)
		if err != nil {
			return err
		}
		if strings.TrimSpace(input.SupplierName) == "" {
			input.SupplierName = supplier.Name
		}
	}
	if input.PurchaseType == PurchaseTypeDeferred && input.SupplierId == nil && strings.TrimSpace(input.SupplierName) == "" {
		return utils.NewFieldError("supplier_name", "required_if", "deferred purchases need a supplier")
	}
	return nil
}

// resolveMaterial finds or creates the named material inside the caller's transaction.
func (input *NewMaterialPurchase) resolveMaterial(ctx context.Context, s *Store) (string, error) {
	if input.MaterialId != "" {
		return input.MaterialId, nil
	}
	material, err := s.findOrCreateMaterial(ctx, NewMaterial{
		Name:     input.MaterialName,
		Unit:     input.MaterialUnit,
		Category: input.MaterialCategory,
	})
	if err != nil {
		return "", err
	}
	return material.ID, nil
}

// apply copies input onto p and derives total, paid and remaining amounts.
func (p *MaterialPurchase) apply(input *NewMaterialPurchase, materialId string) {
	p.ProjectId = input.ProjectId
	p.MaterialId = materialId
	p.SupplierId = input.SupplierId
	p.SupplierName = strings.TrimSpace(input.SupplierName)
	p.Quantity = input.Quantity
	p.UnitPrice = input.UnitPrice
	p.PurchaseType = input.PurchaseType
	p.InvoiceNumber = input.InvoiceNumber
	p.InvoiceDate = input.InvoiceDate
	p.PurchaseDate = input.PurchaseDate
	p.Notes = input.Notes

	p.TotalAmount = p.Quantity.Mul(p.UnitPrice).Round(4)
	if p.PurchaseType == PurchaseTypeDeferred {
		p.PaidAmount = decimal.Zero
		p.RemainingAmount = p.TotalAmount
	} else {
		p.PaidAmount = p.TotalAmount
		p.RemainingAmount = decimal.Zero
	}
}

func (s *Store) CreateMaterialPurchase(ctx context.Context, input *NewMaterialPurchase) (*MaterialPurchase, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	var purchase MaterialPurchase
	err := s.Transaction(ctx, func(ctx context.Context) error {
		materialId, err := input.resolveMaterial(ctx, s)
		if err != nil {
			return err
		}
		purchase.apply(input, materialId)
		return s.conn(ctx).Create(&purchase).Error
	})
	if err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, purchase.SummaryKeys()...)
	return &purchase, nil
}

func (s *Store) UpdateMaterialPurchase(ctx context.Context, id string, input *NewMaterialPurchase) (*MaterialPurchase, error) {
	purchase, err := s.GetMaterialPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	before := purchase.SummaryKeys()
	err = s.Transaction(ctx, func(ctx context.Context) error {
		materialId, err := input.resolveMaterial(ctx, s)
		if err != nil {
			return err
		}
		purchase.apply(input, materialId)
		return s.conn(ctx).Save(purchase).Error
	})
	if err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, append(before, purchase.SummaryKeys()...)...)
	return purchase, nil
}

func (s *Store) DeleteMaterialPurchase(ctx context.Context, id string) (*MaterialPurchase, error) {
	purchase, err := s.GetMaterialPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[MaterialPurchase](ctx, s, "MaterialPurchase", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, purchase.SummaryKeys()...)
	return purchase, nil
}

func (s *Store) GetMaterialPurchase(ctx context.Context, id string) (*MaterialPurchase, error) {
	return getResource[MaterialPurchase](ctx, s, "MaterialPurchase", id)
}

// ListMaterialPurchases lists a project's purchases within [from, to]. Blank bounds are open.
func (s *Store) ListMaterialPurchases(ctx context.Context, projectId string, from, to Date) ([]*MaterialPurchase, error) {
	var results []*MaterialPurchase
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !from.IsZero() {
		db = db.Where("purchase_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("purchase_date <= ?", to)
	}
	if err := db.Order("purchase_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListPurchasesForSupplier filters by supplier, optional project, optional type and [from, to].
func (s *Store) ListPurchasesForSupplier(ctx context.Context, supplierId string, projectId string, purchaseType PurchaseType, from, to Date) ([]*MaterialPurchase, error) {
	var results []*MaterialPurchase
	db := s.conn(ctx).Where("supplier_id = ?", supplierId)
	if projectId != "" {
		db = db.Where("project_id = ?", projectId)
	}
	if purchaseType != "" {
		db = db.Where("purchase_type = ?", purchaseType)
	}
	if !from.IsZero() {
		db = db.Where("purchase_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("purchase_date <= ?", to)
	}
	if err := db.Order("purchase_date").Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
