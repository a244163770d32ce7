package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
)

type Supplier struct {
	Base
	Name          string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	ContactPerson string `gorm:"size:255" json:"contact_person"`
	Phone         string `gorm:"size:32" json:"phone"`
	Address       string `gorm:"type:text" json:"address"`
	PaymentTerms  string `gorm:"size:100" json:"payment_terms"`
	Notes         string `gorm:"type:text" json:"notes"`
	IsActive      *bool  `gorm:"not null;default:true" json:"is_active"`
}

type NewSupplier struct {
	Name          string `json:"name" validate:"required,max=255"`
	ContactPerson string `json:"contact_person" validate:"max=255"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentTerms  string `json:"payment_terms" validate:"max=100"`
	Notes         string `json:"notes"`
	IsActive      *bool  `json:"is_active"`
}

func (input *NewSupplier) validate(ctx context.Context, s *Store, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	phone, err := utils.NormalizePhone("phone", input.Phone)
	if err != nil {
		return err
	}
	input.Phone = phone
	if input.IsActive == nil {
		active := true
		input.IsActive = &active
	}
	return validateUnique[Supplier](ctx, s, "name", input.Name, id, "supplier name already exists")
}

func (s *Store) CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(ctx, s, ""); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		Address:       input.Address,
		PaymentTerms:  input.PaymentTerms,
		Notes:         input.Notes,
		IsActive:      input.IsActive,
	}
	if err := s.conn(ctx).Create(&supplier).Error; err != nil {
		return nil, translateWriteError(err, "name", "supplier name already exists")
	}
	return &supplier, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, id string, input *NewSupplier) (*Supplier, error) {
	supplier, err := s.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s, id); err != nil {
		return nil, err
	}
	supplier.Name = input.Name
	supplier.ContactPerson = input.ContactPerson
	supplier.Phone = input.Phone
	supplier.Address = input.Address
	supplier.PaymentTerms = input.PaymentTerms
	supplier.Notes = input.Notes
	supplier.IsActive = input.IsActive
	if err := s.conn(ctx).Save(supplier).Error; err != nil {
		return nil, translateWriteError(err, "name", "supplier name already exists")
	}
	return supplier, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) (*Supplier, error) {
	supplier, err := s.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	purchases, err := resourceCountWhere[MaterialPurchase](ctx, s, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	payments, err := resourceCountWhere[SupplierPayment](ctx, s, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if purchases+payments > 0 {
		return nil, utils.NewConflictError("id", "supplier still has purchases or payments")
	}
	if err := s.conn(ctx).Delete(supplier).Error; err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	return getResource[Supplier](ctx, s, "Supplier", id)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	var results []*Supplier
	if err := s.conn(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
