package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

type TransportationExpense struct {
	Base
	ProjectId   string          `gorm:"size:36;not null;index:idx_te_project_date,priority:1" json:"project_id"`
	WorkerId    *string         `gorm:"size:36;index" json:"worker_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	ExpenseDate Date            `gorm:"type:date;not null;index:idx_te_project_date,priority:2" json:"expense_date"`
	Notes       string          `gorm:"type:text" json:"notes"`
}

type NewTransportationExpense struct {
	ProjectId   string          `json:"project_id" validate:"required"`
	WorkerId    *string         `json:"worker_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required"`
	ExpenseDate Date            `json:"expense_date" validate:"required"`
	Notes       string          `json:"notes"`
}

func (e *TransportationExpense) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: e.ProjectId, Date: e.ExpenseDate}}
}

func (input *NewTransportationExpense) validate(ctx context.Context, s *Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	if err := validateResourceId[Project](ctx, s, "Project", input.ProjectId); err != nil {
		return err
	}
	if input.WorkerId != nil && *input.WorkerId == "" {
		input.WorkerId = nil
	}
	if input.WorkerId != nil {
		if err := validateResourceId[Worker](ctx, s, "Worker", *input.WorkerId); err != nil {
			return err
		}
	}
	return nil
}

func (e *TransportationExpense) apply(input *NewTransportationExpense) {
	e.ProjectId = input.ProjectId
	e.WorkerId = input.WorkerId
	e.Amount = input.Amount
	e.Description = input.Description
	e.ExpenseDate = input.ExpenseDate
	e.Notes = input.Notes
}

func (s *Store) CreateTransportationExpense(ctx context.Context, input *NewTransportationExpense) (*TransportationExpense, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	var expense TransportationExpense
	expense.apply(input)
	if err := s.conn(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, expense.SummaryKeys()...)
	return &expense, nil
}

func (s *Store) UpdateTransportationExpense(ctx context.Context, id string, input *NewTransportationExpense) (*TransportationExpense, error) {
	expense, err := s.GetTransportationExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	before := expense.SummaryKeys()
	expense.apply(input)
	if err := s.conn(ctx).Save(expense).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, append(before, expense.SummaryKeys()...)...)
	return expense, nil
}

func (s *Store) DeleteTransportationExpense(ctx context.Context, id string) (*TransportationExpense, error) {
	expense, err := s.GetTransportationExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[TransportationExpense](ctx, s, "TransportationExpense", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, expense.SummaryKeys()...)
	return expense, nil
}

func (s *Store) GetTransportationExpense(ctx context.Context, id string) (*TransportationExpense, error) {
	return getResource[TransportationExpense](ctx, s, "TransportationExpense", id)
}

func (s *Store) ListTransportationExpenses(ctx context.Context, projectId string, date Date) ([]*TransportationExpense, error) {
	var results []*TransportationExpense
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !date.IsZero() {
		db = db.Where("expense_date = ?", date)
	}
	if err := db.Order("expense_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
