package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// WorkerMiscExpense covers small site outlays (tea, tools, fees) paid from the project's cash.
type WorkerMiscExpense struct {
	Base
	ProjectId   string          `gorm:"size:36;not null;index:idx_wme_project_date,priority:1" json:"project_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	ExpenseDate Date            `gorm:"type:date;not null;index:idx_wme_project_date,priority:2" json:"expense_date"`
	Notes       string          `gorm:"type:text" json:"notes"`
}

type NewWorkerMiscExpense struct {
	ProjectId   string          `json:"project_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required"`
	ExpenseDate Date            `json:"expense_date" validate:"required"`
	Notes       string          `json:"notes"`
}

func (e *WorkerMiscExpense) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: e.ProjectId, Date: e.ExpenseDate}}
}

func (input *NewWorkerMiscExpense) validate(ctx context.Context, s *Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	return validateResourceId[Project](ctx, s, "Project", input.ProjectId)
}

func (e *WorkerMiscExpense) apply(input *NewWorkerMiscExpense) {
	e.ProjectId = input.ProjectId
	e.Amount = input.Amount
	e.Description = input.Description
	e.ExpenseDate = input.ExpenseDate
	e.Notes = input.Notes
}

func (s *Store) CreateWorkerMiscExpense(ctx context.Context, input *NewWorkerMiscExpense) (*WorkerMiscExpense, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	var expense WorkerMiscExpense
	expense.apply(input)
	if err := s.conn(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, expense.SummaryKeys()...)
	return &expense, nil
}

func (s *Store) UpdateWorkerMiscExpense(ctx context.Context, id string, input *NewWorkerMiscExpense) (*WorkerMiscExpense, error) {
	expense, err := s.GetWorkerMiscExpense(ctx, id)
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

func (s *Store) DeleteWorkerMiscExpense(ctx context.Context, id string) (*WorkerMiscExpense, error) {
	expense, err := s.GetWorkerMiscExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[WorkerMiscExpense](ctx, s, "WorkerMiscExpense", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, expense.SummaryKeys()...)
	return expense, nil
}

func (s *Store) GetWorkerMiscExpense(ctx context.Context, id string) (*WorkerMiscExpense, error) {
	return getResource[WorkerMiscExpense](ctx, s, "WorkerMiscExpense", id)
}

func (s *Store) ListWorkerMiscExpenses(ctx context.Context, projectId string, date Date) ([]*WorkerMiscExpense, error) {
	var results []*WorkerMiscExpense
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !date.IsZero() {
		db = db.Where("expense_date = ?", date)
	}
	if err := db.Order("expense_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
