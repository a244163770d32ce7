package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

type Worker struct {
	Base
	Name      string          `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Type      string          `gorm:"size:100" json:"type"`
	DailyWage decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"daily_wage"`
	Phone     string          `gorm:"size:32" json:"phone"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
}

type NewWorker struct {
	Name      string          `json:"name" validate:"required,max=255"`
	Type      string          `json:"type" validate:"max=100"`
	DailyWage decimal.Decimal `json:"daily_wage"`
	Phone     string          `json:"phone"`
	IsActive  *bool           `json:"is_active"`
}

func (input *NewWorker) validate(ctx context.Context, s *Store, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Type = strings.TrimSpace(input.Type)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requireNonNegative("daily_wage", input.DailyWage); err != nil {
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
	return validateUnique[Worker](ctx, s, "name", input.Name, id, "worker name already exists")
}

func (s *Store) CreateWorker(ctx context.Context, input *NewWorker) (*Worker, error) {
	if err := input.validate(ctx, s, ""); err != nil {
		return nil, err
	}
	worker := Worker{
		Name:      input.Name,
		Type:      input.Type,
		DailyWage: input.DailyWage,
		Phone:     input.Phone,
		IsActive:  input.IsActive,
	}
	if err := s.conn(ctx).Create(&worker).Error; err != nil {
		return nil, translateWriteError(err, "name", "worker name already exists")
	}
	return &worker, nil
}

func (s *Store) UpdateWorker(ctx context.Context, id string, input *NewWorker) (*Worker, error) {
	worker, err := s.GetWorker(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s, id); err != nil {
		return nil, err
	}
	worker.Name = input.Name
	worker.Type = input.Type
	worker.DailyWage = input.DailyWage
	worker.Phone = input.Phone
	worker.IsActive = input.IsActive
	if err := s.conn(ctx).Save(worker).Error; err != nil {
		return nil, translateWriteError(err, "name", "worker name already exists")
	}
	return worker, nil
}

// DeleteWorker refuses while attendance or transfers reference the worker.
func (s *Store) DeleteWorker(ctx context.Context, id string) (*Worker, error) {
	worker, err := s.GetWorker(ctx, id)
	if err != nil {
		return nil, err
	}
	attendance, err := resourceCountWhere[WorkerAttendance](ctx, s, "worker_id = ?", id)
	if err != nil {
		return nil, err
	}
	transfers, err := resourceCountWhere[WorkerTransfer](ctx, s, "worker_id = ?", id)
	if err != nil {
		return nil, err
	}
	if attendance+transfers > 0 {
		return nil, utils.NewConflictError("id", "worker still has attendance or transfers")
	}
	if err := s.conn(ctx).Delete(worker).Error; err != nil {
		return nil, err
	}
	return worker, nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (*Worker, error) {
	return getResource[Worker](ctx, s, "Worker", id)
}

func (s *Store) ListWorkers(ctx context.Context, activeOnly bool) ([]*Worker, error) {
	var results []*Worker
	db := s.conn(ctx).Order("name")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	if err := db.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) GetWorkersByIds(ctx context.Context, ids []string) ([]*Worker, error) {
	var results []*Worker
	if len(ids) == 0 {
		return results, nil
	}
	if err := s.conn(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetWorkerProjects lists the projects a worker has attendance on, by name.
func (s *Store) GetWorkerProjects(ctx context.Context, workerId string) ([]*Project, error) {
	if err := validateResourceId[Worker](ctx, s, "Worker", workerId); err != nil {
		return nil, err
	}
	var results []*Project
	sub := s.conn(ctx).Model(&WorkerAttendance{}).Select("project_id").Where("worker_id = ?", workerId)
	if err := s.conn(ctx).Where("id IN (?)", sub).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
