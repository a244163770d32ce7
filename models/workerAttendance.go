package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// WorkerAttendance is one worker's day on one project: what was earned and what was paid out.
type WorkerAttendance struct {
	Base
	ProjectId       string          `gorm:"size:36;not null;uniqueIndex:idx_wa_worker_project_date,priority:2;index:idx_wa_project_date,priority:1" json:"project_id"`
	WorkerId        string          `gorm:"size:36;not null;uniqueIndex:idx_wa_worker_project_date,priority:1" json:"worker_id"`
	AttendanceDate  Date            `gorm:"type:date;not null;uniqueIndex:idx_wa_worker_project_date,priority:3;index:idx_wa_project_date,priority:2" json:"attendance_date"`
	StartTime       string          `gorm:"size:10" json:"start_time"`
	EndTime         string          `gorm:"size:10" json:"end_time"`
	WorkDescription string          `gorm:"type:text" json:"work_description"`
	WorkDays        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:1" json:"work_days"`
	DailyWage       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"daily_wage"`
	ActualWage      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"actual_wage"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"remaining_amount"`
	PaymentType     PaymentType     `gorm:"size:20;not null;default:full" json:"payment_type"`
}

type NewWorkerAttendance struct {
	ProjectId       string           `json:"project_id" validate:"required"`
	WorkerId        string           `json:"worker_id" validate:"required"`
	AttendanceDate  Date             `json:"attendance_date" validate:"required"`
	StartTime       string           `json:"start_time" validate:"max=10"`
	EndTime         string           `json:"end_time" validate:"max=10"`
	WorkDescription string           `json:"work_description"`
	WorkDays        *decimal.Decimal `json:"work_days"`
	DailyWage       decimal.Decimal  `json:"daily_wage"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	PaymentType     PaymentType      `json:"payment_type"`
}

func (a *WorkerAttendance) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: a.ProjectId, Date: a.AttendanceDate}}
}

// Earned is dailyWage × workDays.
func (a *WorkerAttendance) Earned() decimal.Decimal {
	return a.DailyWage.Mul(a.WorkDays)
}

func (input *NewWorkerAttendance) validate(ctx context.Context, s *Store, id string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.WorkDays == nil {
		one := decimal.NewFromInt(1)
		input.WorkDays = &one
	}
	if err := requirePositive("work_days", *input.WorkDays); err != nil {
		return err
	}
	if err := requireNonNegative("daily_wage", input.DailyWage); err != nil {
		return err
	}
	if err := requireNonNegative("paid_amount", input.PaidAmount); err != nil {
		return err
	}
	if input.PaymentType == "" {
		input.PaymentType = PaymentTypeFull
	}
	if !input.PaymentType.IsValid() {
		return utils.NewFieldError("payment_type", "oneof", "payment type must be full, partial or credit")
	}
	if input.PaymentType == PaymentTypeCredit && input.PaidAmount.IsPositive() {
		return utils.NewFieldError("paid_amount", "eq0", "credit attendance cannot carry a paid amount")
	}
	if err := validateResourceId[Project](ctx, s, "Project", input.ProjectId); err != nil {
		return err
	}
	if err := validateResourceId[Worker](ctx, s, "Worker", input.WorkerId); err != nil {
		return err
	}

	var (
		count int64
		err   error
	)
	cond := "worker_id = ? AND project_id = ? AND attendance_date = ?"
	if id == "" {
		count, err = resourceCountWhere[WorkerAttendance](ctx, s, cond, input.WorkerId, input.ProjectId, input.AttendanceDate)
	} else {
		count, err = resourceCountWhere[WorkerAttendance](ctx, s, cond+" AND NOT id = ?", input.WorkerId, input.ProjectId, input.AttendanceDate, id)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewConflictError("attendance_date", attendanceConflictMessage)
	}
	return nil
}

// apply copies input onto a and derives actual and remaining wage.
func (a *WorkerAttendance) apply(input *NewWorkerAttendance) {
	a.ProjectId = input.ProjectId
	a.WorkerId = input.WorkerId
	a.AttendanceDate = input.AttendanceDate
	a.StartTime = input.StartTime
	a.EndTime = input.EndTime
	a.WorkDescription = input.WorkDescription
	a.WorkDays = *input.WorkDays
	a.DailyWage = input.DailyWage
	a.PaidAmount = input.PaidAmount
	a.PaymentType = input.PaymentType

	a.ActualWage = a.Earned()
	if a.PaymentType == PaymentTypeCredit {
		a.RemainingAmount = a.ActualWage
	} else {
		a.RemainingAmount = a.ActualWage.Sub(a.PaidAmount)
	}
}

const attendanceConflictMessage = "attendance already recorded for this worker on this date"

func (s *Store) CreateWorkerAttendance(ctx context.Context, input *NewWorkerAttendance) (*WorkerAttendance, error) {
	if err := input.validate(ctx, s, ""); err != nil {
		return nil, err
	}
	var attendance WorkerAttendance
	attendance.apply(input)
	if err := s.conn(ctx).Create(&attendance).Error; err != nil {
		return nil, translateWriteError(err, "attendance_date", attendanceConflictMessage)
	}
	s.summaryChanged(ctx, attendance.SummaryKeys()...)
	return &attendance, nil
}

func (s *Store) UpdateWorkerAttendance(ctx context.Context, id string, input *NewWorkerAttendance) (*WorkerAttendance, error) {
	attendance, err := s.GetWorkerAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s, id); err != nil {
		return nil, err
	}
	before := attendance.SummaryKeys()
	attendance.apply(input)
	if err := s.conn(ctx).Save(attendance).Error; err != nil {
		return nil, translateWriteError(err, "attendance_date", attendanceConflictMessage)
	}
	s.summaryChanged(ctx, append(before, attendance.SummaryKeys()...)...)
	return attendance, nil
}

func (s *Store) DeleteWorkerAttendance(ctx context.Context, id string) (*WorkerAttendance, error) {
	attendance, err := s.GetWorkerAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[WorkerAttendance](ctx, s, "WorkerAttendance", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, attendance.SummaryKeys()...)
	return attendance, nil
}

func (s *Store) GetWorkerAttendance(ctx context.Context, id string) (*WorkerAttendance, error) {
	return getResource[WorkerAttendance](ctx, s, "WorkerAttendance", id)
}

func (s *Store) ListWorkerAttendance(ctx context.Context, projectId string, date Date) ([]*WorkerAttendance, error) {
	var results []*WorkerAttendance
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !date.IsZero() {
		db = db.Where("attendance_date = ?", date)
	}
	if err := db.Order("attendance_date DESC").Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListAttendanceForWorker returns the worker's attendance on the given projects within [from, to].
func (s *Store) ListAttendanceForWorker(ctx context.Context, workerId string, projectIds []string, from, to Date) ([]*WorkerAttendance, error) {
	var results []*WorkerAttendance
	db := s.conn(ctx).Where("worker_id = ?", workerId)
	if len(projectIds) > 0 {
		db = db.Where("project_id IN ?", projectIds)
	}
	if !from.IsZero() {
		db = db.Where("attendance_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("attendance_date <= ?", to)
	}
	if err := db.Order("attendance_date").Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
