package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// WorkerTransfer is a remittance sent on a worker's behalf (usually to family), paid from the project's cash.
type WorkerTransfer struct {
	Base
	WorkerId       string          `gorm:"size:36;not null;index" json:"worker_id"`
	ProjectId      string          `gorm:"size:36;not null;index:idx_wt_project_date,priority:1" json:"project_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	RecipientName  string          `gorm:"size:255;not null" json:"recipient_name"`
	RecipientPhone string          `gorm:"size:32" json:"recipient_phone"`
	TransferMethod TransferMethod  `gorm:"size:20;not null;default:hawala" json:"transfer_method"`
	TransferNumber string          `gorm:"size:100" json:"transfer_number"`
	TransferDate   Date            `gorm:"type:date;not null;index:idx_wt_project_date,priority:2" json:"transfer_date"`
	Notes          string          `gorm:"type:text" json:"notes"`
}

type NewWorkerTransfer struct {
	WorkerId       string          `json:"worker_id" validate:"required"`
	ProjectId      string          `json:"project_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	RecipientName  string          `json:"recipient_name" validate:"required,max=255"`
	RecipientPhone string          `json:"recipient_phone"`
	TransferMethod TransferMethod  `json:"transfer_method"`
	TransferNumber string          `json:"transfer_number" validate:"max=100"`
	TransferDate   Date            `json:"transfer_date" validate:"required"`
	Notes          string          `json:"notes"`
}

func (t *WorkerTransfer) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: t.ProjectId, Date: t.TransferDate}}
}

func (input *NewWorkerTransfer) validate(ctx context.Context, s *Store) error {
	input.RecipientName = strings.TrimSpace(input.RecipientName)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	if input.TransferMethod == "" {
		input.TransferMethod = TransferMethodHawala
	}
	if !input.TransferMethod.IsValid() {
		return utils.NewFieldError("transfer_method", "oneof", "transfer method must be hawala, bank or cash")
	}
	phone, err := utils.NormalizePhone("recipient_phone", input.RecipientPhone)
	if err != nil {
		return err
	}
	input.RecipientPhone = phone
	if err := validateResourceId[Project](ctx, s, "Project", input.ProjectId); err != nil {
		return err
	}
	return validateResourceId[Worker](ctx, s, "Worker", input.WorkerId)
}

func (t *WorkerTransfer) apply(input *NewWorkerTransfer) {
	t.WorkerId = input.WorkerId
	t.ProjectId = input.ProjectId
	t.Amount = input.Amount
	t.RecipientName = input.RecipientName
	t.RecipientPhone = input.RecipientPhone
	t.TransferMethod = input.TransferMethod
	t.TransferNumber = strings.TrimSpace(input.TransferNumber)
	t.TransferDate = input.TransferDate
	t.Notes = input.Notes
}

func (s *Store) CreateWorkerTransfer(ctx context.Context, input *NewWorkerTransfer) (*WorkerTransfer, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	var transfer WorkerTransfer
	transfer.apply(input)
	if err := s.conn(ctx).Create(&transfer).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return &transfer, nil
}

func (s *Store) UpdateWorkerTransfer(ctx context.Context, id string, input *NewWorkerTransfer) (*WorkerTransfer, error) {
	transfer, err := s.GetWorkerTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	before := transfer.SummaryKeys()
	transfer.apply(input)
	if err := s.conn(ctx).Save(transfer).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, append(before, transfer.SummaryKeys()...)...)
	return transfer, nil
}

func (s *Store) DeleteWorkerTransfer(ctx context.Context, id string) (*WorkerTransfer, error) {
	transfer, err := s.GetWorkerTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[WorkerTransfer](ctx, s, "WorkerTransfer", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return transfer, nil
}

func (s *Store) GetWorkerTransfer(ctx context.Context, id string) (*WorkerTransfer, error) {
	return getResource[WorkerTransfer](ctx, s, "WorkerTransfer", id)
}

// ListWorkerTransfers filters by project and/or worker and optional day. Blank filters are ignored.
func (s *Store) ListWorkerTransfers(ctx context.Context, projectId string, workerId string, date Date) ([]*WorkerTransfer, error) {
	var results []*WorkerTransfer
	db := s.conn(ctx)
	if projectId != "" {
		db = db.Where("project_id = ?", projectId)
	}
	if workerId != "" {
		db = db.Where("worker_id = ?", workerId)
	}
	if !date.IsZero() {
		db = db.Where("transfer_date = ?", date)
	}
	if err := db.Order("transfer_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListTransfersForWorker returns the worker's remittances on the given projects within [from, to].
func (s *Store) ListTransfersForWorker(ctx context.Context, workerId string, projectIds []string, from, to Date) ([]*WorkerTransfer, error) {
	var results []*WorkerTransfer
	db := s.conn(ctx).Where("worker_id = ?", workerId)
	if len(projectIds) > 0 {
		db = db.Where("project_id IN ?", projectIds)
	}
	if !from.IsZero() {
		db = db.Where("transfer_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("transfer_date <= ?", to)
	}
	if err := db.Order("transfer_date").Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
