package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// FundTransfer is money received by a project from outside (owner, client, bank).
type FundTransfer struct {
	Base
	ProjectId      string          `gorm:"size:36;not null;index:idx_ft_project_date,priority:1" json:"project_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	SenderName     string          `gorm:"size:255" json:"sender_name"`
	TransferNumber *string         `gorm:"size:100;uniqueIndex" json:"transfer_number"`
	TransferType   string          `gorm:"size:50" json:"transfer_type"`
	TransferDate   Date            `gorm:"type:date;not null;index:idx_ft_project_date,priority:2" json:"transfer_date"`
	Notes          string          `gorm:"type:text" json:"notes"`
}

type NewFundTransfer struct {
	ProjectId      string          `json:"project_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	SenderName     string          `json:"sender_name" validate:"max=255"`
	TransferNumber *string         `json:"transfer_number"`
	TransferType   string          `json:"transfer_type" validate:"max=50"`
	TransferDate   Date            `json:"transfer_date" validate:"required"`
	Notes          string          `json:"notes"`
}

func (t *FundTransfer) SummaryKeys() []SummaryKey {
	return []SummaryKey{{ProjectId: t.ProjectId, Date: t.TransferDate}}
}

func (input *NewFundTransfer) validate(ctx context.Context, s *Store, id string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	if err := validateResourceId[Project](ctx, s, "Project", input.ProjectId); err != nil {
		return err
	}
	if input.TransferNumber != nil {
		number := strings.TrimSpace(*input.TransferNumber)
		if number == "" {
			input.TransferNumber = nil
			return nil
		}
		input.TransferNumber = &number
		if err := validateUnique[FundTransfer](ctx, s, "transfer_number", number, id, "transfer number already exists"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateFundTransfer(ctx context.Context, input *NewFundTransfer) (*FundTransfer, error) {
	if err := input.validate(ctx, s, ""); err != nil {
		return nil, err
	}
	transfer := FundTransfer{
		ProjectId:      input.ProjectId,
		Amount:         input.Amount,
		SenderName:     strings.TrimSpace(input.SenderName),
		TransferNumber: input.TransferNumber,
		TransferType:   input.TransferType,
		TransferDate:   input.TransferDate,
		Notes:          input.Notes,
	}
	if err := s.conn(ctx).Create(&transfer).Error; err != nil {
		return nil, translateWriteError(err, "transfer_number", "transfer number already exists")
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return &transfer, nil
}

func (s *Store) UpdateFundTransfer(ctx context.Context, id string, input *NewFundTransfer) (*FundTransfer, error) {
	transfer, err := s.GetFundTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s, id); err != nil {
		return nil, err
	}
	before := transfer.SummaryKeys()

	transfer.ProjectId = input.ProjectId
	transfer.Amount = input.Amount
	transfer.SenderName = strings.TrimSpace(input.SenderName)
	transfer.TransferNumber = input.TransferNumber
	transfer.TransferType = input.TransferType
	transfer.TransferDate = input.TransferDate
	transfer.Notes = input.Notes
	if err := s.conn(ctx).Save(transfer).Error; err != nil {
		return nil, translateWriteError(err, "transfer_number", "transfer number already exists")
	}
	s.summaryChanged(ctx, append(before, transfer.SummaryKeys()...)...)
	return transfer, nil
}

func (s *Store) DeleteFundTransfer(ctx context.Context, id string) (*FundTransfer, error) {
	transfer, err := s.GetFundTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[FundTransfer](ctx, s, "FundTransfer", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return transfer, nil
}

func (s *Store) GetFundTransfer(ctx context.Context, id string) (*FundTransfer, error) {
	return getResource[FundTransfer](ctx, s, "FundTransfer", id)
}

// ListFundTransfers lists a project's transfers, optionally for one day.
func (s *Store) ListFundTransfers(ctx context.Context, projectId string, date Date) ([]*FundTransfer, error) {
	var results []*FundTransfer
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !date.IsZero() {
		db = db.Where("transfer_date = ?", date)
	}
	if err := db.Order("transfer_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
