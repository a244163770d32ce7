package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// ProjectFundTransfer moves cash from one project's box to another's on the same day.
type ProjectFundTransfer struct {
	Base
	FromProjectId string          `gorm:"size:36;not null;index:idx_pft_from_date,priority:1" json:"from_project_id"`
	ToProjectId   string          `gorm:"size:36;not null;index:idx_pft_to_date,priority:1" json:"to_project_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	TransferDate  Date            `gorm:"type:date;not null;index:idx_pft_from_date,priority:2;index:idx_pft_to_date,priority:2" json:"transfer_date"`
	Reason        string          `gorm:"size:255" json:"reason"`
	Description   string          `gorm:"type:text" json:"description"`
}

type NewProjectFundTransfer struct {
	FromProjectId string          `json:"from_project_id" validate:"required"`
	ToProjectId   string          `json:"to_project_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	TransferDate  Date            `json:"transfer_date" validate:"required"`
	Reason        string          `json:"reason" validate:"max=255"`
	Description   string          `json:"description"`
}

// SummaryKeys covers both sides: outgoing for the sender, incoming for the receiver.
func (t *ProjectFundTransfer) SummaryKeys() []SummaryKey {
	return []SummaryKey{
		{ProjectId: t.FromProjectId, Date: t.TransferDate},
		{ProjectId: t.ToProjectId, Date: t.TransferDate},
	}
}

func (input *NewProjectFundTransfer) validate(ctx context.Context, s *Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("amount", input.Amount); err != nil {
		return err
	}
	if input.FromProjectId == input.ToProjectId {
		return utils.NewFieldError("to_project_id", "nefield", "cannot transfer funds to the same project")
	}
	if err := validateResourceId[Project](ctx, s, "Project", input.FromProjectId); err != nil {
		return err
	}
	return validateResourceId[Project](ctx, s, "Project", input.ToProjectId)
}

func (s *Store) CreateProjectFundTransfer(ctx context.Context, input *NewProjectFundTransfer) (*ProjectFundTransfer, error) {
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	transfer := ProjectFundTransfer{
		FromProjectId: input.FromProjectId,
		ToProjectId:   input.ToProjectId,
		Amount:        input.Amount,
		TransferDate:  input.TransferDate,
		Reason:        input.Reason,
		Description:   input.Description,
	}
	if err := s.conn(ctx).Create(&transfer).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return &transfer, nil
}

func (s *Store) UpdateProjectFundTransfer(ctx context.Context, id string, input *NewProjectFundTransfer) (*ProjectFundTransfer, error) {
	transfer, err := s.GetProjectFundTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s); err != nil {
		return nil, err
	}
	before := transfer.SummaryKeys()

	transfer.FromProjectId = input.FromProjectId
	transfer.ToProjectId = input.ToProjectId
	transfer.Amount = input.Amount
	transfer.TransferDate = input.TransferDate
	transfer.Reason = input.Reason
	transfer.Description = input.Description
	if err := s.conn(ctx).Save(transfer).Error; err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, append(before, transfer.SummaryKeys()...)...)
	return transfer, nil
}

func (s *Store) DeleteProjectFundTransfer(ctx context.Context, id string) (*ProjectFundTransfer, error) {
	transfer, err := s.GetProjectFundTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deleteById[ProjectFundTransfer](ctx, s, "ProjectFundTransfer", id); err != nil {
		return nil, err
	}
	s.summaryChanged(ctx, transfer.SummaryKeys()...)
	return transfer, nil
}

func (s *Store) GetProjectFundTransfer(ctx context.Context, id string) (*ProjectFundTransfer, error) {
	return getResource[ProjectFundTransfer](ctx, s, "ProjectFundTransfer", id)
}

// ListProjectFundTransfers lists transfers touching projectId (either side). Blank projectId lists all.
func (s *Store) ListProjectFundTransfers(ctx context.Context, projectId string, date Date) ([]*ProjectFundTransfer, error) {
	var results []*ProjectFundTransfer
	db := s.conn(ctx)
	if projectId != "" {
		db = db.Where("from_project_id = ? OR to_project_id = ?", projectId, projectId)
	}
	if !date.IsZero() {
		db = db.Where("transfer_date = ?", date)
	}
	if err := db.Order("transfer_date DESC").Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
