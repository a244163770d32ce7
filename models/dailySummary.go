package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryKey identifies one daily summary row.
type SummaryKey struct {
	ProjectId string `json:"project_id"`
	Date      Date   `json:"date"`
}

func (k SummaryKey) String() string {
	return k.ProjectId + "@" + string(k.Date)
}

// DailyExpenseSummary is the cash position of one project at the end of one day.
//
// Grain: (project_id, summary_date), enforced by a unique index.
// NOTE: This table is derived data and can be rebuilt from the transaction tables.
type DailyExpenseSummary struct {
	Base
	ProjectId   string `gorm:"size:36;not null;uniqueIndex:idx_des_project_date,priority:1" json:"project_id"`
	SummaryDate Date   `gorm:"type:date;not null;uniqueIndex:idx_des_project_date,priority:2" json:"date"`

	CarriedForwardAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"carried_forward_amount"`

	TotalFundTransfers       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_fund_transfers"`
	TotalProjectTransfersIn  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_project_transfers_in"`
	TotalWorkerWages         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_worker_wages"`
	TotalMaterialCosts       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_material_costs"`
	TotalDeferredPurchases   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_deferred_purchases"`
	TotalTransportationCosts decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_transportation_costs"`
	TotalWorkerTransfers     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_worker_transfers"`
	TotalMiscExpenses        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_misc_expenses"`
	TotalProjectTransfersOut decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_project_transfers_out"`

	TotalIncome      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_income"`
	TotalExpenses    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_expenses"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
}

func (d *DailyExpenseSummary) Key() SummaryKey {
	return SummaryKey{ProjectId: d.ProjectId, Date: d.SummaryDate}
}

// SameTotals reports whether every computed amount matches (timestamps and ids ignored).
func (d *DailyExpenseSummary) SameTotals(o *DailyExpenseSummary) bool {
	if d == nil || o == nil {
		return d == o
	}
	pairs := [][2]decimal.Decimal{
		{d.CarriedForwardAmount, o.CarriedForwardAmount},
		{d.TotalFundTransfers, o.TotalFundTransfers},
		{d.TotalProjectTransfersIn, o.TotalProjectTransfersIn},
		{d.TotalWorkerWages, o.TotalWorkerWages},
		{d.TotalMaterialCosts, o.TotalMaterialCosts},
		{d.TotalDeferredPurchases, o.TotalDeferredPurchases},
		{d.TotalTransportationCosts, o.TotalTransportationCosts},
		{d.TotalWorkerTransfers, o.TotalWorkerTransfers},
		{d.TotalMiscExpenses, o.TotalMiscExpenses},
		{d.TotalProjectTransfersOut, o.TotalProjectTransfersOut},
		{d.TotalIncome, o.TotalIncome},
		{d.TotalExpenses, o.TotalExpenses},
		{d.RemainingBalance, o.RemainingBalance},
	}
	for _, p := range pairs {
		if !p[0].Equal(p[1]) {
			return false
		}
	}
	return true
}

// columns rewritten on every upsert
var summaryValueColumns = []string{
	"carried_forward_amount",
	"total_fund_transfers",
	"total_project_transfers_in",
	"total_worker_wages",
	"total_material_costs",
	"total_deferred_purchases",
	"total_transportation_costs",
	"total_worker_transfers",
	"total_misc_expenses",
	"total_project_transfers_out",
	"total_income",
	"total_expenses",
	"remaining_balance",
	"updated_at",
}

// GetDailySummary returns the row for (projectId, date) or *utils.NotFoundError.
func (s *Store) GetDailySummary(ctx context.Context, projectId string, date Date) (*DailyExpenseSummary, error) {
	var summary DailyExpenseSummary
	err := s.conn(ctx).
		Where("project_id = ? AND summary_date = ?", projectId, date).
		Order("created_at DESC").
		Take(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("DailyExpenseSummary", SummaryKey{projectId, date}.String())
		}
		return nil, err
	}
	return &summary, nil
}

// GetPreviousBalance is the remaining balance of the latest summary strictly before date, or 0.
func (s *Store) GetPreviousBalance(ctx context.Context, projectId string, date Date) (decimal.Decimal, error) {
	var rows []DailyExpenseSummary
	err := s.conn(ctx).
		Where("project_id = ? AND summary_date < ?", projectId, date).
		Order("summary_date DESC").
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].RemainingBalance, nil
}

// UpsertDailySummary writes summary in place of any existing row for its key.
// summary.ID and CreatedAt are filled from the stored row.
func (s *Store) UpsertDailySummary(ctx context.Context, summary *DailyExpenseSummary) error {
	conn := s.conn(ctx)

	var existing []DailyExpenseSummary
	err := conn.
		Where("project_id = ? AND summary_date = ?", summary.ProjectId, summary.SummaryDate).
		Order("created_at DESC").
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return err
	}

	summary.UpdatedAt = time.Now().UTC()
	if len(existing) > 0 {
		summary.ID = existing[0].ID
		summary.CreatedAt = existing[0].CreatedAt
		return conn.Model(&DailyExpenseSummary{}).
			Where("id = ?", summary.ID).
			Select(summaryValueColumns).
			Updates(summary).Error
	}

	if summary.ID == "" {
		summary.ID = newId()
	}
	// a concurrent insert for the same key turns into an update
	return conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "summary_date"}},
		DoUpdates: clause.AssignmentColumns(summaryValueColumns),
	}).Create(summary).Error
}

// RemoveDuplicateSummaries keeps the most recently created row for (projectId, date)
// and deletes the rest. It returns how many rows were removed.
func (s *Store) RemoveDuplicateSummaries(ctx context.Context, projectId string, date Date) (int64, error) {
	var ids []string
	err := s.conn(ctx).Model(&DailyExpenseSummary{}).
		Where("project_id = ? AND summary_date = ?", projectId, date).
		Order("created_at DESC").
		Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) <= 1 {
		return 0, nil
	}
	result := s.conn(ctx).Where("id IN ?", ids[1:]).Delete(&DailyExpenseSummary{})
	return result.RowsAffected, result.Error
}

// ListSummaryDates returns every date with a summary for the project, ascending.
func (s *Store) ListSummaryDates(ctx context.Context, projectId string) ([]Date, error) {
	var dates []Date
	err := s.conn(ctx).Model(&DailyExpenseSummary{}).
		Distinct("summary_date").
		Where("project_id = ?", projectId).
		Order("summary_date").
		Pluck("summary_date", &dates).Error
	return dates, err
}

// NextSummaryDate is the first summary date strictly after date.
func (s *Store) NextSummaryDate(ctx context.Context, projectId string, date Date) (Date, bool, error) {
	var rows []DailyExpenseSummary
	err := s.conn(ctx).
		Where("project_id = ? AND summary_date > ?", projectId, date).
		Order("summary_date").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	return rows[0].SummaryDate, true, nil
}

func (s *Store) CountSummariesAfter(ctx context.Context, projectId string, date Date) (int64, error) {
	return resourceCountWhere[DailyExpenseSummary](ctx, s, "project_id = ? AND summary_date > ?", projectId, date)
}

func (s *Store) DeleteDailySummary(ctx context.Context, projectId string, date Date) (int64, error) {
	result := s.conn(ctx).
		Where("project_id = ? AND summary_date = ?", projectId, date).
		Delete(&DailyExpenseSummary{})
	return result.RowsAffected, result.Error
}

func (s *Store) DeleteProjectSummaries(ctx context.Context, projectId string) (int64, error) {
	result := s.conn(ctx).Where("project_id = ?", projectId).Delete(&DailyExpenseSummary{})
	return result.RowsAffected, result.Error
}

// ListDailySummaries returns the project's summaries in [from, to], ascending. Blank bounds are open.
func (s *Store) ListDailySummaries(ctx context.Context, projectId string, from, to Date) ([]*DailyExpenseSummary, error) {
	var results []*DailyExpenseSummary
	db := s.conn(ctx).Where("project_id = ?", projectId)
	if !from.IsZero() {
		db = db.Where("summary_date >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("summary_date <= ?", to)
	}
	if err := db.Order("summary_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetLatestSummary returns the newest summary of the project, or nil.
func (s *Store) GetLatestSummary(ctx context.Context, projectId string) (*DailyExpenseSummary, error) {
	var rows []DailyExpenseSummary
	err := s.conn(ctx).
		Where("project_id = ?", projectId).
		Order("summary_date DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}
