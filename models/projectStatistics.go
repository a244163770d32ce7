package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatistics struct {
	ProjectId         string          `json:"project_id"`
	TotalWorkers      int64           `json:"total_workers"`
	ActiveWorkers     int64           `json:"active_workers"`
	CompletedDays     int64           `json:"completed_days"`
	MaterialPurchases int64           `json:"material_purchases"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	LastActivity      *Date           `json:"last_activity"`
}

// active = has attendance within this many days of asOf
const activeWorkerWindowDays = 30

// GetProjectStatistics summarises a project as of asOf. Money figures come from the latest summary.
func (s *Store) GetProjectStatistics(ctx context.Context, projectId string, asOf time.Time) (*ProjectStatistics, error) {
	if err := validateResourceId[Project](ctx, s, "Project", projectId); err != nil {
		return nil, err
	}
	stats := ProjectStatistics{
		ProjectId:      projectId,
		TotalIncome:    decimal.Zero,
		TotalExpenses:  decimal.Zero,
		CurrentBalance: decimal.Zero,
	}
	db := s.conn(ctx)

	if err := db.Model(&WorkerAttendance{}).
		Where("project_id = ?", projectId).
		Distinct("worker_id").
		Count(&stats.TotalWorkers).Error; err != nil {
		return nil, err
	}
	since := DateOf(asOf).AddDays(-activeWorkerWindowDays)
	if err := db.Model(&WorkerAttendance{}).
		Where("project_id = ? AND attendance_date >= ?", projectId, since).
		Distinct("worker_id").
		Count(&stats.ActiveWorkers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&DailyExpenseSummary{}).
		Where("project_id = ?", projectId).
		Count(&stats.CompletedDays).Error; err != nil {
		return nil, err
	}
	count, err := resourceCountWhere[MaterialPurchase](ctx, s, "project_id = ?", projectId)
	if err != nil {
		return nil, err
	}
	stats.MaterialPurchases = count

	latest, err := s.GetLatestSummary(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		stats.TotalIncome = latest.TotalIncome
		stats.TotalExpenses = latest.TotalExpenses
		stats.CurrentBalance = latest.RemainingBalance
		last := latest.SummaryDate
		stats.LastActivity = &last
	}
	return &stats, nil
}
