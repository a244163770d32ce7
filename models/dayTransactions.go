package models

import (
	"context"
	"fmt"
)

// DayTransactions is everything that moved one project's cash on one day.
type DayTransactions struct {
	FundTransfers     []*FundTransfer          `json:"fund_transfers"`
	IncomingTransfers []*ProjectFundTransfer   `json:"incoming_project_transfers"`
	OutgoingTransfers []*ProjectFundTransfer   `json:"outgoing_project_transfers"`
	Attendance        []*WorkerAttendance      `json:"worker_attendance"`
	MaterialPurchases []*MaterialPurchase      `json:"material_purchases"`
	Transportation    []*TransportationExpense `json:"transportation_expenses"`
	WorkerTransfers   []*WorkerTransfer        `json:"worker_transfers"`
	MiscExpenses      []*WorkerMiscExpense     `json:"worker_misc_expenses"`
}

// Count is the number of records across all categories.
func (d *DayTransactions) Count() int {
	return len(d.FundTransfers) + len(d.IncomingTransfers) + len(d.OutgoingTransfers) +
		len(d.Attendance) + len(d.MaterialPurchases) + len(d.Transportation) +
		len(d.WorkerTransfers) + len(d.MiscExpenses)
}

// GetDayTransactions loads every category for (projectId, date). Any failed fetch fails the whole load.
func (s *Store) GetDayTransactions(ctx context.Context, projectId string, date Date) (*DayTransactions, error) {
	var day DayTransactions
	db := s.conn(ctx)

	fetches := []struct {
		name string
		run  func() error
	}{
		{"fund transfers", func() error {
			return db.Where("project_id = ? AND transfer_date = ?", projectId, date).Order("created_at").Find(&day.FundTransfers).Error
		}},
		{"incoming project transfers", func() error {
			return db.Where("to_project_id = ? AND transfer_date = ?", projectId, date).Order("created_at").Find(&day.IncomingTransfers).Error
		}},
		{"outgoing project transfers", func() error {
			return db.Where("from_project_id = ? AND transfer_date = ?", projectId, date).Order("created_at").Find(&day.OutgoingTransfers).Error
		}},
		{"worker attendance", func() error {
			return db.Where("project_id = ? AND attendance_date = ?", projectId, date).Order("created_at").Find(&day.Attendance).Error
		}},
		{"material purchases", func() error {
			return db.Where("project_id = ? AND purchase_date = ?", projectId, date).Order("created_at").Find(&day.MaterialPurchases).Error
		}},
		{"transportation expenses", func() error {
			return db.Where("project_id = ? AND expense_date = ?", projectId, date).Order("created_at").Find(&day.Transportation).Error
		}},
		{"worker transfers", func() error {
			return db.Where("project_id = ? AND transfer_date = ?", projectId, date).Order("created_at").Find(&day.WorkerTransfers).Error
		}},
		{"misc expenses", func() error {
			return db.Where("project_id = ? AND expense_date = ?", projectId, date).Order("created_at").Find(&day.MiscExpenses).Error
		}},
	}
	for _, f := range fetches {
		if err := f.run(); err != nil {
			return nil, fmt.Errorf("fetch %s for %s: %w", f.name, SummaryKey{projectId, date}, err)
		}
	}
	return &day, nil
}
