package reports

import (
	"context"

	"github.com/shopspring/decimal"
)

// WorkerBalance is derived on every call and never stored.
type WorkerBalance struct {
	WorkerId         string          `json:"worker_id"`
	ProjectId        string          `json:"project_id"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
}

// GetWorkerBalance is earned - paid - transferred over the worker's whole history on the project.
func (b *Builder) GetWorkerBalance(ctx context.Context, workerId, projectId string) (*WorkerBalance, error) {
	if _, err := b.store.GetWorker(ctx, workerId); err != nil {
		return nil, err
	}
	if _, err := b.store.GetProject(ctx, projectId); err != nil {
		return nil, err
	}
	projectIds := []string{projectId}
	attendance, err := b.store.ListAttendanceForWorker(ctx, workerId, projectIds, "", "")
	if err != nil {
		return nil, err
	}
	transfers, err := b.store.ListTransfersForWorker(ctx, workerId, projectIds, "", "")
	if err != nil {
		return nil, err
	}

	var totals StatementTotals
	for _, a := range attendance {
		totals.addAttendance(a)
	}
	for _, t := range transfers {
		totals.addTransfer(t)
	}
	totals.settle()

	return &WorkerBalance{
		WorkerId:         workerId,
		ProjectId:        projectId,
		TotalEarned:      totals.TotalEarned,
		TotalPaid:        totals.TotalPaid,
		TotalTransferred: totals.TotalTransferred,
		CurrentBalance:   totals.NetBalance,
	}, nil
}
