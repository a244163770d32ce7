package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecalculationError reports the first day that failed; nothing was written.
type RecalculationError struct {
	ProjectId string
	Date      models.Date
	Err       error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("recalculate balances for project %s failed at %s: %v", e.ProjectId, e.Date, e.Err)
}

func (e *RecalculationError) Unwrap() error {
	return e.Err
}

type RecalculationResult struct {
	ProjectId        string        `json:"project_id"`
	Days             int           `json:"days"`
	FirstDate        models.Date   `json:"first_date,omitempty"`
	LastDate         models.Date   `json:"last_date,omitempty"`
	RemovedRows      int64         `json:"removed_rows"`
	RemainingBalance string        `json:"remaining_balance"`
	Duration         time.Duration `json:"duration"`
}

// BalanceRecalculator rebuilds a project's whole summary history.
type BalanceRecalculator struct {
	reconciler *Reconciler
}

func NewBalanceRecalculator(reconciler *Reconciler) *BalanceRecalculator {
	return &BalanceRecalculator{reconciler: reconciler}
}

// RecalculateAll deletes every summary of projectId and reconciles each of its
// former dates in ascending order, so each day carries forward the already
// rebuilt day before it. Delete and rebuild share one transaction: on the first
// failing day the whole run is rolled back and a *RecalculationError names that day.
func (b *BalanceRecalculator) RecalculateAll(ctx context.Context, projectId string) (*RecalculationResult, error) {
	r := b.reconciler
	started := time.Now()
	userName, _ := utils.GetUserNameFromContext(ctx)
	ctx, span := tracer.Start(ctx, "RecalculateAll", trace.WithAttributes(attribute.String("project_id", projectId)))
	defer span.End()

	if err := r.checkProject(ctx, projectId); err != nil {
		return nil, err
	}

	unlock := r.locks.LockProject(ctx, projectId)
	defer unlock()

	result := &RecalculationResult{ProjectId: projectId, RemainingBalance: "0"}
	var summaries []*models.DailyExpenseSummary
	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		dates, err := r.store.ListSummaryDates(ctx, projectId)
		if err != nil {
			return err
		}
		removed, err := r.store.DeleteProjectSummaries(ctx, projectId)
		if err != nil {
			return err
		}
		result.RemovedRows = removed

		for _, date := range dates {
			day, err := r.reconcileLocked(ctx, projectId, date)
			if err != nil {
				return &RecalculationError{ProjectId: projectId, Date: date, Err: err}
			}
			summaries = append(summaries, day.Summary)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WithFields(logrus.Fields{
			"field":      "RecalculateAll",
			"project_id": projectId,
			"user_name":  userName,
		}).Error(err.Error())
		return nil, err
	}

	for _, summary := range summaries {
		r.notifier.SummaryReconciled(ctx, summary)
	}
	if n := len(summaries); n > 0 {
		result.Days = n
		result.FirstDate = summaries[0].SummaryDate
		result.LastDate = summaries[n-1].SummaryDate
		result.RemainingBalance = summaries[n-1].RemainingBalance.String()
	}
	result.Duration = time.Since(started)
	span.SetAttributes(attribute.Int("days", result.Days))

	r.logger.WithFields(logrus.Fields{
		"field":        "RecalculateAll",
		"project_id":   projectId,
		"days":         result.Days,
		"removed_rows": result.RemovedRows,
		"duration_ms":  result.Duration.Milliseconds(),
		"user_name":    userName,
	}).Info("recalculated daily balances")
	return result, nil
}
