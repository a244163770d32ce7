package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sitebooks_backend/workflow")

// ReconcileResult describes one reconcile of a project-day.
type ReconcileResult struct {
	Summary *models.DailyExpenseSummary `json:"summary"`
	// Changed is false when the stored row already had these totals.
	Changed           bool  `json:"changed"`
	DuplicatesRemoved int64 `json:"duplicates_removed"`
	// LaterSummaries counts summaries after this day; they are not recomputed.
	LaterSummaries int64 `json:"later_summaries"`
}

// StaleLaterSummaries reports summaries whose carried-forward amount may now be wrong.
func (r *ReconcileResult) StaleLaterSummaries() int64 {
	if r == nil || !r.Changed {
		return 0
	}
	return r.LaterSummaries
}

type Reconciler struct {
	store    *models.Store
	locks    *SummaryLocks
	notifier SummaryNotifier
	logger   *logrus.Logger
}

func NewReconciler(store *models.Store, locks *SummaryLocks, notifier SummaryNotifier, logger *logrus.Logger) *Reconciler {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if locks == nil {
		locks = NewSummaryLocks(nil, logger)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{store: store, locks: locks, notifier: notifier, logger: logger}
}

// Reconcile recomputes and stores the summary of (projectId, date).
//
// The read, compute and write run in one database transaction while holding
// the project-day lock, so a failed fetch or integrity check leaves the stored
// row untouched.
func (r *Reconciler) Reconcile(ctx context.Context, projectId string, date models.Date) (*ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.String("project_id", projectId),
		attribute.String("date", date.String()),
	))
	defer span.End()

	if err := r.checkProject(ctx, projectId); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unlock := r.locks.LockDay(ctx, models.SummaryKey{ProjectId: projectId, Date: date})
	defer unlock()

	var result *ReconcileResult
	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.reconcileLocked(ctx, projectId, date)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logFailure(ctx, projectId, date, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("changed", result.Changed))
	r.afterCommit(ctx, result)
	return result, nil
}

// FixDay drops the stored row for (projectId, date) and reconciles it from scratch.
func (r *Reconciler) FixDay(ctx context.Context, projectId string, date models.Date) (*ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "FixDay", trace.WithAttributes(
		attribute.String("project_id", projectId),
		attribute.String("date", date.String()),
	))
	defer span.End()

	if err := r.checkProject(ctx, projectId); err != nil {
		return nil, err
	}

	unlock := r.locks.LockDay(ctx, models.SummaryKey{ProjectId: projectId, Date: date})
	defer unlock()

	var result *ReconcileResult
	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		removed, err := r.store.DeleteDailySummary(ctx, projectId, date)
		if err != nil {
			return err
		}
		result, err = r.reconcileLocked(ctx, projectId, date)
		if err != nil {
			return err
		}
		result.DuplicatesRemoved += max(removed-1, 0)
		result.Changed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		r.logFailure(ctx, projectId, date, err)
		return nil, err
	}
	r.afterCommit(ctx, result)
	return result, nil
}

func (r *Reconciler) checkProject(ctx context.Context, projectId string) error {
	_, err := r.store.GetProject(ctx, projectId)
	return err
}

// reconcileLocked runs the reconcile steps on the caller's transaction. The
// caller holds the day (or project) lock and publishes after commit.
func (r *Reconciler) reconcileLocked(ctx context.Context, projectId string, date models.Date) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	removed, err := r.store.RemoveDuplicateSummaries(ctx, projectId, date)
	if err != nil {
		return nil, err
	}
	result.DuplicatesRemoved = removed
	if removed > 0 {
		r.logger.WithFields(logrus.Fields{
			"field":      "Reconcile",
			"project_id": projectId,
			"date":       date,
			"removed":    removed,
		}).Warn("removed duplicate daily summaries")
	}

	var previous *models.DailyExpenseSummary
	stored, err := r.store.GetDailySummary(ctx, projectId, date)
	switch {
	case err == nil:
		previous = stored
	case !utils.IsNotFound(err):
		return nil, err
	}

	carriedForward, err := r.store.GetPreviousBalance(ctx, projectId, date)
	if err != nil {
		return nil, err
	}
	day, err := r.store.GetDayTransactions(ctx, projectId, date)
	if err != nil {
		return nil, err
	}
	summary, err := ComputeDailySummary(projectId, date, carriedForward, day)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertDailySummary(ctx, summary); err != nil {
		return nil, err
	}

	later, err := r.store.CountSummariesAfter(ctx, projectId, date)
	if err != nil {
		return nil, err
	}

	result.Summary = summary
	result.Changed = previous == nil || !previous.SameTotals(summary)
	result.LaterSummaries = later
	return result, nil
}

func (r *Reconciler) afterCommit(ctx context.Context, result *ReconcileResult) {
	if result == nil || result.Summary == nil {
		return
	}
	if stale := result.StaleLaterSummaries(); stale > 0 {
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		r.logger.WithFields(logrus.Fields{
			"field":           "Reconcile",
			"project_id":      result.Summary.ProjectId,
			"date":            result.Summary.SummaryDate,
			"later_summaries": stale,
			"correlation_id":  correlationId,
		}).Warn("later summaries may be stale")
	}
	if result.Changed {
		r.notifier.SummaryReconciled(ctx, result.Summary)
	}
}

func (r *Reconciler) logFailure(ctx context.Context, projectId string, date models.Date, err error) {
	if utils.IsNotFound(err) {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	config.LogError(r.logger, "reconciler.go", "Reconcile", "reconcile daily summary", map[string]interface{}{
		"project_id":     projectId,
		"date":           date,
		"correlation_id": correlationId,
		"at":             time.Now().UTC(),
	}, err)
}
