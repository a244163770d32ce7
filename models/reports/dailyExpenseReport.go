package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DailyExpenseReport is one project-day: every ledgered record next to the
// stored summary. Computed is what a reconcile would write now; InSync is false
// when the stored row is missing or differs from it.
type DailyExpenseReport struct {
	Project         *models.Project             `json:"project"`
	Date            models.Date                 `json:"date"`
	PreviousBalance decimal.Decimal             `json:"previous_balance"`
	Summary         *models.DailyExpenseSummary `json:"summary"`
	Computed        *models.DailyExpenseSummary `json:"computed"`
	InSync          bool                        `json:"in_sync"`
	*models.DayTransactions

	// filled by the transport layer through its request loaders
	WorkerNames  map[string]string `json:"worker_names"`
	ProjectNames map[string]string `json:"project_names"`
}

// WorkerIds lists the workers referenced by the day's records.
func (r *DailyExpenseReport) WorkerIds() []string {
	var ids []string
	for _, a := range r.Attendance {
		ids = append(ids, a.WorkerId)
	}
	for _, e := range r.Transportation {
		if e.WorkerId != nil && *e.WorkerId != "" {
			ids = append(ids, *e.WorkerId)
		}
	}
	for _, t := range r.WorkerTransfers {
		ids = append(ids, t.WorkerId)
	}
	return utils.UniqueSlice(ids)
}

// CounterpartProjectIds lists the other side of the day's inter-project transfers.
func (r *DailyExpenseReport) CounterpartProjectIds() []string {
	var ids []string
	for _, t := range r.IncomingTransfers {
		ids = append(ids, t.FromProjectId)
	}
	for _, t := range r.OutgoingTransfers {
		ids = append(ids, t.ToProjectId)
	}
	return utils.UniqueSlice(ids)
}

func (b *Builder) GetDailyExpenseReport(ctx context.Context, projectId string, date models.Date) (*DailyExpenseReport, error) {
	ctx, span := tracer.Start(ctx, "GetDailyExpenseReport", trace.WithAttributes(
		attribute.String("project_id", projectId),
		attribute.String("date", date.String()),
	))
	defer span.End()
	defer logSlowReport(ctx, b.logger, "daily_expense_report", time.Now(), map[string]any{"project_id": projectId, "date": date})

	report, err := b.dailyExpenseReport(ctx, projectId, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return report, nil
}

func (b *Builder) dailyExpenseReport(ctx context.Context, projectId string, date models.Date) (*DailyExpenseReport, error) {
	project, err := b.store.GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	day, err := b.store.GetDayTransactions(ctx, projectId, date)
	if err != nil {
		return nil, err
	}
	previous, err := b.store.GetPreviousBalance(ctx, projectId, date)
	if err != nil {
		return nil, err
	}
	computed, err := workflow.ComputeDailySummary(projectId, date, previous, day)
	if err != nil {
		return nil, err
	}

	summary, err := b.store.GetDailySummary(ctx, projectId, date)
	if err != nil {
		if !utils.IsNotFound(err) {
			return nil, err
		}
		summary = nil
	}

	return &DailyExpenseReport{
		Project:         project,
		Date:            date,
		PreviousBalance: previous,
		Summary:         summary,
		Computed:        computed,
		InSync:          summary != nil && summary.SameTotals(computed),
		DayTransactions: day,
		WorkerNames:     map[string]string{},
		ProjectNames:    map[string]string{},
	}, nil
}
