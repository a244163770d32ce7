package reports

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sitebooks_backend/reports")

type WorkerStatementQuery struct {
	WorkerId   string
	ProjectIds []string
	DateFrom   models.Date
	DateTo     models.Date
}

// ParseProjectIds accepts a single projectId or a comma separated projectIds list.
func ParseProjectIds(projectId string, projectIds string) []string {
	var ids []string
	if id := strings.TrimSpace(projectId); id != "" {
		ids = append(ids, id)
	}
	for _, part := range strings.Split(projectIds, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return utils.UniqueSlice(ids)
}

func (q *WorkerStatementQuery) validate() error {
	fields := map[string]string{}
	if q.DateFrom.IsZero() {
		fields["dateFrom"] = "required"
	}
	if q.DateTo.IsZero() {
		fields["dateTo"] = "required"
	}
	if len(q.ProjectIds) == 0 {
		fields["projectId"] = "required"
	}
	if len(fields) > 0 {
		return &utils.ValidationError{Message: "dateFrom, dateTo and projectId or projectIds are required", Fields: fields}
	}
	if q.DateFrom.After(q.DateTo) {
		return utils.NewFieldError("dateFrom", "ltefield", "dateFrom must not be after dateTo")
	}
	return nil
}

type StatementTotals struct {
	TotalWorkDays    decimal.Decimal `json:"total_work_days"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	AttendanceCount  int             `json:"attendance_count"`
	TransferCount    int             `json:"transfer_count"`
}

func (t *StatementTotals) addAttendance(a *models.WorkerAttendance) {
	t.TotalWorkDays = t.TotalWorkDays.Add(a.WorkDays)
	t.TotalEarned = t.TotalEarned.Add(a.Earned())
	t.TotalPaid = t.TotalPaid.Add(a.PaidAmount)
	t.AttendanceCount++
}

func (t *StatementTotals) addTransfer(tr *models.WorkerTransfer) {
	t.TotalTransferred = t.TotalTransferred.Add(tr.Amount)
	t.TransferCount++
}

func (t *StatementTotals) add(o StatementTotals) {
	t.TotalWorkDays = t.TotalWorkDays.Add(o.TotalWorkDays)
	t.TotalEarned = t.TotalEarned.Add(o.TotalEarned)
	t.TotalPaid = t.TotalPaid.Add(o.TotalPaid)
	t.TotalTransferred = t.TotalTransferred.Add(o.TotalTransferred)
	t.AttendanceCount += o.AttendanceCount
	t.TransferCount += o.TransferCount
}

func (t *StatementTotals) settle() {
	t.NetBalance = t.TotalEarned.Sub(t.TotalPaid).Sub(t.TotalTransferred)
}

type ProjectStatement struct {
	Project    *models.Project            `json:"project"`
	Attendance []*models.WorkerAttendance `json:"attendance"`
	Transfers  []*models.WorkerTransfer   `json:"transfers"`
	Totals     StatementTotals            `json:"totals"`
}

type WorkerStatement struct {
	Worker     *models.Worker             `json:"worker"`
	DateFrom   models.Date                `json:"date_from"`
	DateTo     models.Date                `json:"date_to"`
	Projects   []*ProjectStatement        `json:"projects"`
	Attendance []*models.WorkerAttendance `json:"attendance"`
	Transfers  []*models.WorkerTransfer   `json:"transfers"`
	Totals     StatementTotals            `json:"totals"`
}

// BuildWorkerStatement gathers a worker's attendance and remittances on the
// requested projects within [DateFrom, DateTo], grouped per project (in request
// order) and summed to a grand total. No activity yields zero totals, not an error.
func (b *Builder) BuildWorkerStatement(ctx context.Context, q WorkerStatementQuery) (*WorkerStatement, error) {
	ctx, span := tracer.Start(ctx, "BuildWorkerStatement", trace.WithAttributes(
		attribute.String("worker_id", q.WorkerId),
		attribute.Int("projects", len(q.ProjectIds)),
	))
	defer span.End()
	defer logSlowReport(ctx, b.logger, "worker_statement", time.Now(), map[string]any{"worker_id": q.WorkerId})

	worker, err := b.store.GetWorker(ctx, q.WorkerId)
	if err != nil {
		return nil, err
	}
	q.ProjectIds = utils.UniqueSlice(q.ProjectIds)
	if err := q.validate(); err != nil {
		return nil, err
	}

	cacheKey := workerStatementCacheKey(q)
	if cached := b.cache.getWorkerStatement(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	projects, err := b.store.ValidateProjectIds(ctx, q.ProjectIds)
	if err != nil {
		return nil, err
	}
	byId := make(map[string]*models.Project, len(projects))
	for _, p := range projects {
		byId[p.ID] = p
	}

	attendance, err := b.store.ListAttendanceForWorker(ctx, worker.ID, q.ProjectIds, q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}
	transfers, err := b.store.ListTransfersForWorker(ctx, worker.ID, q.ProjectIds, q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}

	statement := &WorkerStatement{
		Worker:     worker,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		Projects:   make([]*ProjectStatement, 0, len(q.ProjectIds)),
		Attendance: make([]*models.WorkerAttendance, 0, len(attendance)),
		Transfers:  make([]*models.WorkerTransfer, 0, len(transfers)),
	}
	groups := make(map[string]*ProjectStatement, len(q.ProjectIds))
	for _, id := range q.ProjectIds {
		group := &ProjectStatement{
			Project:    byId[id],
			Attendance: []*models.WorkerAttendance{},
			Transfers:  []*models.WorkerTransfer{},
		}
		groups[id] = group
		statement.Projects = append(statement.Projects, group)
	}

	for _, a := range attendance {
		group := groups[a.ProjectId]
		if group == nil {
			continue
		}
		group.Attendance = append(group.Attendance, a)
		group.Totals.addAttendance(a)
		statement.Attendance = append(statement.Attendance, a)
	}
	for _, t := range transfers {
		group := groups[t.ProjectId]
		if group == nil {
			continue
		}
		group.Transfers = append(group.Transfers, t)
		group.Totals.addTransfer(t)
		statement.Transfers = append(statement.Transfers, t)
	}
	for _, group := range statement.Projects {
		group.Totals.settle()
		statement.Totals.add(group.Totals)
	}
	statement.Totals.settle()

	b.cache.setWorkerStatement(ctx, cacheKey, statement)
	return statement, nil
}
