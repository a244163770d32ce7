package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReconcileQueue runs reconciles in the background after transaction writes.
//
// Keys waiting in the queue are deduplicated: a key enqueued again before a
// worker picks it up is folded into the waiting entry. A key enqueued while it
// is being reconciled is queued once more, so the last write is always seen.
// Failed reconciles are retried with exponential backoff up to MaxAttempts.
type ReconcileQueue struct {
	reconciler   *Reconciler
	logger       *logrus.Logger
	DispatcherID string

	Workers          int
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	CascadeBackdated bool

	jobs chan reconcileJob

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[models.SummaryKey]struct{}
	running  int
	retrying int
	closed   bool
	stats    QueueStats
}

type reconcileJob struct {
	key           models.SummaryKey
	attempt       int
	correlationId string
}

type QueueStats struct {
	DispatcherID string     `json:"dispatcher_id"`
	Capacity     int        `json:"capacity"`
	Pending      int        `json:"pending"`
	Running      int        `json:"running"`
	Retrying     int        `json:"retrying"`
	Enqueued     int64      `json:"enqueued"`
	Deduplicated int64      `json:"deduplicated"`
	Dropped      int64      `json:"dropped"`
	Succeeded    int64      `json:"succeeded"`
	Retried      int64      `json:"retried"`
	Failed       int64      `json:"failed"`
	Cascaded     int64      `json:"cascaded"`
	LastError    string     `json:"last_error,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
}

type QueueOptions struct {
	Workers          int
	QueueSize        int
	MaxAttempts      int
	InitialBackoff   time.Duration
	CascadeBackdated bool
}

func NewReconcileQueue(reconciler *Reconciler, logger *logrus.Logger, opts QueueOptions) *ReconcileQueue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	q := &ReconcileQueue{
		reconciler:       reconciler,
		logger:           logger,
		DispatcherID:     uuid.NewString(),
		Workers:          opts.Workers,
		MaxAttempts:      opts.MaxAttempts,
		InitialBackoff:   opts.InitialBackoff,
		MaxBackoff:       10 * time.Minute,
		CascadeBackdated: opts.CascadeBackdated,
		jobs:             make(chan reconcileJob, opts.QueueSize),
		pending:          map[models.SummaryKey]struct{}{},
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// SummaryChanged implements models.ChangeHook.
func (q *ReconcileQueue) SummaryChanged(ctx context.Context, keys ...models.SummaryKey) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	for _, key := range keys {
		q.enqueue(reconcileJob{key: key, attempt: 1, correlationId: correlationId})
	}
}

// Enqueue schedules a reconcile of key. It never blocks.
func (q *ReconcileQueue) Enqueue(ctx context.Context, key models.SummaryKey) bool {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return q.enqueue(reconcileJob{key: key, attempt: 1, correlationId: correlationId})
}

func (q *ReconcileQueue) enqueue(job reconcileJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.stats.Dropped++
		q.logJob(job).Warn("reconcile queue closed; dropping key")
		return false
	}
	if _, ok := q.pending[job.key]; ok {
		q.stats.Deduplicated++
		return true
	}
	select {
	case q.jobs <- job:
		q.pending[job.key] = struct{}{}
		q.stats.Enqueued++
		return true
	default:
		q.stats.Dropped++
		q.logJob(job).Error("reconcile queue full; dropping key, run recalculate-balances for this project")
		return false
	}
}

// Run starts the workers and blocks until ctx is done and they have stopped.
func (q *ReconcileQueue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}
	q.logger.WithFields(logrus.Fields{
		"field":         "ReconcileQueue",
		"dispatcher_id": q.DispatcherID,
		"workers":       q.Workers,
	}).Info("reconcile queue started")

	<-ctx.Done()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	wg.Wait()
}

func (q *ReconcileQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *ReconcileQueue) process(ctx context.Context, job reconcileJob) {
	q.mu.Lock()
	delete(q.pending, job.key)
	q.running++
	q.mu.Unlock()

	jobCtx := context.WithoutCancel(ctx)
	if job.correlationId != "" {
		jobCtx = utils.SetCorrelationIdInContext(jobCtx, job.correlationId)
	}
	result, err := q.reconciler.Reconcile(jobCtx, job.key.ProjectId, job.key.Date)

	// follow-up work is registered before this job stops counting as running
	if err != nil {
		q.fail(job, err)
	} else if q.CascadeBackdated && result.StaleLaterSummaries() > 0 {
		q.cascade(jobCtx, job)
	}

	q.mu.Lock()
	q.running--
	if err == nil {
		q.stats.Succeeded++
	}
	q.idle.Broadcast()
	q.mu.Unlock()
}

// cascade schedules the next summarised day after a reconcile changed this day's balance.
func (q *ReconcileQueue) cascade(ctx context.Context, job reconcileJob) {
	next, ok, err := q.reconciler.store.NextSummaryDate(ctx, job.key.ProjectId, job.key.Date)
	if err != nil {
		q.logJob(job).Warn("cascade lookup failed: " + err.Error())
		return
	}
	if !ok {
		return
	}
	if q.enqueue(reconcileJob{key: models.SummaryKey{ProjectId: job.key.ProjectId, Date: next}, attempt: 1, correlationId: job.correlationId}) {
		q.mu.Lock()
		q.stats.Cascaded++
		q.mu.Unlock()
	}
}

func (q *ReconcileQueue) fail(job reconcileJob, err error) {
	now := time.Now().UTC()
	q.mu.Lock()
	q.stats.LastError = err.Error()
	q.stats.LastErrorAt = &now
	q.mu.Unlock()

	if !retryable(err) || job.attempt >= q.MaxAttempts {
		q.mu.Lock()
		q.stats.Failed++
		q.mu.Unlock()
		q.logJob(job).WithField("attempt", job.attempt).Error("reconcile failed permanently: " + err.Error())
		return
	}

	backoff := q.backoff(job.attempt)
	q.logJob(job).WithFields(logrus.Fields{
		"attempt":       job.attempt,
		"next_attempt":  now.Add(backoff).Format(time.RFC3339Nano),
		"backoff_ms":    backoff.Milliseconds(),
		"dispatcher_id": q.DispatcherID,
	}).Warn("reconcile failed; will retry: " + err.Error())

	q.mu.Lock()
	q.retrying++
	q.stats.Retried++
	q.mu.Unlock()

	next := job
	next.attempt++
	time.AfterFunc(backoff, func() {
		q.enqueue(next)
		q.mu.Lock()
		q.retrying--
		q.idle.Broadcast()
		q.mu.Unlock()
	})
}

func (q *ReconcileQueue) backoff(attempt int) time.Duration {
	backoff := q.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > q.MaxBackoff {
			return q.MaxBackoff
		}
	}
	return backoff
}

// retryable is false for errors a retry cannot fix.
func retryable(err error) bool {
	var integrity *BalanceIntegrityError
	if errors.As(err, &integrity) {
		return false
	}
	return !utils.IsNotFound(err)
}

// WaitIdle blocks until nothing is queued, running or waiting to be retried.
func (q *ReconcileQueue) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.idle.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 || q.running > 0 || q.retrying > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.idle.Wait()
	}
	return nil
}

func (q *ReconcileQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.DispatcherID = q.DispatcherID
	s.Capacity = cap(q.jobs)
	s.Pending = len(q.pending)
	s.Running = q.running
	s.Retrying = q.retrying
	return s
}

func (q *ReconcileQueue) logJob(job reconcileJob) *logrus.Entry {
	return q.logger.WithFields(logrus.Fields{
		"field":          "ReconcileQueue",
		"project_id":     job.key.ProjectId,
		"date":           job.key.Date,
		"correlation_id": job.correlationId,
	})
}
