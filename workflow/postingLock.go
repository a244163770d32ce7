package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// SummaryLocks serializes summary writers.
//
// In process: a project-day reconcile holds the project's read lock plus the
// day's mutex; a whole-project recalculation holds the project's write lock.
// Across instances both take the project's key in Redis, so a recalculation on
// one instance also excludes day reconciles of that project on the others.
// Redis locking is best-effort: when Redis is missing or the lock cannot be
// obtained we log and proceed.
type SummaryLocks struct {
	mu       sync.Mutex
	projects map[string]*projectLock
	keys     map[models.SummaryKey]*keyLock

	redisLock *redislock.Client
	logger    *logrus.Logger
	ttl       time.Duration
	retry     redislock.RetryStrategy
}

type projectLock struct {
	rw   sync.RWMutex
	refs int
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSummaryLocks accepts a nil redis lock client (single instance).
func NewSummaryLocks(redisLock *redislock.Client, logger *logrus.Logger) *SummaryLocks {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SummaryLocks{
		projects:  map[string]*projectLock{},
		keys:      map[models.SummaryKey]*keyLock{},
		redisLock: redisLock,
		logger:    logger,
		ttl:       30 * time.Second,
		retry:     redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	}
}

// LockDay takes the reconcile lock for one project-day. The returned func releases it.
func (l *SummaryLocks) LockDay(ctx context.Context, key models.SummaryKey) func() {
	l.mu.Lock()
	p := l.projects[key.ProjectId]
	if p == nil {
		p = &projectLock{}
		l.projects[key.ProjectId] = p
	}
	p.refs++
	k := l.keys[key]
	if k == nil {
		k = &keyLock{}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	p.rw.RLock()
	k.mu.Lock()
	release := l.obtainRemote(ctx, remoteKey(key.ProjectId))

	return func() {
		release()
		k.mu.Unlock()
		p.rw.RUnlock()

		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.keys, key)
		}
		p.refs--
		if p.refs == 0 {
			delete(l.projects, key.ProjectId)
		}
		l.mu.Unlock()
	}
}

// LockProject excludes every day reconcile of projectId until released.
func (l *SummaryLocks) LockProject(ctx context.Context, projectId string) func() {
	l.mu.Lock()
	p := l.projects[projectId]
	if p == nil {
		p = &projectLock{}
		l.projects[projectId] = p
	}
	p.refs++
	l.mu.Unlock()

	p.rw.Lock()
	release := l.obtainRemote(ctx, remoteKey(projectId))

	return func() {
		release()
		p.rw.Unlock()

		l.mu.Lock()
		p.refs--
		if p.refs == 0 {
			delete(l.projects, projectId)
		}
		l.mu.Unlock()
	}
}

func remoteKey(projectId string) string {
	return fmt.Sprintf("lock:summary:%s", projectId)
}

func (l *SummaryLocks) obtainRemote(ctx context.Context, name string) func() {
	if l.redisLock == nil {
		return func() {}
	}
	lock, err := l.redisLock.Obtain(ctx, name, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if err != nil {
		msg := "error obtaining redis lock; proceeding without redis lock: " + err.Error()
		if errors.Is(err, redislock.ErrNotObtained) {
			msg = "could not obtain redis lock; proceeding without redis lock"
		}
		l.logger.WithFields(logrus.Fields{
			"field": "SummaryLocks",
			"lock":  name,
		}).Warn(msg)
		return func() {}
	}
	return func() {
		// release must not depend on the caller's possibly cancelled ctx
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WithFields(logrus.Fields{
				"field": "SummaryLocks",
				"lock":  name,
			}).Warn("failed to release redis lock: " + err.Error())
		}
	}
}
