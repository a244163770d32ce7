package reports

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// default REPORT_SLOW_MS
const reportSlowMs = 500

// ReportCache keeps built statements in Redis for a short TTL. Entries are not
// invalidated on writes; a statement may lag a write by up to the TTL.
// A nil client disables it.
type ReportCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

func NewReportCache(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

func (c *ReportCache) enabled() bool {
	return c != nil && c.client != nil
}

func workerStatementCacheKey(q WorkerStatementQuery) string {
	return q.WorkerId + ":" + hashKey(strings.Join(q.ProjectIds, ","), q.DateFrom.String(), q.DateTo.String())
}

func supplierStatementCacheKey(q SupplierStatementQuery) string {
	return q.SupplierId + ":" + hashKey(q.ProjectId, q.DateFrom.String(), q.DateTo.String())
}

func hashKey(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (c *ReportCache) getWorkerStatement(ctx context.Context, key string) *WorkerStatement {
	if !c.enabled() {
		return nil
	}
	cached, err := utils.RetrieveRedis[WorkerStatement](ctx, c.client, key)
	if err != nil {
		c.logger.WithField("field", "ReportCache").Warn("report cache read failed: " + err.Error())
		return nil
	}
	return cached
}

func (c *ReportCache) setWorkerStatement(ctx context.Context, key string, s *WorkerStatement) {
	if !c.enabled() {
		return
	}
	if err := utils.StoreRedis(ctx, c.client, key, s, c.ttl); err != nil {
		c.logger.WithField("field", "ReportCache").Warn("report cache write failed: " + err.Error())
	}
}

func (c *ReportCache) getSupplierStatement(ctx context.Context, key string) *SupplierStatement {
	if !c.enabled() {
		return nil
	}
	cached, err := utils.RetrieveRedis[SupplierStatement](ctx, c.client, key)
	if err != nil {
		c.logger.WithField("field", "ReportCache").Warn("report cache read failed: " + err.Error())
		return nil
	}
	return cached
}

func (c *ReportCache) setSupplierStatement(ctx context.Context, key string, s *SupplierStatement) {
	if !c.enabled() {
		return
	}
	if err := utils.StoreRedis(ctx, c.client, key, s, c.ttl); err != nil {
		c.logger.WithField("field", "ReportCache").Warn("report cache write failed: " + err.Error())
	}
}

func logSlowReport(ctx context.Context, logger *logrus.Logger, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
		"extra":          extra,
	}).Warn("slow_report")
}

// Flush drops every cached statement.
func (c *ReportCache) Flush(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if err := utils.RemoveRedisPrefix[WorkerStatement](ctx, c.client, ""); err != nil {
		return err
	}
	return utils.RemoveRedisPrefix[SupplierStatement](ctx, c.client, "")
}
