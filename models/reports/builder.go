// Package reports builds the read-side views over the ledger: worker and
// supplier account statements, worker balances and daily summary ranges.
package reports

import (
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/sirupsen/logrus"
)

type Builder struct {
	store  *models.Store
	cache  *ReportCache
	logger *logrus.Logger
}

// NewBuilder accepts a nil cache.
func NewBuilder(store *models.Store, cache *ReportCache, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{store: store, cache: cache, logger: logger}
}
