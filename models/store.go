package models

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/appctx"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChangeHook is told which (project, date) summaries a committed write touched.
type ChangeHook interface {
	SummaryChanged(ctx context.Context, keys ...SummaryKey)
}

// Store is the persistence layer for projects, parties, transactions and daily summaries.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
	hook   ChangeHook
}

func NewStore(db *gorm.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{db: db, logger: logger}
}

// SetChangeHook must be called before the store serves writes.
func (s *Store) SetChangeHook(h ChangeHook) {
	s.hook = h
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(appctx.ContextKeyTx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Transaction runs fn inside one database transaction. Store calls made with
// the ctx handed to fn join that transaction. Nested calls reuse the outer one.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(appctx.ContextKeyTx).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(appctx.Set(ctx, appctx.ContextKeyTx, tx))
	})
}

func (s *Store) summaryChanged(ctx context.Context, keys ...SummaryKey) {
	if s.hook == nil || len(keys) == 0 {
		return
	}
	s.hook.SummaryChanged(ctx, uniqueKeys(keys)...)
}

func uniqueKeys(keys []SummaryKey) []SummaryKey {
	seen := make(map[SummaryKey]struct{}, len(keys))
	out := make([]SummaryKey, 0, len(keys))
	for _, k := range keys {
		if k.ProjectId == "" || k.Date.IsZero() {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
