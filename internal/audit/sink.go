// Package audit records reservation and order state transitions. Writers never
// depend on it: a failed write is logged and dropped.
package audit

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/internal/shared/transaction"
	"boxoffice/pkg/logger"

	"gorm.io/gorm"
)

// Sink receives audit entries
type Sink interface {
	Record(ctx context.Context, entry *AuditLogEntry) error
}

// Emit records entry once the transaction in ctx commits (immediately without
// one). Failures are logged, never returned.
func Emit(ctx context.Context, sink Sink, entry *AuditLogEntry) {
	if sink == nil || entry == nil {
		return
	}
	transaction.AfterCommit(ctx, func(ctx context.Context) {
		if err := sink.Record(ctx, entry); err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "audit write failed", err, map[string]interface{}{
				"entity_type": entry.EntityType,
				"entity_id":   entry.EntityID.String(),
				"action":      entry.Action,
			})
		}
	})
}

// GormSink appends entries to the audit_log table
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Record(ctx context.Context, entry *AuditLogEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// MultiSink fans entries out to several sinks. Every sink is tried.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, entry *AuditLogEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
