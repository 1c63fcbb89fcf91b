package audit

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"errors"
)

// LogSink writes audit records to the service log.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(_ context.Context, record domain.AuditRecord) error {
	s.log.Info("Audit",
		"audit_id", record.ID,
		"store_id", record.StoreID,
		"action", string(record.Action),
		"target", record.Target,
		"actor", record.Actor,
		"before", record.Before,
		"after", record.After,
		"occurred_at", record.OccurredAt,
	)
	return nil
}

// Multi sends each record to every sink and joins their errors.
type Multi []domain.AuditSink

func (m Multi) Record(ctx context.Context, record domain.AuditRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
