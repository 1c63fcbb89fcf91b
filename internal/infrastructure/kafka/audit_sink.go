package kafka

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

var _ domain.AuditSink = (*AuditSink)(nil)

// ErrBufferFull is returned by Record when the writer falls behind.
var ErrBufferFull = errors.New("kafka audit buffer full")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditSink publishes audit records keyed by target, so records of one
// auction stay on one partition in order. Records are queued and written by
// a single goroutine started with Start.
type AuditSink struct {
	w     messageWriter
	log   logger.Logger
	inbox chan kafka.Message

	closeOnce sync.Once
	closeCh   chan struct{}
}

func NewAuditSink(brokers []string, topic string, buf int, log logger.Logger) *AuditSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newAuditSink(w, buf, log)
}

func newAuditSink(w messageWriter, buf int, log logger.Logger) *AuditSink {
	return &AuditSink{
		w:       w,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (s *AuditSink) Record(ctx context.Context, record domain.AuditRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record %s: %w", record.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(record.Target),
		Value: value,
		Time:  record.OccurredAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(record.Action)},
			{Key: "store_id", Value: []byte(record.StoreID)},
		},
	}

	select {
	case s.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left
// and closes the writer.
func (s *AuditSink) Start(ctx context.Context) {
	go func() {
		defer s.closeOnce.Do(func() { close(s.closeCh) })
		for {
			select {
			case <-ctx.Done():
				s.flush()
				if err := s.w.Close(); err != nil {
					s.log.Error("Failed to close kafka writer", "error", err)
				}
				return
			case m := <-s.inbox:
				s.write(context.Background(), m)
			}
		}
	}()
}

// WaitClosed blocks until the goroutine started by Start has flushed.
func (s *AuditSink) WaitClosed() { <-s.closeCh }

func (s *AuditSink) flush() {
	for {
		select {
		case m := <-s.inbox:
			s.write(context.Background(), m)
		default:
			return
		}
	}
}

func (s *AuditSink) write(ctx context.Context, m kafka.Message) {
	if err := s.w.WriteMessages(ctx, m); err != nil {
		s.log.Error("Failed to publish audit record", "key", string(m.Key), "error", err)
	}
}
