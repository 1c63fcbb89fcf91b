package redis

import (
	"auction-engine/internal/domain"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var _ domain.AuditSink = (*RedisAuditSink)(nil)

// RedisAuditSink appends audit records to a Redis stream. The stream is
// trimmed approximately to maxLen entries.
type RedisAuditSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisAuditSink(client *redis.Client, stream string, maxLen int64) *RedisAuditSink {
	return &RedisAuditSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (r *RedisAuditSink) Record(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record %s: %w", record.ID, err)
	}

	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: map[string]interface{}{
			"id":       record.ID,
			"store_id": record.StoreID,
			"action":   string(record.Action),
			"target":   record.Target,
			"actor":    record.Actor,
			"payload":  payload,
		},
	}).Err()
}
