package utils

import (
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/audit"
	"auction-engine/internal/infrastructure/kafka"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/pkg/logger"
	"context"
	"fmt"
	"strings"

	redisClient "github.com/go-redis/redis/v8"
)

// Storage is the transactional backend plus the eligibility checker that
// reads from the same place.
type Storage struct {
	TxRunner    domain.TxRunner
	Eligibility domain.EligibilityChecker
	Close       func() error
}

func BuildStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart")
		customers, err := buildCustomers(cfg.Eligibility)
		if err != nil {
			return nil, err
		}
		return &Storage{
			TxRunner:    memory.NewStore(),
			Eligibility: customers,
			Close:       func() error { return nil },
		}, nil
	case "mysql":
		db, err := InitializeMysql(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Storage{
			TxRunner:    mysql.NewStore(db),
			Eligibility: mysql.NewMySQLEligibilityChecker(db),
			Close:       db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildCustomers(cfg config.EligibilityConfig) (*memory.Customers, error) {
	customers := memory.NewCustomers(cfg.AllowAll)
	for _, entry := range cfg.Allowed {
		storeID, customerID, ok := strings.Cut(entry, ":")
		storeID, customerID = strings.TrimSpace(storeID), strings.TrimSpace(customerID)
		if !ok || storeID == "" || customerID == "" {
			return nil, fmt.Errorf("invalid eligibility.allowed entry %q, want <store_id>:<customer_id>", entry)
		}
		customers.Allow(storeID, customerID)
	}
	return customers, nil
}

// BuildAuditSink always logs records and additionally ships them to Redis or
// Kafka. The returned stop func flushes the Kafka writer.
func BuildAuditSink(ctx context.Context, cfg *config.Config, rdb *redisClient.Client, log logger.Logger) (domain.AuditSink, func(), error) {
	logSink := audit.NewLogSink(log)

	switch cfg.Audit.Driver {
	case "log":
		return logSink, func() {}, nil
	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("audit driver redis needs a redis client")
		}
		sink := redis.NewRedisAuditSink(rdb, cfg.Audit.Stream, cfg.Audit.MaxLen)
		return audit.Multi{logSink, sink}, func() {}, nil
	case "kafka":
		sink := kafka.NewAuditSink(cfg.Audit.Kafka.Brokers, cfg.Audit.Kafka.Topic, cfg.Audit.Kafka.Buffer, log)
		runCtx, cancel := context.WithCancel(ctx)
		sink.Start(runCtx)
		stop := func() {
			cancel()
			sink.WaitClosed()
		}
		return audit.Multi{logSink, sink}, stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}
}
