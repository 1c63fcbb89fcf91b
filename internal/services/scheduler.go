package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// AuctionScheduler activates scheduled auctions whose start has passed.
type AuctionScheduler struct {
	cron           *cron.Cron
	txRunner       domain.TxRunner
	resolver       *Resolver
	audit          auditor
	leaderElection domain.LeaderElection
	instanceID     string
	now            func() time.Time
	log            logger.Logger

	// One batch at a time per process; cron may fire while a slow batch runs.
	runMutex sync.Mutex
}

func NewAuctionScheduler(txRunner domain.TxRunner, resolver *Resolver, auditSink domain.AuditSink, log logger.Logger) *AuctionScheduler {
	return &AuctionScheduler{
		cron:     cron.New(cron.WithSeconds()),
		txRunner: txRunner,
		resolver: resolver,
		audit:    auditor{sink: auditSink, log: log},
		now:      time.Now,
		log:      log,
	}
}

func (s *AuctionScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetLeaderElection restricts the periodic job to the elected instance.
// Manual runs are never gated.
func (s *AuctionScheduler) SetLeaderElection(le domain.LeaderElection, instanceID string) {
	s.leaderElection = le
	s.instanceID = instanceID
}

// RunScheduledAuctions claims up to batchSize due auctions in one transaction
// and flips them to running, then gives each its own short transaction for
// the resolver. It returns how many auctions were activated.
func (s *AuctionScheduler) RunScheduledAuctions(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, domain.InvalidArgument("batch size must be positive")
	}
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	now := s.now()
	var activated, before []*domain.Auction

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		claimed, err := tx.Auctions().ClaimScheduled(ctx, now, batchSize)
		if err != nil {
			return err
		}
		activated = activated[:0]
		before = before[:0]
		for _, a := range claimed {
			prior := a.Clone()
			if err := a.TransitionTo(domain.AuctionRunning); err != nil {
				return err
			}
			seedCurrentPrice(a)
			a.UpdatedAt = now
			if err := tx.Auctions().Update(ctx, a); err != nil {
				return err
			}
			before = append(before, prior)
			activated = append(activated, a)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to claim scheduled auctions", "error", err)
		return 0, toDomainError(err)
	}

	for i, a := range activated {
		s.log.Info("Auction activated", "auction_id", a.ID, "store_id", a.StoreID)
		s.audit.record(ctx, a.StoreID, domain.AuditActivate, a.ID, snapshot(before[i]), snapshot(a), now)

		// Activation is already committed; a failed resolution is retried by
		// the next bid or auto-bid change on the auction.
		if err := s.resolveActivated(ctx, a); err != nil {
			s.log.Error("Failed to resolve auto-bids after activation", "auction_id", a.ID, "error", err)
		}
	}
	return len(activated), nil
}

func (s *AuctionScheduler) resolveActivated(ctx context.Context, activated *domain.Auction) error {
	return s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, activated.StoreID, activated.ID)
		if err != nil {
			return err
		}
		_, err = s.resolver.Resolve(ctx, tx, a, s.now())
		return err
	})
}

// Start runs the batch on the given cron spec until Stop is called.
func (s *AuctionScheduler) Start(ctx context.Context, spec string, batchSize int) error {
	s.log.Info("Starting auction scheduler", "spec", spec, "batch_size", batchSize)

	_, err := s.cron.AddFunc(spec, func() {
		s.tick(ctx, batchSize)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *AuctionScheduler) Stop() {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()

	if s.leaderElection != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.leaderElection.ReleaseLeadership(ctx, s.instanceID); err != nil {
			s.log.Warn("Failed to release leadership", "instance_id", s.instanceID, "error", err)
		}
	}
}

func (s *AuctionScheduler) tick(ctx context.Context, batchSize int) {
	if ctx.Err() != nil {
		return
	}
	if s.leaderElection != nil {
		leader, err := s.ensureLeader(ctx)
		if err != nil {
			s.log.Error("Leader election failed", "instance_id", s.instanceID, "error", err)
			return
		}
		if !leader {
			s.log.Debug("Not the scheduler leader, skipping run", "instance_id", s.instanceID)
			return
		}
	}

	count, err := s.RunScheduledAuctions(ctx, batchSize)
	if err != nil {
		return
	}
	if count > 0 {
		s.log.Info("Scheduled auctions activated", "count", count)
	}
}

func (s *AuctionScheduler) ensureLeader(ctx context.Context) (bool, error) {
	leader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil || leader {
		return leader, err
	}
	return s.leaderElection.BecomeLeader(ctx, s.instanceID)
}
