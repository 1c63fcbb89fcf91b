package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"errors"
	"strings"
	"time"
)

type BidService struct {
	txRunner    domain.TxRunner
	eligibility domain.EligibilityChecker
	resolver    *Resolver
	audit       auditor
	now         func() time.Time
	log         logger.Logger
}

func NewBidService(
	txRunner domain.TxRunner,
	eligibility domain.EligibilityChecker,
	resolver *Resolver,
	auditSink domain.AuditSink,
	log logger.Logger,
) *BidService {
	return &BidService{
		txRunner:    txRunner,
		eligibility: eligibility,
		resolver:    resolver,
		audit:       auditor{sink: auditSink, log: log},
		now:         time.Now,
		log:         log,
	}
}

func (s *BidService) SetClock(now func() time.Time) {
	s.now = now
}

// PlaceBid validates and records a bid under the auction's lock, then lets
// standing auto-bids react before the lock is released. The returned auction
// reflects both; the returned bid is the caller's own.
func (s *BidService) PlaceBid(ctx context.Context, storeID, auctionID, customerID string, amount domain.Money) (*domain.Auction, *domain.Bid, error) {
	if err := s.checkEligible(ctx, storeID, customerID); err != nil {
		return nil, nil, err
	}

	var before, after *domain.Auction
	var placed *domain.Bid
	now := s.now()

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, storeID, auctionID)
		if err != nil {
			return err
		}
		before = a.Clone()

		if err := checkBiddingWindow(a, now); err != nil {
			return err
		}
		if err := validateBidAmount(a, amount); err != nil {
			return err
		}

		bid := &domain.Bid{
			ID:         newID(),
			AuctionID:  a.ID,
			CustomerID: customerID,
			Amount:     amount,
			CreatedAt:  now,
		}
		if err := tx.Bids().Insert(ctx, bid); err != nil {
			return err
		}
		applyBid(a, bid)
		if err := applyBuyout(a); err != nil {
			return err
		}
		if a.Status == domain.AuctionScheduled {
			if err := a.TransitionTo(domain.AuctionRunning); err != nil {
				return err
			}
		}
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}

		if _, err := s.resolver.Resolve(ctx, tx, a, now); err != nil {
			return err
		}
		placed = bid
		after = a
		return nil
	})
	if err != nil {
		s.logFailure("place bid", auctionID, err)
		return nil, nil, toDomainError(err)
	}

	s.log.Info("Bid placed",
		"auction_id", auctionID,
		"customer_id", customerID,
		"amount", amount.String(),
		"status", after.Status.String(),
	)
	s.audit.record(ctx, storeID, domain.AuditPlaceBid, auctionID, snapshot(before), snapshot(after), now)
	return after, placed, nil
}

// SetAutoBid creates, changes or disables the customer's standing maximum.
// maxAmount is ignored when disabling.
func (s *BidService) SetAutoBid(ctx context.Context, storeID, auctionID, customerID string, maxAmount *domain.Money, enabled bool) (*domain.Auction, *domain.AutoBid, error) {
	if enabled && maxAmount == nil {
		return nil, nil, domain.InvalidArgument("max amount is required to enable an auto-bid")
	}
	if err := s.checkEligible(ctx, storeID, customerID); err != nil {
		return nil, nil, err
	}

	var auction *domain.Auction
	var previous, saved *domain.AutoBid
	now := s.now()

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, storeID, auctionID)
		if err != nil {
			return err
		}
		if a.Type != domain.AuctionTypeOpen {
			return domain.FailedPrecondition("auto-bids are only supported for open auctions")
		}
		if !a.Status.AcceptsBids() {
			return domain.FailedPrecondition("auction not running (status %s)", a.Status)
		}
		if !now.Before(a.EndAt) {
			return domain.FailedPrecondition("auction already ended")
		}

		ab := &domain.AutoBid{
			AuctionID:  a.ID,
			CustomerID: customerID,
			UpdatedAt:  now,
		}
		if enabled {
			if !maxAmount.SameCurrency(a.StartPrice) {
				return domain.InvalidArgument("currency mismatch: auction is priced in %s, max amount is in %s",
					a.StartPrice.Currency, maxAmount.Currency)
			}
			if maxAmount.Amount < a.StartPrice.Amount {
				return domain.InvalidArgument("max amount must be at least the start price %s", a.StartPrice)
			}
			ab.MaxAmount = *maxAmount
			ab.Status = domain.AutoBidActive
		} else {
			ab.MaxAmount = domain.NewMoney(0, a.StartPrice.Currency)
			ab.Status = domain.AutoBidDisabled
		}

		existing, err := tx.AutoBids().Get(ctx, a.ID, customerID)
		if err != nil {
			return err
		}
		if existing != nil {
			ab.ID = existing.ID
			ab.CreatedAt = existing.CreatedAt
		} else {
			ab.ID = newID()
			ab.CreatedAt = now
		}
		if err := tx.AutoBids().Upsert(ctx, ab); err != nil {
			return err
		}

		if _, err := s.resolver.Resolve(ctx, tx, a, now); err != nil {
			return err
		}
		previous = existing
		saved = ab
		auction = a
		return nil
	})
	if err != nil {
		s.logFailure("set auto-bid", auctionID, err)
		return nil, nil, toDomainError(err)
	}

	s.log.Info("Auto-bid saved",
		"auction_id", auctionID,
		"customer_id", customerID,
		"max_amount", saved.MaxAmount.String(),
		"status", saved.Status.String(),
	)
	var before interface{}
	if previous != nil {
		before = previous
	}
	s.audit.record(ctx, storeID, domain.AuditAutoBid, auctionID, before, saved.Clone(), now)
	return auction, saved, nil
}

// ListBids returns the auction's bids, oldest first.
func (s *BidService) ListBids(ctx context.Context, storeID, auctionID string) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := load(ctx, tx, storeID, auctionID); err != nil {
			return err
		}
		var err error
		bids, err = tx.Bids().ListByAuction(ctx, auctionID)
		return err
	})
	if err != nil {
		return nil, toDomainError(err)
	}
	return bids, nil
}

// ListAutoBids returns every declaration, disabled ones included, highest
// maximum first.
func (s *BidService) ListAutoBids(ctx context.Context, storeID, auctionID string) ([]*domain.AutoBid, error) {
	var autoBids []*domain.AutoBid
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := load(ctx, tx, storeID, auctionID); err != nil {
			return err
		}
		var err error
		autoBids, err = tx.AutoBids().ListByAuction(ctx, auctionID)
		return err
	})
	if err != nil {
		return nil, toDomainError(err)
	}
	return autoBids, nil
}

func (s *BidService) checkEligible(ctx context.Context, storeID, customerID string) error {
	if strings.TrimSpace(customerID) == "" {
		return domain.PermissionDenied("customer id is required")
	}
	ok, err := s.eligibility.IsCustomerEligibleToBid(ctx, storeID, customerID)
	if err != nil {
		s.log.Error("Eligibility check failed", "store_id", storeID, "customer_id", customerID, "error", err)
		return domain.Internal("eligibility check failed", err)
	}
	if !ok {
		return domain.PermissionDenied("customer %s is not eligible to bid", customerID)
	}
	return nil
}

func (s *BidService) logFailure(op, auctionID string, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		s.log.Error("Failed to "+op, "auction_id", auctionID, "error", err)
	}
}

func load(ctx context.Context, tx domain.Tx, storeID, auctionID string) (*domain.Auction, error) {
	a, err := tx.Auctions().Get(ctx, storeID, auctionID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("auction %s not found", auctionID)
	}
	return a, err
}

func loadForUpdate(ctx context.Context, tx domain.Tx, storeID, auctionID string) (*domain.Auction, error) {
	a, err := tx.Auctions().GetForUpdate(ctx, storeID, auctionID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("auction %s not found", auctionID)
	}
	return a, err
}

// toDomainError keeps domain errors and reports everything else as internal
// with a reason the caller can act on.
func toDomainError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Internal("request timed out waiting for the auction", err)
	case errors.Is(err, context.Canceled):
		return domain.Internal("request cancelled", err)
	}
	return domain.AsDomainError(err)
}
