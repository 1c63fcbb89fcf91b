package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"time"
)

// Resolver places proxy bids on behalf of standing auto-bids. The leader pays
// one increment over the runner-up's maximum, never more than its own.
type Resolver struct {
	log logger.Logger
}

func NewResolver(log logger.Logger) *Resolver {
	return &Resolver{log: log}
}

// Resolve runs a single pass against an auction whose row the caller holds
// locked in tx. It places at most one synthetic bid and returns it, or nil
// when no auto-bid can improve on the current state. The auction is updated
// in place and persisted when a bid is placed.
func (r *Resolver) Resolve(ctx context.Context, tx domain.Tx, a *domain.Auction, now time.Time) (*domain.Bid, error) {
	if a.Type != domain.AuctionTypeOpen || a.Status != domain.AuctionRunning {
		return nil, nil
	}
	if now.Before(a.StartAt) || !now.Before(a.EndAt) {
		return nil, nil
	}

	candidates, err := tx.AutoBids().TopActive(ctx, a.ID, 2)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	top := candidates[0]
	if !top.MaxAmount.SameCurrency(a.StartPrice) || top.MaxAmount.Amount < a.StartPrice.Amount {
		return nil, nil
	}
	var second *domain.AutoBid
	if len(candidates) > 1 && candidates[1].MaxAmount.SameCurrency(a.StartPrice) {
		second = candidates[1]
	}

	leader, err := r.currentLeader(ctx, tx, a)
	if err != nil {
		return nil, err
	}

	inc := a.BidIncrement.Amount
	next, ok := minimumBid(a)
	if !ok {
		return nil, nil
	}
	minNext := next.Amount
	var target int64

	if leader == top.CustomerID {
		// The leader only moves when the runner-up could still outbid it.
		if second == nil || second.MaxAmount.Amount < minNext {
			return nil, nil
		}
		target = min(top.MaxAmount.Amount, saturatingAdd(second.MaxAmount.Amount, inc))
	} else {
		if top.MaxAmount.Amount < minNext {
			return nil, nil
		}
		target = minNext
		if second != nil {
			target = max(target, saturatingAdd(second.MaxAmount.Amount, inc))
		}
		target = min(target, top.MaxAmount.Amount)
	}
	target = max(target, a.StartPrice.Amount)

	if a.HasCurrentBid() {
		if a.CurrentPrice != nil && target <= a.CurrentPrice.Amount {
			return nil, nil
		}
	} else if target <= 0 {
		return nil, nil
	}

	bid := &domain.Bid{
		ID:         newID(),
		AuctionID:  a.ID,
		CustomerID: top.CustomerID,
		Amount:     domain.NewMoney(target, a.StartPrice.Currency),
		Auto:       true,
		CreatedAt:  now,
	}
	if err := tx.Bids().Insert(ctx, bid); err != nil {
		return nil, err
	}
	applyBid(a, bid)
	if err := applyBuyout(a); err != nil {
		return nil, err
	}
	if err := tx.Auctions().Update(ctx, a); err != nil {
		return nil, err
	}

	r.log.Info("Auto-bid placed",
		"auction_id", a.ID,
		"customer_id", bid.CustomerID,
		"amount", bid.Amount.String(),
		"status", a.Status.String(),
	)
	return bid, nil
}

func (r *Resolver) currentLeader(ctx context.Context, tx domain.Tx, a *domain.Auction) (string, error) {
	if !a.HasCurrentBid() {
		return "", nil
	}
	bid, err := tx.Bids().Get(ctx, *a.CurrentBidID)
	if err != nil {
		return "", err
	}
	return bid.CustomerID, nil
}
