package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// newID returns a time-ordered UUID for auctions, bids and auto-bids.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

type auditor struct {
	sink domain.AuditSink
	log  logger.Logger
}

// record is called after commit. A sink failure is logged and otherwise
// ignored; the state change has already happened.
func (a auditor) record(ctx context.Context, storeID string, action domain.AuditAction, auctionID string, before, after interface{}, at time.Time) {
	if a.sink == nil {
		return
	}
	rec := domain.AuditRecord{
		ID:         ulid.Make().String(),
		StoreID:    storeID,
		Action:     action,
		Target:     domain.AuctionTarget(auctionID),
		Before:     before,
		After:      after,
		Actor:      domain.ActorFrom(ctx),
		OccurredAt: at,
	}
	if err := a.sink.Record(ctx, rec); err != nil {
		a.log.Error("Failed to record audit entry",
			"action", string(action),
			"target", rec.Target,
			"error", err,
		)
	}
}

// snapshot avoids handing a live pointer to the sink.
func snapshot(a *domain.Auction) interface{} {
	if a == nil {
		return nil
	}
	return a.Clone()
}
