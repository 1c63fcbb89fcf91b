package domain

import (
	"context"
	"time"
)

// Repository interfaces. Implementations are bound to a single transaction
// and are only reachable through Tx.
type AuctionRepository interface {
	Insert(ctx context.Context, auction *Auction) error
	Get(ctx context.Context, storeID, auctionID string) (*Auction, error)
	// GetForUpdate locks the auction row until the transaction ends. Other
	// lockers of the same row block; other auctions are unaffected.
	GetForUpdate(ctx context.Context, storeID, auctionID string) (*Auction, error)
	Update(ctx context.Context, auction *Auction) error
	List(ctx context.Context, filter AuctionFilter) ([]*Auction, error)
	// ClaimScheduled locks up to limit scheduled auctions whose start has
	// passed, skipping rows another transaction already holds.
	ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
}

type AuctionFilter struct {
	StoreID string
	Status  *AuctionStatus
	Offset  int
	Limit   int
}

type BidRepository interface {
	Insert(ctx context.Context, bid *Bid) error
	Get(ctx context.Context, bidID string) (*Bid, error)
	// Best returns the highest bid, earliest first on ties, or nil when the
	// auction has no bids.
	Best(ctx context.Context, auctionID string) (*Bid, error)
	ListByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
}

type AutoBidRepository interface {
	Upsert(ctx context.Context, autoBid *AutoBid) error
	// Get returns nil when the customer has no declaration for the auction.
	Get(ctx context.Context, auctionID, customerID string) (*AutoBid, error)
	// TopActive returns active declarations by max amount desc, created asc.
	TopActive(ctx context.Context, auctionID string, limit int) ([]*AutoBid, error)
	ListByAuction(ctx context.Context, auctionID string) ([]*AutoBid, error)
}

type Tx interface {
	Auctions() AuctionRepository
	Bids() BidRepository
	AutoBids() AutoBidRepository
}

// TxRunner runs fn in one transaction: commit when fn returns nil, roll back
// on error or panic. Locks taken inside fn are held until then.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// External collaborators
type EligibilityChecker interface {
	IsCustomerEligibleToBid(ctx context.Context, storeID, customerID string) (bool, error)
}

type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}

type actorKey struct{}

func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
