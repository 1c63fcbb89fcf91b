package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/pkg/logger"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var base = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

const storeID = "store-1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	fail    bool
}

func (s *recordingSink) Record(ctx context.Context, record domain.AuditRecord) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) actions() []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditAction, len(s.records))
	for i, r := range s.records {
		out[i] = r.Action
	}
	return out
}

type fixture struct {
	store     *memory.Store
	customers *memory.Customers
	clock     *fakeClock
	sink      *recordingSink
	manager   *AuctionManager
	bids      *BidService
	scheduler *AuctionScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		store:     memory.NewStore(),
		customers: memory.NewCustomers(false),
		clock:     &fakeClock{now: base},
		sink:      &recordingSink{},
	}
	f.customers.Allow(storeID, "alice", "bob", "carol", "dave")

	resolver := NewResolver(log)
	f.manager = NewAuctionManager(f.store, f.sink, log)
	f.manager.SetClock(f.clock.Now)
	f.bids = NewBidService(f.store, f.customers, resolver, f.sink, log)
	f.bids.SetClock(f.clock.Now)
	f.scheduler = NewAuctionScheduler(f.store, resolver, f.sink, log)
	f.scheduler.SetClock(f.clock.Now)
	return f
}

func jpy(amount int64) domain.Money {
	return domain.NewMoney(amount, "JPY")
}

func jpyPtr(amount int64) *domain.Money {
	m := jpy(amount)
	return &m
}

func openParams(start time.Time) AuctionParams {
	return AuctionParams{
		ProductID:    "prod-1",
		SkuID:        "sku-1",
		Type:         domain.AuctionTypeOpen,
		Title:        "Vintage camera",
		StartAt:      start,
		EndAt:        start.Add(time.Hour),
		StartPrice:   jpy(100),
		BidIncrement: jpy(10),
	}
}

func (f *fixture) create(t *testing.T, p AuctionParams) *domain.Auction {
	t.Helper()
	a, err := f.manager.CreateAuction(context.Background(), storeID, p)
	assert.NoError(t, err)
	return a
}

// runningOpen creates an open auction that started at the current time.
func (f *fixture) runningOpen(t *testing.T) *domain.Auction {
	t.Helper()
	a := f.create(t, openParams(f.clock.Now()))
	assert.Equal(t, domain.AuctionRunning, a.Status)
	return a
}

func (f *fixture) bid(t *testing.T, auctionID, customerID string, amount int64) *domain.Auction {
	t.Helper()
	a, _, err := f.bids.PlaceBid(context.Background(), storeID, auctionID, customerID, jpy(amount))
	assert.NoError(t, err)
	return a
}

func (f *fixture) autoBid(t *testing.T, auctionID, customerID string, max int64) *domain.Auction {
	t.Helper()
	a, _, err := f.bids.SetAutoBid(context.Background(), storeID, auctionID, customerID, jpyPtr(max), true)
	assert.NoError(t, err)
	return a
}

// leader returns the customer holding the current bid.
func (f *fixture) leader(t *testing.T, a *domain.Auction) string {
	t.Helper()
	if !a.HasCurrentBid() {
		return ""
	}
	bids, err := f.bids.ListBids(context.Background(), storeID, a.ID)
	assert.NoError(t, err)
	for _, b := range bids {
		if b.ID == *a.CurrentBidID {
			return b.CustomerID
		}
	}
	return ""
}

func checkKind(t *testing.T, want domain.ErrorKind, err error) {
	t.Helper()
	check.Error(t, err)
	check.Equal(t, want, domain.KindOf(err))
}
