package services

import (
	"context"
	"math"
	"testing"
	"time"

	"auction-engine/internal/domain"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestResolver_SecondPricePlusIncrement(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		firstMax  int64
		second    string
		secondMax int64
	}{
		{name: "higher maximum registered first", first: "alice", firstMax: 1000, second: "bob", secondMax: 700},
		{name: "higher maximum registered second", first: "bob", firstMax: 700, second: "alice", secondMax: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := openParams(f.clock.Now())
			p.BidIncrement = jpy(50)
			a := f.create(t, p)

			f.autoBid(t, a.ID, tt.first, tt.firstMax)
			f.clock.Advance(time.Second)
			got := f.autoBid(t, a.ID, tt.second, tt.secondMax)

			check.Equal(t, int64(750), got.CurrentPrice.Amount)
			check.Equal(t, "alice", f.leader(t, got))
		})
	}
}

func TestResolver_ActivatesPreRegisteredAutoBids(t *testing.T) {
	f := newFixture(t)
	p := openParams(base.Add(time.Hour))
	p.BidIncrement = jpy(50)
	a := f.create(t, p)

	// Registered while scheduled: nothing is placed yet.
	got := f.autoBid(t, a.ID, "alice", 1000)
	check.True(t, got.CurrentPrice == nil)
	got = f.autoBid(t, a.ID, "bob", 700)
	check.False(t, got.HasCurrentBid())

	f.clock.Advance(time.Hour)
	count, err := f.scheduler.RunScheduledAuctions(context.Background(), 10)
	assert.NoError(t, err)
	check.Equal(t, 1, count)

	got, err = f.manager.GetAuction(context.Background(), storeID, a.ID)
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionRunning, got.Status)
	check.Equal(t, int64(750), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))
}

func TestResolver_RespondsToManualBid(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)

	got := f.autoBid(t, a.ID, "alice", 1000)
	check.Equal(t, int64(100), got.CurrentPrice.Amount)

	got, bid, err := f.bids.PlaceBid(context.Background(), storeID, a.ID, "bob", jpy(300))
	assert.NoError(t, err)
	check.Equal(t, "bob", bid.CustomerID)
	check.Equal(t, int64(300), bid.Amount.Amount)

	// The auto-bidder answers with the minimum that retakes the lead.
	check.Equal(t, int64(310), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))

	bids, err := f.bids.ListBids(context.Background(), storeID, a.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(bids))
	check.True(t, bids[0].Auto)
	check.False(t, bids[1].Auto)
	check.True(t, bids[2].Auto)
}

func TestResolver_ExhaustedMaximumStopsBidding(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)
	f.autoBid(t, a.ID, "alice", 305)

	got := f.bid(t, a.ID, "bob", 300)
	check.Equal(t, int64(300), got.CurrentPrice.Amount)
	check.Equal(t, "bob", f.leader(t, got))
}

func TestResolver_CappedAtOwnMaximum(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)
	f.autoBid(t, a.ID, "alice", 500)
	f.clock.Advance(time.Second)

	got := f.autoBid(t, a.ID, "bob", 500)
	// Equal maximums: the earlier declaration keeps the lead at its limit.
	check.Equal(t, int64(500), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))
}

func TestResolver_LeaderDoesNotRaiseItself(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)

	got := f.autoBid(t, a.ID, "alice", 1000)
	check.Equal(t, int64(100), got.CurrentPrice.Amount)

	got = f.autoBid(t, a.ID, "alice", 2000)
	check.Equal(t, int64(100), got.CurrentPrice.Amount)

	// A runner-up that cannot afford the next step does not move the price.
	got = f.autoBid(t, a.ID, "bob", 105)
	check.Equal(t, int64(100), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))
}

func TestResolver_SinglePassPerEvent(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)
	f.autoBid(t, a.ID, "alice", 1000)

	got := f.bid(t, a.ID, "bob", 200)
	bids, err := f.bids.ListBids(context.Background(), storeID, a.ID)
	assert.NoError(t, err)
	// alice's opening bid, bob's bid, one answer.
	check.Equal(t, 3, len(bids))
	check.Equal(t, int64(210), got.CurrentPrice.Amount)
}

func TestResolver_BuyoutByAutoBid(t *testing.T) {
	f := newFixture(t)
	p := openParams(f.clock.Now())
	p.BuyoutPrice = jpyPtr(400)
	a := f.create(t, p)

	f.autoBid(t, a.ID, "alice", 1000)
	got := f.autoBid(t, a.ID, "bob", 600)

	check.Equal(t, int64(610), got.CurrentPrice.Amount)
	check.Equal(t, domain.AuctionAwaitingApproval, got.Status)
}

func TestResolver_RunnerUpNearInt64Limit(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)

	f.autoBid(t, a.ID, "alice", math.MaxInt64)
	f.clock.Advance(time.Second)
	got := f.autoBid(t, a.ID, "bob", math.MaxInt64-5)

	// runner-up max + increment is clamped, then capped at the leader's max.
	check.Equal(t, int64(math.MaxInt64), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))

	_, _, err := f.bids.PlaceBid(context.Background(), storeID, a.ID, "carol", jpy(math.MaxInt64))
	checkKind(t, domain.KindFailedPrecondition, err)
}

func TestResolver_AnswersManualBidAboveRunnerUpCeiling(t *testing.T) {
	f := newFixture(t)
	a := f.runningOpen(t)

	f.autoBid(t, a.ID, "alice", 1000)
	f.clock.Advance(time.Second)
	got := f.autoBid(t, a.ID, "bob", 480)
	check.Equal(t, int64(490), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))

	// bob's ceiling plus one increment is below carol's bid, so alice answers
	// with the minimum that retakes the lead.
	got = f.bid(t, a.ID, "carol", 500)
	check.Equal(t, int64(510), got.CurrentPrice.Amount)
	check.Equal(t, "alice", f.leader(t, got))
}
