package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/domain"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var base = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func seedAuction(t *testing.T, s *Store, id string, status domain.AuctionStatus, startAt time.Time) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Auctions().Insert(ctx, &domain.Auction{
			ID:           id,
			StoreID:      "store-1",
			Type:         domain.AuctionTypeOpen,
			StartAt:      startAt,
			EndAt:        startAt.Add(time.Hour),
			StartPrice:   domain.NewMoney(100, "JPY"),
			BidIncrement: domain.NewMoney(10, "JPY"),
			Status:       status,
			CreatedAt:    base,
			UpdatedAt:    base,
		})
	})
	assert.NoError(t, err)
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionRunning, base)

	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		a, err := tx.Auctions().GetForUpdate(ctx, "store-1", "a1")
		if err != nil {
			return err
		}
		a.Status = domain.AuctionEnded
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		if err := tx.Bids().Insert(ctx, &domain.Bid{ID: "b1", AuctionID: "a1", Amount: domain.NewMoney(100, "JPY")}); err != nil {
			return err
		}
		return boom
	})
	check.True(t, errors.Is(err, boom))

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		a, err := tx.Auctions().Get(ctx, "store-1", "a1")
		assert.NoError(t, err)
		check.Equal(t, domain.AuctionRunning, a.Status)

		bids, err := tx.Bids().ListByAuction(ctx, "a1")
		assert.NoError(t, err)
		check.Equal(t, 0, len(bids))
		return nil
	})
	check.NoError(t, err)
}

func TestRunInTx_ReadsOwnWrites(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionRunning, base)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		assert.NoError(t, tx.Bids().Insert(ctx, &domain.Bid{ID: "b1", AuctionID: "a1", Amount: domain.NewMoney(100, "JPY"), CreatedAt: base}))
		assert.NoError(t, tx.Bids().Insert(ctx, &domain.Bid{ID: "b2", AuctionID: "a1", Amount: domain.NewMoney(100, "JPY"), CreatedAt: base.Add(time.Second)}))

		best, err := tx.Bids().Best(ctx, "a1")
		assert.NoError(t, err)
		check.Equal(t, "b1", best.ID)
		return nil
	})
	check.NoError(t, err)
}

func TestGetForUpdate_StoreScoped(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionRunning, base)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Auctions().GetForUpdate(ctx, "store-2", "a1")
		return err
	})
	check.True(t, errors.Is(err, domain.ErrRecordNotFound))
}

func TestGetForUpdate_BlocksSameAuction(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionRunning, base)
	seedAuction(t, s, "a2", domain.AuctionRunning, base)

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			if _, err := tx.Auctions().GetForUpdate(ctx, "store-1", "a1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	// A different auction is not blocked.
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Auctions().GetForUpdate(ctx, "store-1", "a2")
		return err
	})
	check.NoError(t, err)

	// The same auction waits until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Auctions().GetForUpdate(ctx, "store-1", "a1")
		return err
	})
	check.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	wg.Wait()
}

func TestClaimScheduled_SkipsLocked(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionScheduled, base.Add(-time.Minute))
	seedAuction(t, s, "a2", domain.AuctionScheduled, base.Add(-time.Second))
	seedAuction(t, s, "a3", domain.AuctionScheduled, base.Add(time.Hour))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			if _, err := tx.Auctions().GetForUpdate(ctx, "store-1", "a1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		claimed, err := tx.Auctions().ClaimScheduled(ctx, base, 10)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(claimed))
		check.Equal(t, "a2", claimed[0].ID)
		return nil
	})
	check.NoError(t, err)

	close(release)
	<-done
}

func TestAutoBids_TopActiveOrdering(t *testing.T) {
	s := NewStore()
	seedAuction(t, s, "a1", domain.AuctionRunning, base)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for _, ab := range []*domain.AutoBid{
			{ID: "x", AuctionID: "a1", CustomerID: "c1", MaxAmount: domain.NewMoney(500, "JPY"), CreatedAt: base.Add(2 * time.Second)},
			{ID: "y", AuctionID: "a1", CustomerID: "c2", MaxAmount: domain.NewMoney(500, "JPY"), CreatedAt: base.Add(time.Second)},
			{ID: "z", AuctionID: "a1", CustomerID: "c3", MaxAmount: domain.NewMoney(900, "JPY"), Status: domain.AutoBidDisabled, CreatedAt: base},
		} {
			assert.NoError(t, tx.AutoBids().Upsert(ctx, ab))
		}
		return nil
	})
	assert.NoError(t, err)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		top, err := tx.AutoBids().TopActive(ctx, "a1", 2)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(top))
		check.Equal(t, "c2", top[0].CustomerID)
		check.Equal(t, "c1", top[1].CustomerID)

		missing, err := tx.AutoBids().Get(ctx, "a1", "nobody")
		check.NoError(t, err)
		check.True(t, missing == nil)
		return nil
	})
	check.NoError(t, err)
}

func TestCustomers(t *testing.T) {
	c := NewCustomers(false)
	c.Allow("store-1", "alice")

	ok, _ := c.IsCustomerEligibleToBid(context.Background(), "store-1", "alice")
	check.True(t, ok)
	ok, _ = c.IsCustomerEligibleToBid(context.Background(), "store-2", "alice")
	check.False(t, ok)

	c.Revoke("store-1", "alice")
	ok, _ = c.IsCustomerEligibleToBid(context.Background(), "store-1", "alice")
	check.False(t, ok)

	open := NewCustomers(true)
	ok, _ = open.IsCustomerEligibleToBid(context.Background(), "any", "bob")
	check.True(t, ok)
	ok, _ = open.IsCustomerEligibleToBid(context.Background(), "any", "")
	check.False(t, ok)
}
