// Package memory is an in-process implementation of the auction store. Each
// auction id has its own exclusive lock standing in for a row lock, and a
// transaction buffers its writes until commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

type Store struct {
	mu            sync.RWMutex
	auctions      map[string]*domain.Auction
	bids          map[string]*domain.Bid
	bidsByAuction map[string][]string
	autoBids      map[string]map[string]*domain.AutoBid

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewStore() *Store {
	return &Store{
		auctions:      make(map[string]*domain.Auction),
		bids:          make(map[string]*domain.Bid),
		bidsByAuction: make(map[string][]string),
		autoBids:      make(map[string]map[string]*domain.AutoBid),
		locks:         make(map[string]chan struct{}),
	}
}

func (s *Store) lockFor(auctionID string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[auctionID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[auctionID] = ch
	}
	return ch
}

// lock blocks until the auction is free or ctx is done.
func (s *Store) lock(ctx context.Context, auctionID string) error {
	select {
	case s.lockFor(auctionID) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) tryLock(auctionID string) bool {
	select {
	case s.lockFor(auctionID) <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Store) unlock(auctionID string) {
	<-s.lockFor(auctionID)
}

// RunInTx commits fn's writes only when it returns nil and ctx is still live.
// Locks are released on every path, including a panic inside fn.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	t := newTx(s)
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

type tx struct {
	store *Store
	held  map[string]bool

	auctions map[string]*domain.Auction
	bids     []*domain.Bid
	autoBids map[string]*domain.AutoBid
}

func newTx(s *Store) *tx {
	return &tx{
		store:    s,
		held:     make(map[string]bool),
		auctions: make(map[string]*domain.Auction),
		autoBids: make(map[string]*domain.AutoBid),
	}
}

func (t *tx) Auctions() domain.AuctionRepository { return auctionRepo{t} }
func (t *tx) Bids() domain.BidRepository         { return bidRepo{t} }
func (t *tx) AutoBids() domain.AutoBidRepository { return autoBidRepo{t} }

func (t *tx) acquire(ctx context.Context, auctionID string) error {
	if t.held[auctionID] {
		return nil
	}
	if err := t.store.lock(ctx, auctionID); err != nil {
		return err
	}
	t.held[auctionID] = true
	return nil
}

func (t *tx) tryAcquire(auctionID string) bool {
	if t.held[auctionID] {
		return true
	}
	if !t.store.tryLock(auctionID) {
		return false
	}
	t.held[auctionID] = true
	return true
}

func (t *tx) release() {
	for id := range t.held {
		t.store.unlock(id)
	}
	t.held = nil
}

func (t *tx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range t.auctions {
		s.auctions[id] = a
	}
	for _, b := range t.bids {
		s.bids[b.ID] = b
		s.bidsByAuction[b.AuctionID] = append(s.bidsByAuction[b.AuctionID], b.ID)
	}
	for _, ab := range t.autoBids {
		perAuction, ok := s.autoBids[ab.AuctionID]
		if !ok {
			perAuction = make(map[string]*domain.AutoBid)
			s.autoBids[ab.AuctionID] = perAuction
		}
		perAuction[ab.CustomerID] = ab
	}
}

// auction returns the tx-visible row, uncloned.
func (t *tx) auction(auctionID string) *domain.Auction {
	if a, ok := t.auctions[auctionID]; ok {
		return a
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.auctions[auctionID]
}

func (t *tx) visibleAuctions() []*domain.Auction {
	t.store.mu.RLock()
	merged := make(map[string]*domain.Auction, len(t.store.auctions)+len(t.auctions))
	for id, a := range t.store.auctions {
		merged[id] = a
	}
	t.store.mu.RUnlock()

	for id, a := range t.auctions {
		merged[id] = a
	}
	out := make([]*domain.Auction, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	return out
}

func (t *tx) visibleBids(auctionID string) []*domain.Bid {
	t.store.mu.RLock()
	ids := t.store.bidsByAuction[auctionID]
	out := make([]*domain.Bid, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.store.bids[id])
	}
	t.store.mu.RUnlock()

	for _, b := range t.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out
}

func autoBidKey(auctionID, customerID string) string {
	return auctionID + "/" + customerID
}

func (t *tx) visibleAutoBids(auctionID string) []*domain.AutoBid {
	merged := make(map[string]*domain.AutoBid)
	t.store.mu.RLock()
	for customerID, ab := range t.store.autoBids[auctionID] {
		merged[customerID] = ab
	}
	t.store.mu.RUnlock()

	for _, ab := range t.autoBids {
		if ab.AuctionID == auctionID {
			merged[ab.CustomerID] = ab
		}
	}
	out := make([]*domain.AutoBid, 0, len(merged))
	for _, ab := range merged {
		out = append(out, ab)
	}
	return out
}

type auctionRepo struct{ t *tx }

func (r auctionRepo) Insert(ctx context.Context, auction *domain.Auction) error {
	if r.t.auction(auction.ID) != nil {
		return domain.Internal("duplicate auction id", nil)
	}
	r.t.auctions[auction.ID] = auction.Clone()
	return nil
}

func (r auctionRepo) Get(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	a := r.t.auction(auctionID)
	if a == nil || a.StoreID != storeID {
		return nil, domain.ErrRecordNotFound
	}
	return a.Clone(), nil
}

func (r auctionRepo) GetForUpdate(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	// Unknown ids are rejected before locking so lookups of garbage ids
	// don't grow the lock table.
	if a := r.t.auction(auctionID); a == nil || a.StoreID != storeID {
		return nil, domain.ErrRecordNotFound
	}
	if err := r.t.acquire(ctx, auctionID); err != nil {
		return nil, err
	}
	return r.Get(ctx, storeID, auctionID)
}

func (r auctionRepo) Update(ctx context.Context, auction *domain.Auction) error {
	if r.t.auction(auction.ID) == nil {
		return domain.ErrRecordNotFound
	}
	r.t.auctions[auction.ID] = auction.Clone()
	return nil
}

func (r auctionRepo) List(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	var matched []*domain.Auction
	for _, a := range r.t.visibleAuctions() {
		if a.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return []*domain.Auction{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]*domain.Auction, len(matched))
	for i, a := range matched {
		out[i] = a.Clone()
	}
	return out, nil
}

func (r auctionRepo) ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	var due []*domain.Auction
	for _, a := range r.t.visibleAuctions() {
		if a.Status == domain.AuctionScheduled && !a.StartAt.After(now) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].StartAt.Equal(due[j].StartAt) {
			return due[i].StartAt.Before(due[j].StartAt)
		}
		return due[i].ID < due[j].ID
	})

	claimed := make([]*domain.Auction, 0, limit)
	for _, a := range due {
		if len(claimed) >= limit {
			break
		}
		if !r.t.tryAcquire(a.ID) {
			continue
		}
		// Another claimer may have committed between the scan and the lock.
		current := r.t.auction(a.ID)
		if current.Status != domain.AuctionScheduled {
			continue
		}
		claimed = append(claimed, current.Clone())
	}
	return claimed, nil
}

type bidRepo struct{ t *tx }

func (r bidRepo) Insert(ctx context.Context, bid *domain.Bid) error {
	r.t.bids = append(r.t.bids, bid.Clone())
	return nil
}

func (r bidRepo) Get(ctx context.Context, bidID string) (*domain.Bid, error) {
	for _, b := range r.t.bids {
		if b.ID == bidID {
			return b.Clone(), nil
		}
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	if b, ok := r.t.store.bids[bidID]; ok {
		return b.Clone(), nil
	}
	return nil, domain.ErrRecordNotFound
}

func (r bidRepo) Best(ctx context.Context, auctionID string) (*domain.Bid, error) {
	var best *domain.Bid
	for _, b := range r.t.visibleBids(auctionID) {
		if best == nil ||
			b.Amount.Amount > best.Amount.Amount ||
			(b.Amount.Amount == best.Amount.Amount && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	return best.Clone(), nil
}

func (r bidRepo) ListByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	bids := r.t.visibleBids(auctionID)
	// Stable keeps insertion order for bids with the same timestamp.
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	out := make([]*domain.Bid, len(bids))
	for i, b := range bids {
		out[i] = b.Clone()
	}
	return out, nil
}

type autoBidRepo struct{ t *tx }

func (r autoBidRepo) Upsert(ctx context.Context, autoBid *domain.AutoBid) error {
	r.t.autoBids[autoBidKey(autoBid.AuctionID, autoBid.CustomerID)] = autoBid.Clone()
	return nil
}

func (r autoBidRepo) Get(ctx context.Context, auctionID, customerID string) (*domain.AutoBid, error) {
	if ab, ok := r.t.autoBids[autoBidKey(auctionID, customerID)]; ok {
		return ab.Clone(), nil
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	return r.t.store.autoBids[auctionID][customerID].Clone(), nil
}

func sortAutoBids(autoBids []*domain.AutoBid) {
	sort.Slice(autoBids, func(i, j int) bool {
		if autoBids[i].MaxAmount.Amount != autoBids[j].MaxAmount.Amount {
			return autoBids[i].MaxAmount.Amount > autoBids[j].MaxAmount.Amount
		}
		if !autoBids[i].CreatedAt.Equal(autoBids[j].CreatedAt) {
			return autoBids[i].CreatedAt.Before(autoBids[j].CreatedAt)
		}
		return autoBids[i].ID < autoBids[j].ID
	})
}

func (r autoBidRepo) TopActive(ctx context.Context, auctionID string, limit int) ([]*domain.AutoBid, error) {
	var active []*domain.AutoBid
	for _, ab := range r.t.visibleAutoBids(auctionID) {
		if ab.Status == domain.AutoBidActive {
			active = append(active, ab)
		}
	}
	sortAutoBids(active)
	if len(active) > limit {
		active = active[:limit]
	}
	out := make([]*domain.AutoBid, len(active))
	for i, ab := range active {
		out[i] = ab.Clone()
	}
	return out, nil
}

func (r autoBidRepo) ListByAuction(ctx context.Context, auctionID string) ([]*domain.AutoBid, error) {
	all := r.t.visibleAutoBids(auctionID)
	sortAutoBids(all)
	out := make([]*domain.AutoBid, len(all))
	for i, ab := range all {
		out[i] = ab.Clone()
	}
	return out, nil
}
