package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type AuctionManager struct {
	txRunner        domain.TxRunner
	audit           auditor
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
	log             logger.Logger
}

func NewAuctionManager(txRunner domain.TxRunner, auditSink domain.AuditSink, log logger.Logger) *AuctionManager {
	return &AuctionManager{
		txRunner:        txRunner,
		audit:           auditor{sink: auditSink, log: log},
		now:             time.Now,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

func (am *AuctionManager) SetClock(now func() time.Time) {
	am.now = now
}

func (am *AuctionManager) SetPageLimits(defaultSize, maxSize int) {
	if defaultSize > 0 {
		am.defaultPageSize = defaultSize
	}
	if maxSize >= am.defaultPageSize {
		am.maxPageSize = maxSize
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, storeID string, p AuctionParams) (*domain.Auction, error) {
	now := am.now()
	if err := validateAuctionParams(storeID, p); err != nil {
		return nil, err
	}
	if !p.Draft && !now.Before(p.EndAt) {
		return nil, domain.InvalidArgument("end_at must be in the future")
	}

	auction := &domain.Auction{
		ID:        newID(),
		StoreID:   storeID,
		Status:    domain.AuctionDraft,
		CreatedAt: now,
	}
	applyParams(auction, p, now)
	if err := auction.TransitionTo(initialStatus(p, now)); err != nil {
		return nil, err
	}
	seedCurrentPrice(auction)

	err := am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Auctions().Insert(ctx, auction)
	})
	if err != nil {
		am.log.Error("Failed to create auction", "store_id", storeID, "error", err)
		return nil, toDomainError(err)
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "status", auction.Status.String())
	am.audit.record(ctx, storeID, domain.AuditCreate, auction.ID, nil, snapshot(auction), now)
	return auction, nil
}

// UpdateAuction replaces every editable field. Only drafts can be edited; the
// new status follows the same timing rule as creation.
func (am *AuctionManager) UpdateAuction(ctx context.Context, storeID, auctionID string, p AuctionParams) (*domain.Auction, error) {
	now := am.now()
	if err := validateAuctionParams(storeID, p); err != nil {
		return nil, err
	}
	if !p.Draft && !now.Before(p.EndAt) {
		return nil, domain.InvalidArgument("end_at must be in the future")
	}

	var before, after *domain.Auction
	err := am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, storeID, auctionID)
		if err != nil {
			return err
		}
		if a.Status != domain.AuctionDraft {
			return domain.InvalidArgument("only draft auctions can be edited (status %s)", a.Status)
		}
		before = a.Clone()

		applyParams(a, p, now)
		if err := a.TransitionTo(initialStatus(p, now)); err != nil {
			return err
		}
		seedCurrentPrice(a)
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		after = a
		return nil
	})
	if err != nil {
		return nil, toDomainError(err)
	}

	am.log.Info("Auction updated", "auction_id", auctionID, "status", after.Status.String())
	am.audit.record(ctx, storeID, domain.AuditUpdate, auctionID, snapshot(before), snapshot(after), now)
	return after, nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	var auction *domain.Auction
	err := am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		auction, err = load(ctx, tx, storeID, auctionID)
		return err
	})
	if err != nil {
		return nil, toDomainError(err)
	}
	return auction, nil
}

// ListAuctions pages through a store's auctions, newest first. The returned
// token is empty on the last page.
func (am *AuctionManager) ListAuctions(ctx context.Context, storeID string, status *domain.AuctionStatus, pageToken string, pageSize int) ([]*domain.Auction, string, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, "", domain.InvalidArgument("store id is required")
	}
	offset, err := decodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	switch {
	case pageSize <= 0:
		pageSize = am.defaultPageSize
	case pageSize > am.maxPageSize:
		pageSize = am.maxPageSize
	}

	var auctions []*domain.Auction
	err = am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		auctions, err = tx.Auctions().List(ctx, domain.AuctionFilter{
			StoreID: storeID,
			Status:  status,
			Offset:  offset,
			Limit:   pageSize + 1,
		})
		return err
	})
	if err != nil {
		return nil, "", toDomainError(err)
	}

	next := ""
	if len(auctions) > pageSize {
		auctions = auctions[:pageSize]
		next = encodePageToken(offset + pageSize)
	}
	return auctions, next, nil
}

// CloseAuction settles the winner from the full bid ledger. The auction goes
// to approval when a winning bid exists and meets any reserve; otherwise it
// simply ends.
func (am *AuctionManager) CloseAuction(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	now := am.now()
	var before, after *domain.Auction

	err := am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, storeID, auctionID)
		if err != nil {
			return err
		}
		if !a.Status.AcceptsBids() {
			return domain.FailedPrecondition("auction cannot be closed in status %s", a.Status)
		}
		if now.Before(a.StartAt) {
			return domain.FailedPrecondition("auction not started")
		}
		before = a.Clone()

		best, err := tx.Bids().Best(ctx, a.ID)
		if err != nil {
			return err
		}
		if best != nil {
			price := best.Amount
			bidID := best.ID
			a.WinningPrice = &price
			a.WinningBidID = &bidID
		}
		a.EndAt = now
		a.UpdatedAt = now

		next := domain.AuctionEnded
		if best != nil && reserveMet(a) {
			next = domain.AuctionAwaitingApproval
		}
		if err := a.TransitionTo(next); err != nil {
			return err
		}
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		after = a
		return nil
	})
	if err != nil {
		return nil, toDomainError(err)
	}

	winning := ""
	if after.WinningPrice != nil {
		winning = after.WinningPrice.String()
	}
	am.log.Info("Auction closed", "auction_id", auctionID, "status", after.Status.String(), "winning_price", winning)
	am.audit.record(ctx, storeID, domain.AuditClose, auctionID, snapshot(before), snapshot(after), now)
	return after, nil
}

func (am *AuctionManager) ApproveAuction(ctx context.Context, storeID, auctionID, approver string) (*domain.Auction, error) {
	if strings.TrimSpace(approver) == "" {
		return nil, domain.InvalidArgument("approver is required")
	}
	now := am.now()
	var before, after *domain.Auction

	err := am.txRunner.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := loadForUpdate(ctx, tx, storeID, auctionID)
		if err != nil {
			return err
		}
		if a.Status != domain.AuctionAwaitingApproval {
			return domain.FailedPrecondition("auction is not awaiting approval (status %s)", a.Status)
		}
		before = a.Clone()

		if err := a.TransitionTo(domain.AuctionApproved); err != nil {
			return err
		}
		approvedAt := now
		a.ApprovedBy = &approver
		a.ApprovedAt = &approvedAt
		a.UpdatedAt = now
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		after = a
		return nil
	})
	if err != nil {
		return nil, toDomainError(err)
	}

	am.log.Info("Auction approved", "auction_id", auctionID, "approved_by", approver)
	am.audit.record(ctx, storeID, domain.AuditApprove, auctionID, snapshot(before), snapshot(after), now)
	return after, nil
}

func applyParams(a *domain.Auction, p AuctionParams, now time.Time) {
	a.ProductID = p.ProductID
	a.SkuID = p.SkuID
	a.Type = p.Type
	a.Title = p.Title
	a.Description = p.Description
	a.StartAt = p.StartAt
	a.EndAt = p.EndAt
	a.StartPrice = p.StartPrice
	a.BidIncrement = p.BidIncrement
	a.ReservePrice = nil
	if p.ReservePrice != nil {
		reserve := *p.ReservePrice
		a.ReservePrice = &reserve
	}
	a.BuyoutPrice = nil
	if p.BuyoutPrice != nil {
		buyout := *p.BuyoutPrice
		a.BuyoutPrice = &buyout
	}
	a.UpdatedAt = now
}

func initialStatus(p AuctionParams, now time.Time) domain.AuctionStatus {
	switch {
	case p.Draft:
		return domain.AuctionDraft
	case !p.StartAt.After(now):
		return domain.AuctionRunning
	default:
		return domain.AuctionScheduled
	}
}

// seedCurrentPrice gives a running open auction without bids its start price
// as the displayed current price. There is still no current bid.
func seedCurrentPrice(a *domain.Auction) {
	if a.Type != domain.AuctionTypeOpen || a.Status != domain.AuctionRunning || a.CurrentPrice != nil {
		return
	}
	price := a.StartPrice
	a.CurrentPrice = &price
}

func encodePageToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, domain.InvalidArgument("invalid page token")
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, domain.InvalidArgument("invalid page token")
	}
	return offset, nil
}
