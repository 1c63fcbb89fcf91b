package services

import (
	"auction-engine/internal/domain"
	"math"
	"strings"
	"time"
)

// minimumBid is the lowest acceptable amount for the next bid. Sealed
// auctions only enforce the start price. ok is false once the price is so
// high that no further increment can be represented.
func minimumBid(a *domain.Auction) (next domain.Money, ok bool) {
	if a.Type == domain.AuctionTypeOpen && a.HasCurrentBid() && a.CurrentPrice != nil {
		return a.CurrentPrice.CheckedAdd(a.BidIncrement)
	}
	return a.StartPrice, true
}

// saturatingAdd adds two non-negative amounts, clamping at math.MaxInt64.
func saturatingAdd(x, y int64) int64 {
	if x > math.MaxInt64-y {
		return math.MaxInt64
	}
	return x + y
}

func checkBiddingWindow(a *domain.Auction, now time.Time) error {
	if now.Before(a.StartAt) {
		return domain.FailedPrecondition("auction not started")
	}
	if !now.Before(a.EndAt) {
		return domain.FailedPrecondition("auction already ended")
	}
	if !a.Status.AcceptsBids() {
		return domain.FailedPrecondition("auction not running (status %s)", a.Status)
	}
	return nil
}

func validateBidAmount(a *domain.Auction, amount domain.Money) error {
	if !amount.SameCurrency(a.StartPrice) {
		return domain.InvalidArgument("currency mismatch: auction is priced in %s, bid is in %s",
			a.StartPrice.Currency, amount.Currency)
	}
	if amount.Amount <= 0 {
		return domain.InvalidArgument("bid amount must be positive")
	}
	min, ok := minimumBid(a)
	if !ok {
		return domain.FailedPrecondition("auction price %s cannot be raised any further", *a.CurrentPrice)
	}
	if amount.Amount < min.Amount {
		return domain.InvalidArgument("bid too low: minimum is %s", min)
	}
	return nil
}

// applyBid moves the auction's price pointers to reflect an accepted bid. For
// sealed auctions only a strictly higher bid replaces the winner, so the
// earlier bid keeps a tie.
func applyBid(a *domain.Auction, bid *domain.Bid) {
	price := bid.Amount
	bidID := bid.ID

	switch a.Type {
	case domain.AuctionTypeOpen:
		current := price
		currentID := bidID
		a.CurrentPrice = &current
		a.CurrentBidID = &currentID
		a.WinningPrice = &price
		a.WinningBidID = &bidID
	case domain.AuctionTypeSealed:
		if a.WinningPrice == nil || price.Amount > a.WinningPrice.Amount {
			a.WinningPrice = &price
			a.WinningBidID = &bidID
		}
	}
	a.UpdatedAt = bid.CreatedAt
}

// applyBuyout sends the auction to approval once the effective price reaches
// the buyout price.
func applyBuyout(a *domain.Auction) error {
	if a.BuyoutPrice == nil {
		return nil
	}
	price := a.WinningPrice
	if a.Type == domain.AuctionTypeOpen {
		price = a.CurrentPrice
	}
	if price == nil || !price.SameCurrency(*a.BuyoutPrice) || price.Amount < a.BuyoutPrice.Amount {
		return nil
	}
	return a.TransitionTo(domain.AuctionAwaitingApproval)
}

// reserveMet is true when there is no reserve or the winning price reaches it.
func reserveMet(a *domain.Auction) bool {
	if a.ReservePrice == nil {
		return true
	}
	return a.WinningPrice != nil &&
		a.WinningPrice.SameCurrency(*a.ReservePrice) &&
		a.ReservePrice.Amount <= a.WinningPrice.Amount
}

// AuctionParams carries the editable fields of an auction.
type AuctionParams struct {
	ProductID    string
	SkuID        string
	Type         domain.AuctionType
	Title        string
	Description  string
	StartAt      time.Time
	EndAt        time.Time
	StartPrice   domain.Money
	BidIncrement domain.Money
	ReservePrice *domain.Money
	BuyoutPrice  *domain.Money
	// Draft keeps the auction editable instead of scheduling it.
	Draft bool
}

func validateAuctionParams(storeID string, p AuctionParams) error {
	if strings.TrimSpace(storeID) == "" {
		return domain.InvalidArgument("store id is required")
	}
	if strings.TrimSpace(p.ProductID) == "" {
		return domain.InvalidArgument("product id is required")
	}
	if strings.TrimSpace(p.SkuID) == "" {
		return domain.InvalidArgument("sku id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return domain.InvalidArgument("title is required")
	}
	if p.Type != domain.AuctionTypeOpen && p.Type != domain.AuctionTypeSealed {
		return domain.InvalidArgument("unknown auction type %d", p.Type)
	}
	if p.StartAt.IsZero() || p.EndAt.IsZero() {
		return domain.InvalidArgument("start_at and end_at are required")
	}
	if !p.EndAt.After(p.StartAt) {
		return domain.InvalidArgument("end_at must be after start_at")
	}

	currency := p.StartPrice.Currency
	if currency == "" {
		return domain.InvalidArgument("start price currency is required")
	}
	if p.StartPrice.Amount <= 0 {
		return domain.InvalidArgument("start price must be positive")
	}
	if !p.BidIncrement.SameCurrency(p.StartPrice) {
		return domain.InvalidArgument("bid increment must be in %s", currency)
	}
	if p.Type == domain.AuctionTypeOpen && p.BidIncrement.Amount <= 0 {
		return domain.InvalidArgument("bid increment must be positive for open auctions")
	}
	if p.BidIncrement.Amount < 0 {
		return domain.InvalidArgument("bid increment must not be negative")
	}
	if _, ok := p.StartPrice.CheckedAdd(p.BidIncrement); !ok {
		return domain.InvalidArgument("start price plus bid increment is too large")
	}
	if p.ReservePrice != nil {
		if !p.ReservePrice.SameCurrency(p.StartPrice) {
			return domain.InvalidArgument("reserve price must be in %s", currency)
		}
		if p.ReservePrice.Amount <= 0 {
			return domain.InvalidArgument("reserve price must be positive")
		}
	}
	if p.BuyoutPrice != nil {
		if !p.BuyoutPrice.SameCurrency(p.StartPrice) {
			return domain.InvalidArgument("buyout price must be in %s", currency)
		}
		if p.BuyoutPrice.Amount < p.StartPrice.Amount {
			return domain.InvalidArgument("buyout price must not be below the start price")
		}
	}
	return nil
}
