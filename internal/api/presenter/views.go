// Package presenter maps domain values to their wire form. Money travels as
// a decimal string in major units next to its currency code.
package presenter

import (
	"auction-engine/internal/domain"
	"auction-engine/internal/money"
	"net/http"
	"time"
)

type MoneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func Money(m domain.Money) MoneyView {
	return MoneyView{Amount: money.Format(m), Currency: m.Currency}
}

func MoneyPtr(m *domain.Money) *MoneyView {
	if m == nil {
		return nil
	}
	v := Money(*m)
	return &v
}

// ToDomain parses a wire amount. A blank currency falls back to fallback.
func (v MoneyView) ToDomain(fallback string) (domain.Money, error) {
	return money.Parse(v.Amount, v.currency(fallback))
}

// OptionalToDomain returns nil for a missing or blank amount.
func OptionalToDomain(v *MoneyView, fallback string) (*domain.Money, error) {
	if v == nil {
		return nil, nil
	}
	return money.ParseOptional(v.Amount, v.currency(fallback))
}

func (v MoneyView) currency(fallback string) string {
	if v.Currency == "" {
		return fallback
	}
	return v.Currency
}

type AuctionView struct {
	ID           string     `json:"id"`
	StoreID      string     `json:"store_id"`
	ProductID    string     `json:"product_id"`
	SkuID        string     `json:"sku_id"`
	Type         string     `json:"auction_type"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        time.Time  `json:"end_at"`
	StartPrice   MoneyView  `json:"start_price"`
	BidIncrement MoneyView  `json:"bid_increment"`
	ReservePrice *MoneyView `json:"reserve_price,omitempty"`
	BuyoutPrice  *MoneyView `json:"buyout_price,omitempty"`
	CurrentPrice *MoneyView `json:"current_price,omitempty"`
	CurrentBidID *string    `json:"current_bid_id,omitempty"`
	WinningPrice *MoneyView `json:"winning_price,omitempty"`
	WinningBidID *string    `json:"winning_bid_id,omitempty"`
	Status       string     `json:"status"`
	ApprovedBy   *string    `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func Auction(a *domain.Auction) AuctionView {
	return AuctionView{
		ID:           a.ID,
		StoreID:      a.StoreID,
		ProductID:    a.ProductID,
		SkuID:        a.SkuID,
		Type:         a.Type.String(),
		Title:        a.Title,
		Description:  a.Description,
		StartAt:      a.StartAt,
		EndAt:        a.EndAt,
		StartPrice:   Money(a.StartPrice),
		BidIncrement: Money(a.BidIncrement),
		ReservePrice: MoneyPtr(a.ReservePrice),
		BuyoutPrice:  MoneyPtr(a.BuyoutPrice),
		CurrentPrice: MoneyPtr(a.CurrentPrice),
		CurrentBidID: a.CurrentBidID,
		WinningPrice: MoneyPtr(a.WinningPrice),
		WinningBidID: a.WinningBidID,
		Status:       a.Status.String(),
		ApprovedBy:   a.ApprovedBy,
		ApprovedAt:   a.ApprovedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func Auctions(list []*domain.Auction) []AuctionView {
	views := make([]AuctionView, 0, len(list))
	for _, a := range list {
		views = append(views, Auction(a))
	}
	return views
}

type BidView struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auction_id"`
	CustomerID string    `json:"customer_id"`
	Amount     MoneyView `json:"amount"`
	Auto       bool      `json:"auto"`
	CreatedAt  time.Time `json:"created_at"`
}

func Bid(b *domain.Bid) BidView {
	return BidView{
		ID:         b.ID,
		AuctionID:  b.AuctionID,
		CustomerID: b.CustomerID,
		Amount:     Money(b.Amount),
		Auto:       b.Auto,
		CreatedAt:  b.CreatedAt,
	}
}

func Bids(list []*domain.Bid) []BidView {
	views := make([]BidView, 0, len(list))
	for _, b := range list {
		views = append(views, Bid(b))
	}
	return views
}

type AutoBidView struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auction_id"`
	CustomerID string    `json:"customer_id"`
	MaxAmount  MoneyView `json:"max_amount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func AutoBid(a *domain.AutoBid) AutoBidView {
	return AutoBidView{
		ID:         a.ID,
		AuctionID:  a.AuctionID,
		CustomerID: a.CustomerID,
		MaxAmount:  Money(a.MaxAmount),
		Status:     a.Status.String(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func AutoBids(list []*domain.AutoBid) []AutoBidView {
	views := make([]AutoBidView, 0, len(list))
	for _, a := range list {
		views = append(views, AutoBid(a))
	}
	return views
}

type ErrorView struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func Error(err error) ErrorView {
	return ErrorView{Error: domain.ReasonOf(err), Code: domain.KindOf(err).String()}
}

// Status maps a domain error kind to an HTTP status.
func Status(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindFailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
