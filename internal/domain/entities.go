package domain

import (
	"fmt"
	"strings"
	"time"
)

// Money is an amount in the currency's minor unit (yen, cents) plus its ISO code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// CheckedAdd assumes both values share a currency; callers check SameCurrency
// first. It reports false when the sum does not fit in an int64.
func (m Money) CheckedAdd(other Money) (Money, bool) {
	sum := m.Amount + other.Amount
	if (other.Amount > 0 && sum < m.Amount) || (other.Amount < 0 && sum > m.Amount) {
		return Money{}, false
	}
	return Money{Amount: sum, Currency: m.Currency}, true
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

func moneyPtr(m Money) *Money {
	return &m
}

type AuctionType int

const (
	AuctionTypeOpen AuctionType = iota
	AuctionTypeSealed
)

func (t AuctionType) String() string {
	switch t {
	case AuctionTypeOpen:
		return "open"
	case AuctionTypeSealed:
		return "sealed"
	default:
		return "unknown"
	}
}

func ParseAuctionType(s string) (AuctionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return AuctionTypeOpen, nil
	case "sealed":
		return AuctionTypeSealed, nil
	}
	return 0, fmt.Errorf("unknown auction type %q", s)
}

func (t AuctionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *AuctionType) UnmarshalText(b []byte) error {
	parsed, err := ParseAuctionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Auction is the aggregate root and the unit of locking: bids and auto-bids
// are only read or written while its row is held.
type Auction struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"store_id"`
	ProductID   string      `json:"product_id"`
	SkuID       string      `json:"sku_id"`
	Type        AuctionType `json:"auction_type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`

	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`

	StartPrice   Money  `json:"start_price"`
	BidIncrement Money  `json:"bid_increment"`
	ReservePrice *Money `json:"reserve_price,omitempty"`
	BuyoutPrice  *Money `json:"buyout_price,omitempty"`

	// Only set for open auctions.
	CurrentPrice *Money  `json:"current_price,omitempty"`
	CurrentBidID *string `json:"current_bid_id,omitempty"`

	WinningPrice *Money  `json:"winning_price,omitempty"`
	WinningBidID *string `json:"winning_bid_id,omitempty"`

	Status     AuctionStatus `json:"status"`
	ApprovedBy *string       `json:"approved_by,omitempty"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCurrentBid reports whether an open auction has a leading bid. The
// current price alone is not enough: activation seeds it with the start price.
func (a *Auction) HasCurrentBid() bool {
	return a.CurrentBidID != nil
}

func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a
	if a.ReservePrice != nil {
		c.ReservePrice = moneyPtr(*a.ReservePrice)
	}
	if a.BuyoutPrice != nil {
		c.BuyoutPrice = moneyPtr(*a.BuyoutPrice)
	}
	if a.CurrentPrice != nil {
		c.CurrentPrice = moneyPtr(*a.CurrentPrice)
	}
	if a.WinningPrice != nil {
		c.WinningPrice = moneyPtr(*a.WinningPrice)
	}
	if a.CurrentBidID != nil {
		id := *a.CurrentBidID
		c.CurrentBidID = &id
	}
	if a.WinningBidID != nil {
		id := *a.WinningBidID
		c.WinningBidID = &id
	}
	if a.ApprovedBy != nil {
		by := *a.ApprovedBy
		c.ApprovedBy = &by
	}
	if a.ApprovedAt != nil {
		at := *a.ApprovedAt
		c.ApprovedAt = &at
	}
	return &c
}

// Bid rows are append-only.
type Bid struct {
	ID         string `json:"id"`
	AuctionID  string `json:"auction_id"`
	CustomerID string `json:"customer_id"`
	Amount     Money  `json:"amount"`
	// Auto marks bids placed by the proxy resolver on the customer's behalf.
	Auto      bool      `json:"auto"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

type AutoBidStatus int

const (
	AutoBidActive AutoBidStatus = iota
	AutoBidDisabled
)

func (s AutoBidStatus) String() string {
	switch s {
	case AutoBidActive:
		return "active"
	case AutoBidDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func ParseAutoBidStatus(s string) (AutoBidStatus, error) {
	switch s {
	case "active":
		return AutoBidActive, nil
	case "disabled":
		return AutoBidDisabled, nil
	}
	return 0, fmt.Errorf("unknown auto-bid status %q", s)
}

func (s AutoBidStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AutoBidStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseAutoBidStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AutoBid is a customer's standing maximum for one auction. There is at most
// one row per (auction, customer); disabling keeps the row.
type AutoBid struct {
	ID         string        `json:"id"`
	AuctionID  string        `json:"auction_id"`
	CustomerID string        `json:"customer_id"`
	MaxAmount  Money         `json:"max_amount"`
	Status     AutoBidStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (a *AutoBid) Clone() *AutoBid {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

type AuditAction string

const (
	AuditCreate   AuditAction = "create"
	AuditUpdate   AuditAction = "update"
	AuditPlaceBid AuditAction = "place_bid"
	AuditAutoBid  AuditAction = "auto_bid"
	AuditActivate AuditAction = "activate"
	AuditClose    AuditAction = "close"
	AuditApprove  AuditAction = "approve"
)

type AuditRecord struct {
	ID         string      `json:"id"`
	StoreID    string      `json:"store_id"`
	Action     AuditAction `json:"action"`
	Target     string      `json:"target"`
	Before     interface{} `json:"before,omitempty"`
	After      interface{} `json:"after,omitempty"`
	Actor      string      `json:"actor,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func AuctionTarget(auctionID string) string {
	return "auction:" + auctionID
}
