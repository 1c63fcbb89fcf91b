package domain

import "fmt"

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionScheduled
	AuctionRunning
	AuctionEnded
	AuctionAwaitingApproval
	AuctionApproved
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionDraft:
		return "draft"
	case AuctionScheduled:
		return "scheduled"
	case AuctionRunning:
		return "running"
	case AuctionEnded:
		return "ended"
	case AuctionAwaitingApproval:
		return "awaiting_approval"
	case AuctionApproved:
		return "approved"
	default:
		return "unknown"
	}
}

func ParseAuctionStatus(s string) (AuctionStatus, error) {
	for st := AuctionDraft; st <= AuctionApproved; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown auction status %q", s)
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AuctionStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseAuctionStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var validNext = map[AuctionStatus]map[AuctionStatus]bool{
	AuctionDraft:            {AuctionScheduled: true, AuctionRunning: true},
	AuctionScheduled:        {AuctionRunning: true, AuctionAwaitingApproval: true, AuctionEnded: true},
	AuctionRunning:          {AuctionAwaitingApproval: true, AuctionEnded: true},
	AuctionEnded:            {},
	AuctionAwaitingApproval: {AuctionApproved: true},
	AuctionApproved:         {},
}

func CanTransition(from, to AuctionStatus) bool {
	return validNext[from][to]
}

// TransitionTo moves the auction to the given status. Every status change in
// the engine goes through here.
func (a *Auction) TransitionTo(to AuctionStatus) error {
	if a.Status == to {
		return nil
	}
	if !CanTransition(a.Status, to) {
		return FailedPrecondition("auction cannot move from %s to %s", a.Status, to)
	}
	a.Status = to
	return nil
}

// AcceptsBids reports whether bids may be placed in the current status. A
// scheduled auction whose start has passed promotes itself on the first bid.
func (s AuctionStatus) AcceptsBids() bool {
	return s == AuctionScheduled || s == AuctionRunning
}
