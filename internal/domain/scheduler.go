package domain

import (
	"context"
)

// LeaderElection lets one instance own the periodic activation job. The
// claim itself skips locked rows, so running it on several instances is
// still correct, only wasteful.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
