package leader

import (
	"auction-engine/internal/domain"
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ domain.LeaderElection = (*RedisLeaderElection)(nil)

const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	extendScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisLeaderElection holds a single key with a TTL. The owner refreshes it
// from a heartbeat goroutine until leadership is released or lost.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu         sync.Mutex
	heartbeats map[string]*heartbeat
}

type heartbeat struct {
	cancel context.CancelFunc
}

func NewRedisLeaderElection(client *redis.Client, key string, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client:     client,
		key:        key,
		ttl:        ttl,
		heartbeats: make(map[string]*heartbeat),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		r.startHeartbeat(instanceID)
	}

	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Err()
}

// Extend refreshes the TTL and reports whether instanceID still holds the key.
func (r *RedisLeaderElection) Extend(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.Eval(ctx, extendScript, []string{r.key},
		instanceID, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.heartbeats[instanceID]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	hb := &heartbeat{cancel: cancel}
	r.heartbeats[instanceID] = hb
	go r.maintainLeadership(ctx, instanceID, hb)
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hb, ok := r.heartbeats[instanceID]; ok {
		hb.cancel()
		delete(r.heartbeats, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(ctx context.Context, instanceID string, hb *heartbeat) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		hb.cancel()
		if r.heartbeats[instanceID] == hb {
			delete(r.heartbeats, instanceID)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		held, err := r.Extend(callCtx, instanceID)
		cancel()

		if err != nil || !held {
			// Lost leadership, stop heartbeat
			return
		}
	}
}
