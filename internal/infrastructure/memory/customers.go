package memory

import (
	"context"
	"sync"
)

// Customers is a static eligibility registry keyed by store.
type Customers struct {
	mu       sync.RWMutex
	allowAll bool
	eligible map[string]map[string]bool
}

// NewCustomers returns a registry. With allowAll every non-empty customer is
// eligible, which is how the memory driver runs in development.
func NewCustomers(allowAll bool) *Customers {
	return &Customers{
		allowAll: allowAll,
		eligible: make(map[string]map[string]bool),
	}
}

func (c *Customers) Allow(storeID string, customerIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	perStore, ok := c.eligible[storeID]
	if !ok {
		perStore = make(map[string]bool)
		c.eligible[storeID] = perStore
	}
	for _, id := range customerIDs {
		perStore[id] = true
	}
}

func (c *Customers) Revoke(storeID, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.eligible[storeID], customerID)
}

func (c *Customers) IsCustomerEligibleToBid(ctx context.Context, storeID, customerID string) (bool, error) {
	if customerID == "" {
		return false, nil
	}
	if c.allowAll {
		return true, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eligible[storeID][customerID], nil
}
