package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/google/uuid"
)

type customerRefKey struct {
	tenantID   uuid.UUID
	customerID uuid.UUID
}

type customerRefEntry struct {
	ref       acl.CustomerReference
	expiresAt time.Time
}

// CustomerRefCache is a TTL cache of customer references keyed by tenant and
// customer. A zero TTL disables caching.
type CustomerRefCache struct {
	mu      sync.RWMutex
	entries map[customerRefKey]customerRefEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCustomerRefCache creates a new CustomerRefCache
func NewCustomerRefCache(ttl time.Duration) *CustomerRefCache {
	return &CustomerRefCache{
		entries: make(map[customerRefKey]customerRefEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a live cached reference
func (c *CustomerRefCache) Get(_ context.Context, tenantID, customerID uuid.UUID) (acl.CustomerReference, bool) {
	key := customerRefKey{tenantID: tenantID, customerID: customerID}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return acl.CustomerReference{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return acl.CustomerReference{}, false
	}
	return e.ref, true
}

// Set stores a reference for the configured TTL
func (c *CustomerRefCache) Set(_ context.Context, tenantID uuid.UUID, ref acl.CustomerReference) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[customerRefKey{tenantID: tenantID, customerID: ref.ID()}] = customerRefEntry{
		ref:       ref,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops a cached reference
func (c *CustomerRefCache) Invalidate(_ context.Context, tenantID, customerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, customerRefKey{tenantID: tenantID, customerID: customerID})
}

// Len returns the number of cached references, expired ones included
func (c *CustomerRefCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ acl.CustomerReferenceCache = (*CustomerRefCache)(nil)
