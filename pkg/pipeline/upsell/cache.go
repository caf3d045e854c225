package upsell

import (
	"sync"
	"time"

	"github.com/tigerroll/cascade/pkg/pipeline/core/domain/model"
)

// suggestionCache is a small TTL cache of per-order suggestion results.
// Underlying history changes only when a new job completes, so a short TTL is
// enough to absorb repeated dashboard polls for the same order.
type suggestionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	suggestions []model.Suggestion
	expiresAt   time.Time
}

// newSuggestionCache creates a cache with the given TTL. A non-positive TTL
// disables caching.
func newSuggestionCache(ttl time.Duration) *suggestionCache {
	return &suggestionCache{
		ttl:     ttl,
		entries: map[string]cacheEntry{},
	}
}

// get returns the cached suggestions for the order, if fresh.
func (c *suggestionCache) get(orderRef string) ([]model.Suggestion, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[orderRef]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, orderRef)
		return nil, false
	}
	return entry.suggestions, true
}

// put stores the suggestions for the order and prunes expired entries.
func (c *suggestionCache) put(orderRef string, suggestions []model.Suggestion) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.entries[orderRef] = cacheEntry{
		suggestions: suggestions,
		expiresAt:   now.Add(c.ttl),
	}
}
