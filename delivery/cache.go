package delivery

import (
	"sync"

	"benemax/models"
)

// subscriptionCache guarda o fan-out por (tenant, event). Subscriptions são
// read-mostly: o cache só é invalidado em register/update/delete.
type subscriptionCache struct {
	mu      sync.RWMutex
	entries map[string][]models.WebhookSubscription
}

func newSubscriptionCache() *subscriptionCache {
	return &subscriptionCache{entries: make(map[string][]models.WebhookSubscription)}
}

func cacheKey(tenantID, event string) string {
	return tenantID + "|" + event
}

func (c *subscriptionCache) get(tenantID, event string) ([]models.WebhookSubscription, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs, ok := c.entries[cacheKey(tenantID, event)]
	return subs, ok
}

func (c *subscriptionCache) put(tenantID, event string, subs []models.WebhookSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tenantID, event)] = subs
}

func (c *subscriptionCache) invalidate(tenantID, event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(tenantID, event))
}
