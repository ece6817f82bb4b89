// Package service provides domain services for Sevault.
package service

import (
	"sync"

	"github.com/spaolacci/murmur3"
	"golang.org/x/time/rate"
)

// limiterShardCount is the number of registry shards. Must be a power of
// two so the murmur3 hash can be masked instead of divided.
const limiterShardCount = 16

// RateLimiterRegistry manages per-application token-bucket limiters.
//
// Every authenticated request touches the registry, so it is sharded by
// application ID to keep lock contention off the hot path.
type RateLimiterRegistry struct {
	shards [limiterShardCount]*limiterShard
}

type limiterShard struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates a new RateLimiterRegistry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	r := &RateLimiterRegistry{}
	for i := range r.shards {
		r.shards[i] = &limiterShard{limiters: make(map[string]*rate.Limiter)}
	}
	return r
}

// shardFor selects the shard for an application ID.
func (r *RateLimiterRegistry) shardFor(appID string) *limiterShard {
	return r.shards[murmur3.Sum32([]byte(appID))&(limiterShardCount-1)]
}

// GetOrCreate retrieves an existing limiter or creates a new one allowing
// rateLimit requests per second with an equal burst.
func (r *RateLimiterRegistry) GetOrCreate(appID string, rateLimit int) *rate.Limiter {
	shard := r.shardFor(appID)

	shard.mu.RLock()
	limiter, exists := shard.limiters[appID]
	shard.mu.RUnlock()

	if exists {
		return limiter
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := shard.limiters[appID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	shard.limiters[appID] = limiter

	return limiter
}

// Delete removes the limiter for an application, so the next request
// rebuilds it from the application's current rate limit.
func (r *RateLimiterRegistry) Delete(appID string) {
	shard := r.shardFor(appID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.limiters, appID)
}

// Size returns the number of tracked limiters.
func (r *RateLimiterRegistry) Size() int {
	total := 0
	for _, shard := range r.shards {
		shard.mu.RLock()
		total += len(shard.limiters)
		shard.mu.RUnlock()
	}
	return total
}

// Clear removes all limiters.
func (r *RateLimiterRegistry) Clear() {
	for _, shard := range r.shards {
		shard.mu.Lock()
		shard.limiters = make(map[string]*rate.Limiter)
		shard.mu.Unlock()
	}
}
