package dedup

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the durable side of the guard, satisfied by the database.
type Store interface {
	HasMessage(ctx context.Context, providerMessageID string) (bool, error)
}

// Guard answers "was this provider message id already processed?".
// A TTL cache absorbs the common case of provider redeliveries arriving
// seconds apart; the durable store is the authority for anything the
// cache has evicted or that predates a restart. The cache is bounded by
// TTL eviction, so a burst of traffic cannot wipe recent entries the way
// a clear-on-threshold map would.
type Guard struct {
	cache *gocache.Cache
	store Store
}

func NewGuard(ttl, sweepInterval time.Duration, store Store) *Guard {
	return &Guard{
		cache: gocache.New(ttl, sweepInterval),
		store: store,
	}
}

// Seen reports whether the message id was already accepted. It does not
// mark: marking happens when the durable insert succeeds, so a crash
// between Seen and the insert cannot lose a message.
func (g *Guard) Seen(ctx context.Context, providerMessageID string) (bool, error) {
	if _, found := g.cache.Get(providerMessageID); found {
		return true, nil
	}

	exists, err := g.store.HasMessage(ctx, providerMessageID)
	if err != nil {
		return false, fmt.Errorf("durable dedup lookup: %w", err)
	}
	if exists {
		// Refresh the memory tier so the next redelivery is answered
		// without a database round trip.
		g.cache.SetDefault(providerMessageID, struct{}{})
	}
	return exists, nil
}

// Mark records the id in the memory tier after a successful durable
// insert.
func (g *Guard) Mark(providerMessageID string) {
	g.cache.SetDefault(providerMessageID, struct{}{})
}
