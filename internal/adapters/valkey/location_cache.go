package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// LocationCache stores the cached location of one session in Valkey so
// every API replica sees the same slot.
type LocationCache struct {
	cache *Cache
	key   string
	ttl   time.Duration
}

// NewLocationCache returns the slot of session. Entries expire after ttl on
// the server as well as through the provider's own freshness check.
func (c *Cache) NewLocationCache(session string, ttl time.Duration) *LocationCache {
	return &LocationCache{cache: c, key: "location:" + session, ttl: ttl}
}

func (l *LocationCache) Get(ctx context.Context) (domain.CachedLocation, bool, error) {
	data, err := l.cache.Get(ctx, l.key)
	if errors.Is(err, ErrMiss) {
		return domain.CachedLocation{}, false, nil
	}
	if err != nil {
		return domain.CachedLocation{}, false, fmt.Errorf("get location: %w", err)
	}
	var entry domain.CachedLocation
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.CachedLocation{}, false, fmt.Errorf("decode location: %w", err)
	}
	return entry, true, nil
}

func (l *LocationCache) Set(ctx context.Context, entry domain.CachedLocation) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.cache.SetTTL(ctx, l.key, data, l.ttl)
}

func (l *LocationCache) Clear(ctx context.Context) error {
	return l.cache.Delete(ctx, l.key)
}
