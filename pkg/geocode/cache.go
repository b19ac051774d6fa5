package geocode

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache persists geocode lookups. A stored nil result is a cached miss.
type Cache interface {
	GetGeocode(ctx context.Context, key string, maxAge time.Duration) (result *Result, found bool, err error)
	PutGeocode(ctx context.Context, key, address string, result *Result) error
}

// CacheKey returns SHA-256 hex of the normalized address for cache lookup.
func CacheKey(address string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

type cachedClient struct {
	inner Client
	cache Cache
	ttl   time.Duration
}

// NewCachedClient wraps inner so that hits and misses are remembered in
// cache for ttl. A zero ttl never expires entries.
func NewCachedClient(inner Client, cache Cache, ttl time.Duration) Client {
	return &cachedClient{inner: inner, cache: cache, ttl: ttl}
}

func (c *cachedClient) Geocode(ctx context.Context, address string) (*Result, error) {
	key := CacheKey(address)

	cached, found, err := c.cache.GetGeocode(ctx, key, c.ttl)
	if err != nil {
		zap.L().Debug("geocode cache lookup failed", zap.Error(err))
	} else if found {
		zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.Bool("matched", cached != nil))
		if cached == nil {
			return nil, ErrNotFound
		}
		return cached, nil
	}

	result, err := c.inner.Geocode(ctx, address)
	switch {
	case errors.Is(err, ErrNotFound):
		if putErr := c.cache.PutGeocode(ctx, key, address, nil); putErr != nil {
			zap.L().Debug("geocode cache store failed", zap.Error(putErr))
		}
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	if putErr := c.cache.PutGeocode(ctx, key, address, result); putErr != nil {
		zap.L().Debug("geocode cache store failed", zap.Error(putErr))
	}
	return result, nil
}
