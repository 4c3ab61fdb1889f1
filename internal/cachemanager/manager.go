// Package cachemanager caches pipeline results in memory, keyed by a
// content digest of the source document.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager stores values by key with a per-entry lifetime.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
}
