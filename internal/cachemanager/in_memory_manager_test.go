package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cachedResult struct {
	HTML  string
	Spans int
}

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[Key, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, *cachedResult]("results", DefaultExpiration, DefaultCleanupInterval)
	result := &cachedResult{HTML: "<p>a</p>\n", Spans: 1}
	key := KeyOf([]byte("a"))

	cache.Set(context.Background(), key, result, DefaultExpiration)

	got, ok := cache.Get(context.Background(), key)
	require.True(t, ok)
	require.Same(t, result, got)
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, string]("results", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, string]("results", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("doc", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "doc")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiration(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, string]("results", DefaultExpiration, DefaultCleanupInterval)

	cache.Set(context.Background(), "doc", "html", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(context.Background(), "doc")
	require.False(t, ok)
}

func TestInMemoryCacheManager_GetWithRefresh(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, string]("results", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "doc", "html", 50*time.Millisecond)

	got, ok := cache.GetWithRefresh(ctx, "doc", time.Hour)
	require.True(t, ok)
	require.Equal(t, "html", got)

	time.Sleep(80 * time.Millisecond)
	got, ok = cache.Get(ctx, "doc")
	require.True(t, ok)
	require.Equal(t, "html", got)

	_, ok = cache.GetWithRefresh(ctx, "other", time.Hour)
	require.False(t, ok)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[Key, string]("results", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	cache.Set(ctx, "c", "3", DefaultExpiration)

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "b")
	require.False(t, ok)

	require.NoError(t, cache.Delete(ctx))
	got, ok := cache.Get(ctx, "c")
	require.True(t, ok)
	require.Equal(t, "3", got)
}

func TestKeyOf(t *testing.T) {
	a := KeyOf([]byte("ab"), []byte("c"))
	b := KeyOf([]byte("a"), []byte("bc"))

	require.Len(t, string(a), 64)
	require.NotEqual(t, a, b)
	require.Equal(t, a, KeyOf([]byte("ab"), []byte("c")))
	require.Equal(t, string(a)[:12], a.Short())
	require.Equal(t, "abc", Key("abc").Short())
}
