package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCacheHit(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	user := testUser()

	cache.Put("tok", user)
	assert.Same(t, user, cache.Get("tok"))
}

func TestTokenCacheMiss(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	assert.Nil(t, cache.Get("unknown"))
}

func TestTokenCacheExpiry(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put("tok", testUser())

	now = now.Add(61 * time.Second)
	assert.Nil(t, cache.Get("tok"))
	require.Empty(t, cache.entries, "expired entry is removed on read")
}

func TestTokenCacheDisabled(t *testing.T) {
	cache := NewTokenCache(0)

	cache.Put("tok", testUser())
	assert.Nil(t, cache.Get("tok"))
	assert.Empty(t, cache.entries)
}

func TestTokenCachePutPrunes(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put("old", testUser())
	now = now.Add(2 * time.Minute)
	cache.Put("new", testUser())

	assert.Len(t, cache.entries, 1)
	assert.NotNil(t, cache.Get("new"))
}
