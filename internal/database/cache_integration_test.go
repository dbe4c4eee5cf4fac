//go:build integration
// +build integration

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: REDIS_URL=redis://localhost:6379/15 go test -tags=integration ./internal/database/
func TestCache_RedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	c := NewCache(client, quietLogger())

	key := StatsCacheKey("queries", "integration")
	require.NoError(t, c.SetJSON(ctx, key, map[string]int64{"lookup": 3}, time.Minute))

	var got map[string]int64
	require.NoError(t, c.GetJSON(ctx, key, &got))
	assert.Equal(t, int64(3), got["lookup"])

	require.NoError(t, c.InvalidateStats(ctx))
	assert.ErrorIs(t, c.GetJSON(ctx, key, &got), ErrCacheMiss)
}
