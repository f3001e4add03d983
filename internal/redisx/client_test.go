package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestFirstSeen(t *testing.T) {
	rdb, mr := setupRedis(t)
	ctx := context.Background()

	first, err := FirstSeen(ctx, rdb, "dedup:inv:e1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := FirstSeen(ctx, rdb, "dedup:inv:e1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)
	assert.True(t, mr.TTL("dedup:inv:e1") > 0)
}

func TestDeleteMatching(t *testing.T) {
	rdb, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("catalog:search:active:cola", "[]"))
	require.NoError(t, mr.Set("catalog:search:all:", "[]"))
	require.NoError(t, mr.Set("idem:sale:create:k1", "s1"))

	n, err := DeleteMatching(ctx, rdb, PatternCatalogSearch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists("catalog:search:active:cola"))
	assert.True(t, mr.Exists("idem:sale:create:k1"))

	ok, err := Exists(ctx, rdb, "idem:sale:create:k1")
	require.NoError(t, err)
	assert.True(t, ok)
}
