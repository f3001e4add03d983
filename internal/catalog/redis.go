package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// SearchCache stores catalog search results in Redis for the ledger API.
// Entries are dropped wholesale whenever stock moves.
type SearchCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewSearchCache(client *redis.Client, baseTTL time.Duration) *SearchCache {
	if baseTTL <= 0 {
		baseTTL = redisx.TTLCatalog
	}
	return &SearchCache{client: client, baseTTL: baseTTL}
}

func (c *SearchCache) Get(ctx context.Context, term string, activeOnly bool) ([]Item, error) {
	data, err := c.client.Get(ctx, searchKey(term, activeOnly)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return items, nil
}

func (c *SearchCache) Set(ctx context.Context, term string, activeOnly bool, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}
	// up to 20% jitter so hot terms don't expire together
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL)/5 + 1))
	if err := c.client.Set(ctx, searchKey(term, activeOnly), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached search.
func (c *SearchCache) Invalidate(ctx context.Context) (int64, error) {
	n, err := redisx.DeleteMatching(ctx, c.client, redisx.PatternCatalogSearch)
	if err != nil {
		return n, fmt.Errorf("redis invalidate failed: %w", err)
	}
	return n, nil
}

func searchKey(term string, activeOnly bool) string {
	scope := "all"
	if activeOnly {
		scope = "active"
	}
	return fmt.Sprintf(redisx.KeyCatalogSearch, scope, NormalizeTerm(term))
}
