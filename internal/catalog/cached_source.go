package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedSource puts a SearchCache in front of a Source. Cache errors are
// logged and fall through to the source.
type CachedSource struct {
	src   Source
	cache *SearchCache
	log   *zap.Logger
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCachedSource(src Source, cache *SearchCache, log *zap.Logger) *CachedSource {
	return &CachedSource{src: src, cache: cache, log: logx.OrNop(log)}
}

func (s *CachedSource) SearchCatalog(ctx context.Context, term string, activeOnly bool) ([]Item, error) {
	key := searchKey(term, activeOnly)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		items, err := s.cache.Get(ctx, term, activeOnly)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("catalog cache get error", zap.Error(err))
		}

		items, err = s.src.SearchCatalog(ctx, term, activeOnly)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, term, activeOnly, items); err != nil {
			s.log.Warn("catalog cache set error", zap.Error(err))
		}
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return v.([]Item), nil
}

// Invalidate drops every cached search.
func (s *CachedSource) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Invalidate(ctx)
}
