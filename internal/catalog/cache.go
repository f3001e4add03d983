package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Cache is the POS-side snapshot of sellable items for the current search term.
// A failed query never clears the last good result.
type Cache struct {
	src Source
	log *zap.Logger
	sfg singleflight.Group

	mu      sync.RWMutex
	term    string
	items   []Item
	byID    map[string]Item
	stale   bool
	lastErr error
}

func NewCache(src Source, log *zap.Logger) *Cache {
	return &Cache{
		src:  src,
		log:  logx.OrNop(log),
		byID: map[string]Item{},
	}
}

// Search queries active items for term. On failure the previous result is
// returned along with an error wrapping ErrCatalogUnavailable.
func (c *Cache) Search(ctx context.Context, term string) ([]Item, error) {
	v, err, _ := c.sfg.Do(term, func() (interface{}, error) {
		return c.src.SearchCatalog(ctx, term, true)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.log.Warn("catalog search failed, keeping previous result",
			zap.String("term", term), zap.Error(err))
		return c.snapshotLocked(), fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	items := onlyActive(v.([]Item))
	c.term = term
	c.items = items
	c.byID = make(map[string]Item, len(items))
	for _, it := range items {
		c.byID[it.ID] = it
	}
	c.stale = false
	c.lastErr = nil
	return c.snapshotLocked(), nil
}

// Invalidate marks the current result set stale; it stays readable until
// the next successful Refresh or Search.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Refresh re-runs the last search term.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.Search(ctx, c.Term())
	return err
}

func (c *Cache) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) Lookup(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.byID[id]
	return it, ok
}

func (c *Cache) Term() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.term
}

func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// LastError is the error of the most recent query, nil after a success.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cache) snapshotLocked() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}
