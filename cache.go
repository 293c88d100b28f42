package spacetraveling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrPageNotFound is returned by a PageStore that holds no page for a path.
var ErrPageNotFound = errors.New("spacetraveling: page not found")

// Page is a fully rendered HTML document.
type Page struct {
	HTML       []byte
	RenderedAt time.Time
}

// PageStore persists rendered pages so they survive restarts or are shared
// between instances.
type PageStore interface {
	GetPage(ctx context.Context, path string) (Page, error)
	PutPage(ctx context.Context, path string, p Page) error
	Purge(ctx context.Context) error
	Close() error
}

// PageCache holds rendered pages in memory, optionally backed by a
// PageStore. A zero TTL keeps pages until Invalidate.
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]Page
	ttl   time.Duration
	store PageStore

	// writeMu orders writes against Invalidate; gen counts invalidations.
	writeMu sync.Mutex
	gen     uint64
}

// NewPageCache creates a PageCache. store may be nil.
func NewPageCache(store PageStore, ttl time.Duration) *PageCache {
	return &PageCache{pages: make(map[string]Page), ttl: ttl, store: store}
}

func (c *PageCache) fresh(p Page) bool {
	return c.ttl <= 0 || time.Since(p.RenderedAt) < c.ttl
}

// Get returns the page rendered for path. Pages missing from memory are
// looked up in the store and kept in memory once found.
func (c *PageCache) Get(ctx context.Context, path string) (Page, bool) {
	c.mu.RLock()
	p, ok := c.pages[path]
	gen := c.gen
	c.mu.RUnlock()
	if ok && c.fresh(p) {
		return p, true
	}
	if c.store == nil {
		return Page{}, false
	}
	p, err := c.store.GetPage(ctx, path)
	if err != nil || !c.fresh(p) {
		return Page{}, false
	}
	c.mu.Lock()
	if c.gen == gen {
		c.pages[path] = p
	}
	c.mu.Unlock()
	return p, true
}

// Generation identifies the current cache contents. It changes on every
// Invalidate.
func (c *PageCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Put stores html as the page for path.
func (c *PageCache) Put(ctx context.Context, path string, html []byte) (Page, error) {
	p, _, err := c.PutAt(ctx, c.Generation(), path, html)
	return p, err
}

// PutAt stores html only while the cache is still at generation gen, so a
// render that began before an Invalidate cannot bring back stale content.
// The bool reports whether the page was stored.
func (c *PageCache) PutAt(ctx context.Context, gen uint64, path string, html []byte) (Page, bool, error) {
	p := Page{HTML: html, RenderedAt: time.Now().UTC()}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return p, false, nil
	}
	c.pages[path] = p
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.PutPage(ctx, path, p); err != nil {
			return p, true, err
		}
	}
	return p, true, nil
}

// Invalidate drops every page so the next request renders fresh content.
func (c *PageCache) Invalidate(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.gen++
	c.pages = make(map[string]Page)
	c.mu.Unlock()
	if c.store != nil {
		return c.store.Purge(ctx)
	}
	return nil
}

// Paths returns the paths held in memory, sorted.
func (c *PageCache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.pages))
	for p := range c.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
