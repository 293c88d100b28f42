// Package pagination implements incremental "load more" pagination over the
// CMS's next-page cursors.
package pagination

import (
	"context"
	"errors"
	"sync"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/content"
)

// FailureMessage is shown to the reader when a page cannot be loaded.
const FailureMessage = "Não foi possível carregar mais posts"

var (
	// ErrExhausted is returned by LoadMore when there is no next page.
	ErrExhausted = errors.New("pagination: no more posts")
	// ErrBusy is returned by LoadMore while an earlier load is still running.
	ErrBusy = errors.New("pagination: load already in progress")
)

// Fetcher follows a next-page cursor.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string) (cms.Response, error)
}

// Notifier surfaces a failure to the reader.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where load failures are reported.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notify = n
	}
}

// WithMapper replaces the document-to-summary mapping, e.g. to convert
// timestamps to a display zone.
func WithMapper(fn func([]cms.Document) ([]content.Summary, error)) Option {
	return func(c *Controller) {
		c.mapDocs = fn
	}
}

// Controller holds the loaded posts and the cursor of the next page.
// It is safe for concurrent use; overlapping loads are rejected with ErrBusy.
type Controller struct {
	fetch   Fetcher
	notify  Notifier
	mapDocs func([]cms.Document) ([]content.Summary, error)

	mu      sync.Mutex
	posts   []content.Summary
	cursor  string
	loading bool
}

// New starts a controller from the first listing page.
func New(first content.Listing, f Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetch:   f,
		notify:  NotifierFunc(func(string) {}),
		mapDocs: content.SummariesFromDocuments,
		posts:   append([]content.Summary(nil), first.Posts...),
		cursor:  first.NextPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Posts returns a copy of the loaded posts in display order.
func (c *Controller) Posts() []content.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]content.Summary(nil), c.posts...)
}

// Cursor returns the next-page cursor, or "" when exhausted.
func (c *Controller) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// HasMore reports whether LoadMore can fetch anything.
func (c *Controller) HasMore() bool {
	return c.Cursor() != ""
}

// Loading reports whether a load is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Listing returns the current state as a listing page.
func (c *Controller) Listing() content.Listing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return content.Listing{Posts: append([]content.Summary(nil), c.posts...), NextPage: c.cursor}
}

// LoadMore fetches the next page and appends its posts in the order the CMS
// returned them. Duplicates are kept. On failure nothing changes, the
// notifier is told and the error is returned.
func (c *Controller) LoadMore(ctx context.Context) ([]content.Summary, error) {
	c.mu.Lock()
	if c.cursor == "" {
		c.mu.Unlock()
		return nil, ErrExhausted
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.loading = true
	cursor := c.cursor
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	resp, err := c.fetch.FetchPage(ctx, cursor)
	if err != nil {
		c.notify.Notify(FailureMessage)
		return nil, err
	}
	added, err := c.mapDocs(resp.Results)
	if err != nil {
		c.notify.Notify(FailureMessage)
		return nil, err
	}

	c.mu.Lock()
	c.posts = append(c.posts, added...)
	c.cursor = resp.NextPage
	c.mu.Unlock()
	return added, nil
}

// Drain loads pages until the cursor is exhausted or a load fails.
func (c *Controller) Drain(ctx context.Context) error {
	for c.HasMore() {
		if _, err := c.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}
