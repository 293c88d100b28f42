package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetraveling/cms"
)

// Source is the part of the CMS client the builder needs.
type Source interface {
	Query(ctx context.Context, predicates []cms.Predicate, opts cms.QueryOptions) (cms.Response, error)
	GetByUID(ctx context.Context, typ, uid, ref string) (cms.Document, error)
}

// Config controls what the builder asks the CMS for.
type Config struct {
	PostType       string         // custom type of post documents (default "posts")
	PageSize       int            // listing page size (default 20)
	PrerenderLimit int            // max paths to pre-render (default 20)
	Location       *time.Location // display time zone (default UTC)
}

func (c *Config) setDefaults() {
	if c.PostType == "" {
		c.PostType = "posts"
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.PrerenderLimit <= 0 {
		c.PrerenderLimit = 20
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// Builder fetches documents and maps them into page props.
type Builder struct {
	src Source
	cfg Config
}

// NewBuilder returns a Builder reading from src.
func NewBuilder(src Source, cfg Config) *Builder {
	cfg.setDefaults()
	return &Builder{src: src, cfg: cfg}
}

// PostType returns the custom type the builder queries.
func (b *Builder) PostType() string {
	return b.cfg.PostType
}

// LinkResolver resolves documents of the builder's post type to post paths.
func (b *Builder) LinkResolver() cms.LinkResolver {
	return LinkResolver(b.cfg.PostType)
}

func (b *Builder) newestFirst() []cms.Ordering {
	return []cms.Ordering{{Field: "document.first_publication_date", Desc: true}}
}

// Home builds the listing page: the newest posts with title, subtitle and
// author only, plus the cursor of the next page.
func (b *Builder) Home(ctx context.Context, preview Preview) (Listing, error) {
	typ := b.cfg.PostType
	resp, err := b.src.Query(ctx, []cms.Predicate{cms.DocumentType(typ)}, cms.QueryOptions{
		Ref:       preview.Ref,
		Fetch:     []string{typ + ".title", typ + ".subtitle", typ + ".author"},
		PageSize:  b.cfg.PageSize,
		Orderings: b.newestFirst(),
	})
	if err != nil {
		return Listing{}, fmt.Errorf("build home: %w", err)
	}
	posts, err := SummariesFromDocuments(resp.Results)
	if err != nil {
		return Listing{}, fmt.Errorf("build home: %w", err)
	}
	return Listing{Posts: b.localizeAll(posts), NextPage: resp.NextPage}, nil
}

// Post builds a post page and the navigation to its neighbours. The two
// neighbour queries run concurrently once the post itself is known.
func (b *Builder) Post(ctx context.Context, slug string, preview Preview) (Post, Navigation, error) {
	doc, err := b.src.GetByUID(ctx, b.cfg.PostType, slug, preview.Ref)
	if err != nil {
		return Post{}, Navigation{}, fmt.Errorf("build post %q: %w", slug, err)
	}
	post, err := PostFromDocument(doc)
	if err != nil {
		return Post{}, Navigation{}, fmt.Errorf("build post %q: %w", slug, err)
	}
	post.Summary = b.localize(post.Summary)
	if !post.LastPublicationDate.IsZero() {
		post.LastPublicationDate = post.LastPublicationDate.In(b.cfg.Location)
	}

	var nav Navigation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prev, err := b.neighbour(gctx, doc.ID, preview, true)
		nav.Prev = prev
		return err
	})
	g.Go(func() error {
		next, err := b.neighbour(gctx, doc.ID, preview, false)
		nav.Next = next
		return err
	})
	if err := g.Wait(); err != nil {
		return Post{}, Navigation{}, fmt.Errorf("build post %q navigation: %w", slug, err)
	}
	return post, nav, nil
}

// neighbour returns the post right after id in publication order: the
// older one when older is set, the newer one otherwise.
func (b *Builder) neighbour(ctx context.Context, id string, preview Preview, older bool) (*Summary, error) {
	resp, err := b.src.Query(ctx, []cms.Predicate{cms.DocumentType(b.cfg.PostType)}, cms.QueryOptions{
		Ref:       preview.Ref,
		Fetch:     []string{b.cfg.PostType + ".title"},
		PageSize:  1,
		After:     id,
		Orderings: []cms.Ordering{{Field: "document.first_publication_date", Desc: older}},
	})
	if err != nil {
		return nil, err
	}
	for _, d := range resp.Results {
		if d.ID == id {
			continue
		}
		s, err := SummaryFromDocument(d)
		if err != nil {
			return nil, err
		}
		s = b.localize(s)
		return &s, nil
	}
	return nil, nil
}

// Paths lists the post paths to pre-render, newest first, up to the
// configured limit. Posts outside the list are rendered on first request.
func (b *Builder) Paths(ctx context.Context) ([]string, error) {
	resp, err := b.src.Query(ctx, []cms.Predicate{cms.DocumentType(b.cfg.PostType)}, cms.QueryOptions{
		Fetch:     []string{},
		PageSize:  b.cfg.PrerenderLimit,
		Orderings: b.newestFirst(),
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate paths: %w", err)
	}
	paths := make([]string, 0, len(resp.Results))
	seen := make(map[string]bool, len(resp.Results))
	for _, d := range resp.Results {
		if d.UID == "" || seen[d.UID] {
			continue
		}
		seen[d.UID] = true
		paths = append(paths, PostPath(d.UID))
	}
	return paths, nil
}

// IsNotFound reports whether err means the requested post does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, cms.ErrNotFound)
}

// Localize converts summary timestamps to the builder's display zone.
func (b *Builder) Localize(posts []Summary) []Summary {
	return b.localizeAll(posts)
}

func (b *Builder) localize(s Summary) Summary {
	if !s.FirstPublicationDate.IsZero() {
		s.FirstPublicationDate = s.FirstPublicationDate.In(b.cfg.Location)
	}
	return s
}

func (b *Builder) localizeAll(posts []Summary) []Summary {
	for i := range posts {
		posts[i] = b.localize(posts[i])
	}
	return posts
}
