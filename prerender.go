package spacetraveling

import (
	"context"
	"fmt"
	"strings"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/pagination"
)

// renderedPost is the outcome of building and rendering one published post.
type renderedPost struct {
	post content.Post
	nav  content.Navigation
	page Page
}

// Prerender renders the listing and the enumerated post paths into the
// page cache. Any CMS failure aborts it.
func (a *App) Prerender(ctx context.Context) error {
	if _, err := a.renderHome(ctx); err != nil {
		return err
	}
	paths, err := a.Builder.Paths(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := a.renderPost(ctx, strings.TrimPrefix(p, content.PostPath(""))); err != nil {
			return fmt.Errorf("render %s: %w", p, err)
		}
	}
	a.Echo.Logger.Infof("prerendered listing and %d posts", len(paths))
	return nil
}

// renderHome builds the published listing and caches the rendered page.
func (a *App) renderHome(ctx context.Context) (Page, error) {
	v, err, _ := a.renders.Do("/", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		gen := a.Cache.Generation()
		listing, err := a.Builder.Home(ctx, content.Preview{})
		if err != nil {
			return nil, err
		}
		html, err := renderBytes(ctx, a.Views.Home(a.viewConfig(), listing, false))
		if err != nil {
			return nil, err
		}
		return a.storePage(ctx, gen, "/", html), nil
	})
	if err != nil {
		return Page{}, err
	}
	return v.(Page), nil
}

// renderPost builds a published post and caches the rendered page.
// Concurrent calls for the same slug share one build.
func (a *App) renderPost(ctx context.Context, slug string) (renderedPost, error) {
	path := content.PostPath(slug)
	v, err, _ := a.renders.Do(path, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		gen := a.Cache.Generation()
		post, nav, err := a.Builder.Post(ctx, slug, content.Preview{})
		if err != nil {
			return nil, err
		}
		html, err := renderBytes(ctx, a.Views.Post(a.viewConfig(), post, nav, false))
		if err != nil {
			return nil, err
		}
		return renderedPost{post: post, nav: nav, page: a.storePage(ctx, gen, path, html)}, nil
	})
	if err != nil {
		return renderedPost{}, err
	}
	return v.(renderedPost), nil
}

// storePage caches html for path unless the cache was invalidated after
// gen was read. A failing persistent store only costs a re-render after
// restart, so it is logged and the page is still served.
func (a *App) storePage(ctx context.Context, gen uint64, path string, html []byte) Page {
	p, stored, err := a.Cache.PutAt(ctx, gen, path, html)
	if err != nil {
		a.Echo.Logger.Warnf("store page %s: %v", path, err)
	}
	if !stored {
		a.Echo.Logger.Debugf("dropped page %s rendered before revalidation", path)
	}
	return p
}

// mapSummaries maps a page of documents to listing entries in the display zone.
func (a *App) mapSummaries(docs []cms.Document) ([]content.Summary, error) {
	posts, err := content.SummariesFromDocuments(docs)
	if err != nil {
		return nil, err
	}
	return a.Builder.Localize(posts), nil
}

// AllPosts walks every listing page of published posts, newest first.
func (a *App) AllPosts(ctx context.Context) ([]content.Summary, error) {
	first, err := a.Builder.Home(ctx, content.Preview{})
	if err != nil {
		return nil, err
	}
	ctrl := pagination.New(first, a.CMS, pagination.WithMapper(a.mapSummaries))
	if err := ctrl.Drain(ctx); err != nil {
		return nil, err
	}
	return ctrl.Posts(), nil
}
