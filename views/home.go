package views

import (
	"context"
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
)

// LoadMorePath is the endpoint the load-more control requests.
const LoadMorePath = "/posts/more"

// Home renders the listing page.
func Home(cfg SiteConfig, listing content.Listing, preview bool) templ.Component {
	meta := PageMeta{Title: cfg.Name, URL: buildURL(cfg.URL), JsonLD: WebsiteJsonLD(cfg)}
	return Layout(cfg, meta, component(func(ctx context.Context, w *writer) {
		w.raw(`<main class="container" id="posts">`)
		w.raw(`<div class="post-list">`)
		w.component(ctx, PostItems(listing.Posts))
		w.raw(`</div>`)
		w.component(ctx, LoadMore(listing.NextPage))
		if preview {
			w.component(ctx, PreviewBanner())
		}
		w.raw(`</main>`)
	}))
}

// PostItems renders listing entries in the given order.
func PostItems(posts []content.Summary) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		for _, p := range posts {
			w.raw(`<div class="post"><a`)
			w.attr("href", p.Link())
			w.raw(`><h1>`)
			w.text(p.Title)
			w.raw(`</h1></a><p>`)
			w.text(p.Subtitle)
			w.raw(`</p><div class="post-info"><time`)
			w.attr("datetime", p.FirstPublicationDate.Format("2006-01-02"))
			w.raw(`><span class="icon icon-calendar"></span>`)
			w.text(content.FormatDate(p.FirstPublicationDate))
			w.raw(`</time><span><span class="icon icon-user"></span>`)
			w.text(p.Author)
			w.raw(`</span></div></div>`)
		}
	})
}

// LoadMore renders the "load more" control for cursor. Nothing is rendered
// once the cursor is exhausted.
func LoadMore(cursor string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		if cursor == "" {
			return
		}
		w.raw(`<div id="load-more"><button type="button" class="load-more"`)
		w.attr("data-href", LoadMorePath+"?cursor="+url.QueryEscape(cursor))
		w.raw(` data-loading-label="Carregando...">Carregar mais posts</button></div>`)
	})
}

// LoadMoreResult is the fragment returned for one successful load: the new
// entries followed by the control for the next page.
func LoadMoreResult(posts []content.Summary, next string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<template data-append=".post-list">`)
		w.component(ctx, PostItems(posts))
		w.raw(`</template>`)
		w.component(ctx, LoadMore(next))
	})
}
