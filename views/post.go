package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/richtext"
)

// PostPartialPath is the query that asks for the <main> fragment of a post,
// used to resolve fallback placeholders.
const PostPartialPath = "?partial=post"

// BannerPath serves resized post banners for link previews.
const BannerPath = "/banner"

// Post renders a full post page.
func Post(cfg SiteConfig, post content.Post, nav content.Navigation, preview bool) templ.Component {
	meta := PageMeta{
		Title:       post.Title,
		Description: post.Subtitle,
		URL:         buildURL(cfg.URL, post.Link()),
		OGType:      "article",
		JsonLD:      BlogPostingJsonLD(cfg, post),
	}
	if post.Banner.URL != "" {
		meta.Image = buildURL(cfg.URL, BannerPath, post.UID)
	}
	return Layout(cfg, meta, PostMain(cfg, post, nav, preview))
}

// PostMain renders the <main> element of a post page.
func PostMain(cfg SiteConfig, post content.Post, nav content.Navigation, preview bool) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<main id="post">`)
		if src := richtext.SafeURL(post.Banner.URL); src != "" {
			w.raw(`<header class="banner"><img src="` + src + `"`)
			alt := post.Banner.Alt
			if alt == "" {
				alt = "Banner"
			}
			w.attr("alt", alt)
			w.raw(`/></header>`)
		}
		w.raw(`<section`)
		w.attr("class", joinClass("container", "post-container"))
		w.raw(`><h1>`)
		w.text(post.Title)
		w.raw(`</h1><div class="post-info"><time`)
		w.attr("datetime", post.FirstPublicationDate.Format("2006-01-02"))
		w.raw(`><span class="icon icon-calendar"></span>`)
		w.text(content.FormatDate(post.FirstPublicationDate))
		w.raw(`</time><span><span class="icon icon-user"></span>`)
		w.text(post.Author)
		w.raw(`</span><span><span class="icon icon-clock"></span>`)
		w.text(strconv.Itoa(post.ReadingTime) + " min")
		w.raw(`</span></div>`)
		if post.Edited() {
			w.raw(`<i class="edited">`)
			w.text(content.FormatEdited(post.LastPublicationDate))
			w.raw(`</i>`)
		}
		w.raw(`<article class="article">`)
		for _, s := range post.Sections {
			w.raw(`<section><h2>`)
			w.text(s.Heading)
			w.raw(`</h2><div class="post-content">`)
			w.component(ctx, richtext.Component(s.Body))
			w.raw(`</div></section>`)
		}
		w.raw(`</article></section>`)

		w.raw(`<div`)
		w.attr("class", joinClass("container", "post-actions"))
		w.raw(`><hr/><div>`)
		w.component(ctx, navLink(nav.Prev, "Post anterior"))
		w.component(ctx, navLink(nav.Next, "Próximo post"))
		w.raw(`</div>`)
		w.component(ctx, Comments(cfg.Comments))
		if preview {
			w.component(ctx, PreviewBanner())
		}
		w.raw(`</div></main>`)
	})
}

func navLink(s *content.Summary, label string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<aside>`)
		if s != nil {
			w.raw(`<span>`)
			w.text(s.Title)
			w.raw(`</span><b><a`)
			w.attr("href", s.Link())
			w.raw(`>`)
			w.text(label)
			w.raw(`</a></b>`)
		}
		w.raw(`</aside>`)
	})
}

// PostLoading is the placeholder served for a post that has not been
// rendered yet. The site script swaps in the resolved <main> element.
func PostLoading(cfg SiteConfig, slug string) templ.Component {
	meta := PageMeta{URL: buildURL(cfg.URL, content.PostPath(slug)), OGType: "article"}
	return Layout(cfg, meta, component(func(ctx context.Context, w *writer) {
		w.raw(`<main id="post"`)
		w.attr("data-fallback", content.PostPath(slug)+PostPartialPath)
		w.raw(`><div class="container loading">Carregando...</div></main>`)
	}))
}

// Comments injects the third-party comment widget script.
func Comments(c CommentsConfig) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		if c.Repo == "" {
			return
		}
		w.raw(`<div class="comment-box"><script`)
		w.attr("src", c.Script)
		w.attr("repo", c.Repo)
		w.attr("issue-term", c.IssueTerm)
		w.attr("theme", c.Theme)
		w.raw(` crossorigin="anonymous" async></script></div>`)
	})
}
