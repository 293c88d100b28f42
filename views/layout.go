// Package views holds the templ components that render every page.
package views

import (
	"context"
	"html"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"
)

// writer accumulates the first write error so components can write
// straight through without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(html.EscapeString(s))
}

func (w *writer) attr(name, value string) {
	w.raw(" " + name + `="` + html.EscapeString(value) + `"`)
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

func component(fn func(ctx context.Context, w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		fn(ctx, w)
		return w.err
	})
}

// buildURL joins path segments onto a base URL.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// Layout wraps body in the document shell with meta tags and the site script.
func Layout(cfg SiteConfig, meta PageMeta, body templ.Component) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		title := cfg.Name
		if meta.Title != "" && meta.Title != cfg.Name {
			title = meta.Title + " | " + cfg.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = cfg.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		canonical := meta.URL
		if canonical == "" {
			canonical = buildURL(cfg.URL)
		}

		w.raw(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8"/>`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
		w.raw(`<title>`)
		w.text(title)
		w.raw(`</title>`)
		if desc != "" {
			w.raw(`<meta name="description"`)
			w.attr("content", desc)
			w.raw(`/>`)
		}
		w.raw(`<link rel="canonical"`)
		w.attr("href", canonical)
		w.raw(`/><meta property="og:title"`)
		w.attr("content", title)
		w.raw(`/><meta property="og:type"`)
		w.attr("content", ogType)
		w.raw(`/><meta property="og:url"`)
		w.attr("content", canonical)
		w.raw(`/>`)
		if meta.Image != "" {
			w.raw(`<meta property="og:image"`)
			w.attr("content", meta.Image)
			w.raw(`/>`)
		}
		if meta.JsonLD != "" {
			w.raw(`<script type="application/ld+json">` + meta.JsonLD + `</script>`)
		}
		w.raw(`<link rel="alternate" type="application/rss+xml"`)
		w.attr("title", cfg.Name)
		w.raw(` href="/feed.xml"/>`)
		w.raw(`<link rel="stylesheet" href="/public/site.css"/>`)
		w.raw(`<script src="/public/site.js" defer></script>`)
		w.raw(`</head><body>`)
		w.component(ctx, Header(cfg))
		w.component(ctx, body)
		w.raw(`<div id="notifications" aria-live="assertive"></div>`)
		w.raw(`</body></html>`)
	})
}

// Header renders the site logo linking home.
func Header(cfg SiteConfig) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		logo := cfg.Logo
		if logo == "" {
			logo = "/public/images/logo.svg"
		}
		w.raw(`<header class="site-header"><a class="container" href="/"><img`)
		w.attr("src", logo)
		w.raw(` alt="logo"/></a></header>`)
	})
}

// Notification is a blocking message shown when a client action fails.
func Notification(message string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<div class="notification" role="alert">`)
		w.text(message)
		w.raw(`</div>`)
	})
}

// PreviewBanner links out of preview mode.
func PreviewBanner() templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<aside class="preview-button"><a href="/api/exit-preview">Sair do modo Preview</a></aside>`)
	})
}

// NotFound renders the 404 page.
func NotFound(cfg SiteConfig) templ.Component {
	return Layout(cfg, PageMeta{Title: "Página não encontrada"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<main class="container error-page"><h1>404</h1><p>Página não encontrada.</p><a href="/">Voltar ao início</a></main>`)
	}))
}

// ServerError renders the 500 page.
func ServerError(cfg SiteConfig) templ.Component {
	return Layout(cfg, PageMeta{Title: "Erro"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<main class="container error-page"><h1>500</h1><p>Algo deu errado. Tente novamente mais tarde.</p></main>`)
	}))
}

func joinClass(classes ...string) string {
	return strings.Join(classes, " ")
}
