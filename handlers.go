package spacetraveling

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/pagination"
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	if preview := previewFromSession(c); preview.Active() {
		noStore(c)
		listing, err := a.Builder.Home(ctx, preview)
		if err != nil {
			return err
		}
		return Render(c, a.Views.Home(a.viewConfig(), listing, true))
	}
	if page, ok := a.Cache.Get(ctx, "/"); ok {
		return writePage(c, page)
	}
	page, err := a.renderHome(ctx)
	if err != nil {
		return err
	}
	return writePage(c, page)
}

// handlePost serves a post page. Pages not rendered yet follow the fallback
// policy: the placeholder asks for the "partial" form, which renders the
// post, caches the full page, and returns its <main> element.
func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	if !slugPattern.MatchString(slug) {
		return a.notFound(c)
	}
	partial := c.QueryParam("partial") == "post"

	if preview := previewFromSession(c); preview.Active() {
		noStore(c)
		post, nav, err := a.Builder.Post(ctx, slug, preview)
		if err != nil {
			if content.IsNotFound(err) {
				return a.notFound(c)
			}
			return err
		}
		if partial {
			return Render(c, a.Views.PostPartial(a.viewConfig(), post, nav, true))
		}
		return Render(c, a.Views.Post(a.viewConfig(), post, nav, true))
	}

	if !partial {
		if page, ok := a.Cache.Get(ctx, content.PostPath(slug)); ok {
			return writePage(c, page)
		}
		if a.Config.Fallback == FallbackPlaceholder {
			return Render(c, a.Views.PostLoading(a.viewConfig(), slug))
		}
	}

	r, err := a.renderPost(ctx, slug)
	if err != nil {
		if content.IsNotFound(err) {
			return a.notFound(c)
		}
		return err
	}
	if partial {
		return Render(c, a.Views.PostPartial(a.viewConfig(), r.post, r.nav, false))
	}
	return writePage(c, r.page)
}

// handleLoadMore follows one listing cursor and returns the new entries
// with the control for the page after them.
func (a *App) handleLoadMore(c echo.Context) error {
	cursor := c.QueryParam("cursor")
	if !a.CMS.ValidCursor(cursor) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	}
	if previewFromSession(c).Active() {
		noStore(c)
	}

	var message string
	ctrl := pagination.New(content.Listing{NextPage: cursor}, a.CMS,
		pagination.WithMapper(a.mapSummaries),
		pagination.WithNotifier(pagination.NotifierFunc(func(m string) { message = m })),
	)
	added, err := ctrl.LoadMore(c.Request().Context())
	if err != nil {
		c.Logger().Warnf("load more: %v", err)
		noStore(c)
		return RenderStatus(c, http.StatusBadGateway, a.Views.Notification(message))
	}
	return Render(c, a.Views.LoadMore(added, ctrl.Cursor()))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	listing, err := a.Builder.Home(c.Request().Context(), content.Preview{})
	if err != nil {
		return err
	}
	return a.renderRSS(c, listing.Posts)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	return c.String(http.StatusOK, "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: "+BuildURL(a.Config.URL, "sitemap.xml")+"\n")
}

func (a *App) notFound(c echo.Context) error {
	return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.viewConfig()))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = a.notFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		noStore(c)
		_ = RenderStatus(c, code, a.Views.ServerError(a.viewConfig()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
