// Package spacetraveling is a server-rendered blog front-end for a headless
// CMS, built with Go, Echo, and templ. It pre-renders the listing and the
// newest posts, renders the rest on first request, and supports CMS preview
// sessions, "load more" pagination, RSS, and a sitemap.
//
// Templates come from the views package by default and can be replaced
// through the ViewFuncs struct.
package spacetraveling

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/views"
)

// ViewFuncs holds the templ components the handlers render. Any field left
// nil in WithViews keeps the default from the views package.
type ViewFuncs struct {
	Home         func(cfg views.SiteConfig, listing content.Listing, preview bool) templ.Component
	LoadMore     func(posts []content.Summary, next string) templ.Component
	Post         func(cfg views.SiteConfig, post content.Post, nav content.Navigation, preview bool) templ.Component
	PostPartial  func(cfg views.SiteConfig, post content.Post, nav content.Navigation, preview bool) templ.Component
	PostLoading  func(cfg views.SiteConfig, slug string) templ.Component
	Notification func(message string) templ.Component
	NotFound     func(cfg views.SiteConfig) templ.Component
	ServerError  func(cfg views.SiteConfig) templ.Component
}

// DefaultViews returns the components of the views package.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:         views.Home,
		LoadMore:     views.LoadMoreResult,
		Post:         views.Post,
		PostPartial:  views.PostMain,
		PostLoading:  views.PostLoading,
		Notification: views.Notification,
		NotFound:     views.NotFound,
		ServerError:  views.ServerError,
	}
}

func (v ViewFuncs) merge(o ViewFuncs) ViewFuncs {
	if o.Home != nil {
		v.Home = o.Home
	}
	if o.LoadMore != nil {
		v.LoadMore = o.LoadMore
	}
	if o.Post != nil {
		v.Post = o.Post
	}
	if o.PostPartial != nil {
		v.PostPartial = o.PostPartial
	}
	if o.PostLoading != nil {
		v.PostLoading = o.PostLoading
	}
	if o.Notification != nil {
		v.Notification = o.Notification
	}
	if o.NotFound != nil {
		v.NotFound = o.NotFound
	}
	if o.ServerError != nil {
		v.ServerError = o.ServerError
	}
	return v
}

// App is the central spacetraveling application. It wires together the CMS
// client, the prop builder, the page cache, handlers, middleware, and views.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	CMS     *cms.Client
	Builder *content.Builder
	Cache   *PageCache
	Views   ViewFuncs

	pageStore      PageStore
	previewLimiter *PreviewLimiter
	banners        *bannerCache
	renders        singleflight.Group
	background     sync.WaitGroup
	customRoutes   []func(*App)
	staticDir      string
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     DefaultViews(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithCMSClient uses c instead of building a client from the config.
func WithCMSClient(c *cms.Client) Option {
	return func(a *App) {
		a.CMS = c
	}
}

// Init validates the config and connects the CMS client and prop builder.
// It is all the CLI needs for commands that do not serve HTTP.
func (a *App) Init() error {
	if a.Builder != nil {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}
	if a.CMS == nil {
		client, err := cms.New(cms.Config{
			Endpoint:    a.Config.CMSEndpoint,
			AccessToken: a.Config.CMSAccessToken,
			Timeout:     a.Config.CMSTimeout,
		})
		if err != nil {
			return fmt.Errorf("spacetraveling: init cms client: %w", err)
		}
		a.CMS = client
	}
	loc, err := time.LoadLocation(a.Config.TimeZone)
	if err != nil {
		return fmt.Errorf("spacetraveling: load time zone: %w", err)
	}
	a.Builder = content.NewBuilder(a.CMS, content.Config{
		PostType:       a.Config.PostType,
		PageSize:       a.Config.PageSize,
		PrerenderLimit: a.Config.PrerenderLimit,
		Location:       loc,
	})
	return nil
}

// Setup initializes the page store, cache, middleware, and routes, then
// pre-renders the listing and the newest posts. After Setup the Echo
// instance can serve requests.
func (a *App) Setup(ctx context.Context) error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("spacetraveling: SessionSecret is required")
	}
	if err := a.Init(); err != nil {
		return err
	}

	if a.pageStore == nil {
		store, err := a.openPageStore(ctx)
		if err != nil {
			return err
		}
		a.pageStore = store
	}
	a.Cache = NewPageCache(a.pageStore, a.Config.PageCacheTTL)
	a.previewLimiter = NewPreviewLimiter(a.Config.PreviewAttempts, a.Config.PreviewWindow)
	a.banners = newBannerCache(a.Config.BannerWidth)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Prerender(ctx); err != nil {
		return fmt.Errorf("spacetraveling: prerender: %w", err)
	}
	return nil
}

// Start sets the app up and serves until the server is closed.
func (a *App) Start() error {
	if err := a.Setup(context.Background()); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) openPageStore(ctx context.Context) (PageStore, error) {
	switch a.Config.PageStore {
	case PageStoreSQLite:
		s, err := NewSQLitePageStore(a.Config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("spacetraveling: init page store: %w", err)
		}
		return s, nil
	case PageStoreRedis:
		s, err := NewRedisPageStore(ctx, a.Config.RedisURL, a.Config.Name)
		if err != nil {
			return nil, fmt.Errorf("spacetraveling: init page store: %w", err)
		}
		return s, nil
	}
	return nil, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	a.mountAssets()
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/post/:slug", a.handlePost)
	e.GET(views.LoadMorePath, a.handleLoadMore)
	e.GET(views.BannerPath+"/:slug", a.handleBanner)

	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", handleExitPreview)
	if a.Config.RevalidateSecret != "" {
		e.POST("/api/revalidate", a.handleRevalidate)
	}
}

// viewConfig is the subset of SiteConfig the templates see.
func (a *App) viewConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Logo:        a.Config.Logo,
		Comments: views.CommentsConfig{
			Script:    a.Config.CommentsScript,
			Repo:      a.Config.CommentsRepo,
			IssueTerm: a.Config.CommentsIssueTerm,
			Theme:     a.Config.CommentsTheme,
		},
	}
}

// Close waits for background revalidation and cleans up resources.
// Call this when the app is shutting down.
func (a *App) Close() error {
	a.background.Wait()
	if a.previewLimiter != nil {
		a.previewLimiter.Stop()
	}
	if a.pageStore != nil {
		return a.pageStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("spacetraveling: required environment variable %s is not set", key)
	}
	return v
}
