package spacetraveling

import (
	"fmt"
	"os"
	"strconv"
	"time"
	// Default TimeZone must load on hosts without system zoneinfo.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Fallback policies for posts that were not pre-rendered.
const (
	// FallbackPlaceholder serves a loading page and resolves the post in the browser.
	FallbackPlaceholder = "placeholder"
	// FallbackBlocking renders the post before answering the first request.
	FallbackBlocking = "blocking"
)

// Page store backends.
const (
	PageStoreMemory = "memory"
	PageStoreSQLite = "sqlite"
	PageStoreRedis  = "redis"
)

var validate = validator.New()

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url" validate:"omitempty,url"` // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Logo        string `yaml:"logo"`        // Header logo path

	Addr string `yaml:"addr"` // Listen address (default ":3000")

	CMSEndpoint    string        `yaml:"cms_endpoint" validate:"required,url"` // API root, e.g. https://repo.cdn.prismic.io/api/v2
	CMSAccessToken string        `yaml:"cms_access_token"`
	CMSTimeout     time.Duration `yaml:"cms_timeout" validate:"gte=0"` // default 10s
	PostType       string        `yaml:"post_type"`                    // default "posts"
	PageSize       int           `yaml:"page_size" validate:"gte=0,lte=100"`       // listing page size (default 20)
	PrerenderLimit int           `yaml:"prerender_limit" validate:"gte=0,lte=100"` // posts pre-rendered at startup (default 20)
	Fallback       string        `yaml:"fallback" validate:"omitempty,oneof=placeholder blocking"`
	TimeZone       string        `yaml:"time_zone"` // display zone (default "America/Sao_Paulo")

	SessionSecret string `yaml:"session_secret"` // Required to serve: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	PageStore    string        `yaml:"page_store" validate:"omitempty,oneof=memory sqlite redis"`
	PageCacheTTL time.Duration `yaml:"page_cache_ttl" validate:"gte=0"` // 0 keeps rendered pages until revalidated
	DatabasePath string        `yaml:"database_path"`                   // SQLite path (default "data/pages.db")
	RedisURL     string        `yaml:"redis_url" validate:"required_if=PageStore redis"`

	RevalidateSecret string `yaml:"revalidate_secret"` // Enables POST /api/revalidate

	CommentsRepo      string `yaml:"comments_repo"`       // owner/name; empty disables comments
	CommentsIssueTerm string `yaml:"comments_issue_term"` // default "pathname"
	CommentsTheme     string `yaml:"comments_theme"`      // default "github-dark"
	CommentsScript    string `yaml:"comments_script" validate:"omitempty,url"`

	BannerWidth int `yaml:"banner_width" validate:"gte=0"` // thumbnail width (default 800)

	PreviewAttempts int           `yaml:"preview_attempts" validate:"gte=0"` // failed preview attempts per IP per window (default 10)
	PreviewWindow   time.Duration `yaml:"preview_window" validate:"gte=0"`   // default 1m
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.CMSTimeout == 0 {
		c.CMSTimeout = 10 * time.Second
	}
	if c.PostType == "" {
		c.PostType = "posts"
	}
	if c.PageSize == 0 {
		c.PageSize = 20
	}
	if c.PrerenderLimit == 0 {
		c.PrerenderLimit = 20
	}
	if c.Fallback == "" {
		c.Fallback = FallbackPlaceholder
	}
	if c.TimeZone == "" {
		c.TimeZone = "America/Sao_Paulo"
	}
	if c.PageStore == "" {
		c.PageStore = PageStoreMemory
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.CommentsIssueTerm == "" {
		c.CommentsIssueTerm = "pathname"
	}
	if c.CommentsTheme == "" {
		c.CommentsTheme = "github-dark"
	}
	if c.CommentsScript == "" {
		c.CommentsScript = "https://utteranc.es/client.js"
	}
	if c.BannerWidth == 0 {
		c.BannerWidth = 800
	}
	if c.PreviewAttempts == 0 {
		c.PreviewAttempts = 10
	}
	if c.PreviewWindow == 0 {
		c.PreviewWindow = time.Minute
	}
}

// Validate checks field constraints. It does not require SessionSecret,
// which only the server needs.
func (c SiteConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("spacetraveling: invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("spacetraveling: invalid time zone %q: %w", c.TimeZone, err)
	}
	return nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (SiteConfig, error) {
	var cfg SiteConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("spacetraveling: read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("spacetraveling: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv builds a SiteConfig from environment variables.
func ConfigFromEnv() SiteConfig {
	return SiteConfig{
		Name:              os.Getenv("SITE_NAME"),
		URL:               os.Getenv("SITE_URL"),
		Description:       os.Getenv("SITE_DESCRIPTION"),
		Addr:              os.Getenv("ADDR"),
		CMSEndpoint:       os.Getenv("CMS_ENDPOINT"),
		CMSAccessToken:    os.Getenv("CMS_ACCESS_TOKEN"),
		PostType:          os.Getenv("CMS_POST_TYPE"),
		PageSize:          envInt("PAGE_SIZE"),
		PrerenderLimit:    envInt("PRERENDER_LIMIT"),
		Fallback:          os.Getenv("FALLBACK"),
		TimeZone:          os.Getenv("TIME_ZONE"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		CookieSecure:      os.Getenv("COOKIE_SECURE") == "true",
		PageStore:         os.Getenv("PAGE_STORE"),
		PageCacheTTL:      envDuration("PAGE_CACHE_TTL"),
		DatabasePath:      os.Getenv("DATABASE_PATH"),
		RedisURL:          os.Getenv("REDIS_URL"),
		RevalidateSecret:  os.Getenv("REVALIDATE_SECRET"),
		CommentsRepo:      os.Getenv("COMMENTS_REPO"),
		CommentsIssueTerm: os.Getenv("COMMENTS_ISSUE_TERM"),
		CommentsTheme:     os.Getenv("COMMENTS_THEME"),
	}
}

// Merge overlays the non-zero string and number fields of o onto c.
func (c SiteConfig) Merge(o SiteConfig) SiteConfig {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	str(&c.Name, o.Name)
	str(&c.URL, o.URL)
	str(&c.Description, o.Description)
	str(&c.Addr, o.Addr)
	str(&c.CMSEndpoint, o.CMSEndpoint)
	str(&c.CMSAccessToken, o.CMSAccessToken)
	str(&c.PostType, o.PostType)
	num(&c.PageSize, o.PageSize)
	num(&c.PrerenderLimit, o.PrerenderLimit)
	str(&c.Fallback, o.Fallback)
	str(&c.TimeZone, o.TimeZone)
	str(&c.SessionSecret, o.SessionSecret)
	c.CookieSecure = c.CookieSecure || o.CookieSecure
	str(&c.PageStore, o.PageStore)
	if o.PageCacheTTL != 0 {
		c.PageCacheTTL = o.PageCacheTTL
	}
	str(&c.DatabasePath, o.DatabasePath)
	str(&c.RedisURL, o.RedisURL)
	str(&c.RevalidateSecret, o.RevalidateSecret)
	str(&c.CommentsRepo, o.CommentsRepo)
	str(&c.CommentsIssueTerm, o.CommentsIssueTerm)
	str(&c.CommentsTheme, o.CommentsTheme)
	return c
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

func envDuration(key string) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	return d
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithViews overrides the default templates. Nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = a.Views.merge(v)
	}
}

// WithPageStore sets the persistent store behind the page cache, replacing
// the one SiteConfig.PageStore would open.
func WithPageStore(s PageStore) Option {
	return func(a *App) {
		a.pageStore = s
	}
}
