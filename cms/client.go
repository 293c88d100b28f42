// Package cms is a small client for a hosted headless-CMS REST API
// (Prismic-style): repository refs, predicate queries, cursor pagination
// and preview resolution.
package cms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when a lookup by uid or id matches nothing.
	ErrNotFound = errors.New("cms: document not found")
	// ErrForeignCursor is returned when a cursor URL does not belong to the
	// configured repository.
	ErrForeignCursor = errors.New("cms: cursor does not belong to this repository")
	// ErrInvalidPreview is returned when a preview token or document id
	// cannot be resolved.
	ErrInvalidPreview = errors.New("cms: invalid preview token")
)

var validate = validator.New()

// Config holds connection settings for the content API.
type Config struct {
	Endpoint          string        `validate:"required,url" yaml:"endpoint"`
	AccessToken       string        `yaml:"access_token"`
	Timeout           time.Duration `validate:"gte=0" yaml:"timeout"`
	RefTTL            time.Duration `validate:"gte=0" yaml:"ref_ttl"`
	RequestsPerSecond float64       `validate:"gte=0" yaml:"requests_per_second"`
	Burst             int           `validate:"gte=0" yaml:"burst"`
}

func (c *Config) setDefaults() {
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RefTTL == 0 {
		c.RefTTL = 5 * time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst == 0 {
		c.Burst = 10
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client talks to one CMS repository. It is safe for concurrent use.
type Client struct {
	cfg      Config
	endpoint *url.URL
	http     *http.Client
	limiter  *rate.Limiter

	mu         sync.Mutex
	masterRef  string
	refFetched time.Time
}

// New validates cfg and returns a Client for the repository it names.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.setDefaults()
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "cms: invalid config")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "cms: parse endpoint")
	}
	c := &Client{
		cfg:      cfg,
		endpoint: u,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API root URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// MasterRef returns the ref of the currently published content. The value
// is cached for Config.RefTTL.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.masterRef != "" && time.Since(c.refFetched) < c.cfg.RefTTL {
		ref := c.masterRef
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	u := *c.endpoint
	c.authorize(&u)
	var root apiRoot
	if err := c.get(ctx, u.String(), &root); err != nil {
		return "", errors.Wrap(err, "cms: fetch api root")
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.masterRef = r.Ref
			c.refFetched = time.Now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", errors.New("cms: api root has no master ref")
}

// QueryOptions tunes a search. A zero Ref queries the master ref.
type QueryOptions struct {
	Ref       string
	Fetch     []string
	PageSize  int
	Page      int
	After     string
	Orderings []Ordering
}

// Query runs a predicate search and returns one page of results.
func (c *Client) Query(ctx context.Context, predicates []Predicate, opts QueryOptions) (Response, error) {
	ref := opts.Ref
	if ref == "" {
		var err error
		if ref, err = c.MasterRef(ctx); err != nil {
			return Response{}, err
		}
	}

	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"
	q := url.Values{}
	q.Set("ref", ref)
	if len(predicates) > 0 {
		q.Set("q", encodeQuery(predicates))
	}
	if opts.Fetch != nil {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.After != "" {
		q.Set("after", opts.After)
	}
	if len(opts.Orderings) > 0 {
		q.Set("orderings", encodeOrderings(opts.Orderings))
	}
	u.RawQuery = q.Encode()
	c.authorize(&u)

	var resp Response
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return Response{}, errors.Wrap(err, "cms: query")
	}
	return resp, nil
}

// GetByUID returns the document of type typ with the given uid.
func (c *Client) GetByUID(ctx context.Context, typ, uid, ref string) (Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("my."+typ+".uid", uid)}, QueryOptions{Ref: ref, PageSize: 1})
	if err != nil {
		return Document{}, err
	}
	if len(resp.Results) == 0 {
		return Document{}, errors.Wrapf(ErrNotFound, "uid %q", uid)
	}
	return resp.Results[0], nil
}

// GetByID returns the document with the given id.
func (c *Client) GetByID(ctx context.Context, id, ref string) (Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("document.id", id)}, QueryOptions{Ref: ref, PageSize: 1})
	if err != nil {
		return Document{}, err
	}
	if len(resp.Results) == 0 {
		return Document{}, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	return resp.Results[0], nil
}

// FetchPage follows a next-page cursor returned by an earlier query.
func (c *Client) FetchPage(ctx context.Context, cursor string) (Response, error) {
	u, err := c.parseCursor(cursor)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return Response{}, errors.Wrap(err, "cms: fetch page")
	}
	return resp, nil
}

// ValidCursor reports whether cursor points into this repository.
func (c *Client) ValidCursor(cursor string) bool {
	_, err := c.parseCursor(cursor)
	return err == nil
}

func (c *Client) parseCursor(cursor string) (*url.URL, error) {
	u, err := url.Parse(cursor)
	if err != nil || u.Scheme != c.endpoint.Scheme || u.Host != c.endpoint.Host {
		return nil, ErrForeignCursor
	}
	if !strings.HasPrefix(u.Path, c.endpoint.Path) {
		return nil, ErrForeignCursor
	}
	c.authorize(u)
	return u, nil
}

func (c *Client) authorize(u *url.URL) {
	if c.cfg.AccessToken == "" {
		return
	}
	q := u.Query()
	if q.Get("access_token") != "" {
		return
	}
	q.Set("access_token", c.cfg.AccessToken)
	u.RawQuery = q.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
