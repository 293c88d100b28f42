package cms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/cms/cmstest"
)

func day(n int) time.Time {
	return time.Date(2021, time.March, n, 12, 0, 0, 0, time.UTC)
}

func newClient(t *testing.T, srv *cmstest.Server) *cms.Client {
	t.Helper()
	c, err := cms.New(cms.Config{Endpoint: srv.Endpoint(), RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	return c
}

func threePosts() []cms.Document {
	return []cms.Document{
		cmstest.PostDoc("id-1", "first", "First", day(1), nil),
		cmstest.PostDoc("id-2", "second", "Second", day(2), nil),
		cmstest.PostDoc("id-3", "third", "Third", day(3), nil),
	}
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	_, err := cms.New(cms.Config{Endpoint: "not a url"})
	assert.Error(t, err)

	_, err = cms.New(cms.Config{})
	assert.Error(t, err)
}

func TestMasterRefIsCached(t *testing.T) {
	srv := cmstest.NewServer(t)
	c := newClient(t, srv)

	ref, err := c.MasterRef(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cmstest.MasterRef, ref)

	_, err = c.MasterRef(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Requests())
}

func TestQueryPaginatesWithCursor(t *testing.T) {
	srv := cmstest.NewServer(t, threePosts()...)
	c := newClient(t, srv)
	ctx := context.Background()

	resp, err := c.Query(ctx, []cms.Predicate{cms.DocumentType("posts")}, cms.QueryOptions{
		PageSize:  2,
		Orderings: []cms.Ordering{{Field: "document.first_publication_date", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "third", resp.Results[0].UID)
	assert.Equal(t, "second", resp.Results[1].UID)
	require.NotEmpty(t, resp.NextPage)

	next, err := c.FetchPage(ctx, resp.NextPage)
	require.NoError(t, err)
	require.Len(t, next.Results, 1)
	assert.Equal(t, "first", next.Results[0].UID)
	assert.Empty(t, next.NextPage)
}

func TestQueryRestrictsFetchedFields(t *testing.T) {
	docs := []cms.Document{cmstest.PostDoc("id-1", "first", "First", day(1), map[string]any{
		"banner": map[string]string{"url": "https://images.example.com/a.png"},
	})}
	srv := cmstest.NewServer(t, docs...)
	c := newClient(t, srv)

	resp, err := c.Query(context.Background(), []cms.Predicate{cms.DocumentType("posts")}, cms.QueryOptions{
		Fetch: []string{"posts.title"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	var data map[string]json.RawMessage
	require.NoError(t, resp.Results[0].DecodeData(&data))
	assert.Contains(t, data, "title")
	assert.NotContains(t, data, "banner")
}

func TestGetByUID(t *testing.T) {
	srv := cmstest.NewServer(t, threePosts()...)
	c := newClient(t, srv)

	doc, err := c.GetByUID(context.Background(), "posts", "second", "")
	require.NoError(t, err)
	assert.Equal(t, "id-2", doc.ID)
	assert.Equal(t, day(2), doc.FirstPublicationDate.Time.UTC())

	_, err = c.GetByUID(context.Background(), "posts", "missing", "")
	assert.ErrorIs(t, err, cms.ErrNotFound)
}

func TestQueryAfterWithOrdering(t *testing.T) {
	srv := cmstest.NewServer(t, threePosts()...)
	c := newClient(t, srv)
	ctx := context.Background()
	typ := []cms.Predicate{cms.DocumentType("posts")}

	older, err := c.Query(ctx, typ, cms.QueryOptions{
		PageSize:  1,
		After:     "id-2",
		Orderings: []cms.Ordering{{Field: "document.first_publication_date", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, older.Results, 1)
	assert.Equal(t, "first", older.Results[0].UID)

	newer, err := c.Query(ctx, typ, cms.QueryOptions{
		PageSize:  1,
		After:     "id-2",
		Orderings: []cms.Ordering{{Field: "document.first_publication_date"}},
	})
	require.NoError(t, err)
	require.Len(t, newer.Results, 1)
	assert.Equal(t, "third", newer.Results[0].UID)
}

func TestAPIErrorsAreNotRetried(t *testing.T) {
	srv := cmstest.NewServer(t, threePosts()...)
	c := newClient(t, srv)
	_, err := c.MasterRef(context.Background())
	require.NoError(t, err)

	srv.Fail(1, http.StatusServiceUnavailable)
	_, err = c.Query(context.Background(), []cms.Predicate{cms.DocumentType("posts")}, cms.QueryOptions{})
	require.Error(t, err)

	var apiErr *cms.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "injected failure", apiErr.Message)
	assert.Equal(t, 2, srv.Requests())
}

func TestFetchPageRejectsForeignCursor(t *testing.T) {
	srv := cmstest.NewServer(t)
	c := newClient(t, srv)

	_, err := c.FetchPage(context.Background(), "https://evil.example.com/api/v2/documents/search?page=2")
	assert.ErrorIs(t, err, cms.ErrForeignCursor)
	assert.False(t, c.ValidCursor("::"))
	assert.True(t, c.ValidCursor(srv.Endpoint()+"/documents/search?page=2"))
	assert.Equal(t, 0, srv.Requests())
}

func TestAccessTokenIsSent(t *testing.T) {
	var got string
	srv := cmstest.NewServer(t)
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		got = r.URL.Query().Get("access_token")
		return http.DefaultTransport.RoundTrip(r)
	})}
	c, err := cms.New(cms.Config{Endpoint: srv.Endpoint(), AccessToken: "secret"}, cms.WithHTTPClient(hc))
	require.NoError(t, err)

	_, err = c.MasterRef(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTimeDecoding(t *testing.T) {
	var doc cms.Document
	err := json.Unmarshal([]byte(`{"id":"x","first_publication_date":"2021-03-15T19:25:28+0000","last_publication_date":null}`), &doc)
	require.NoError(t, err)
	require.NotNil(t, doc.FirstPublicationDate)
	assert.Equal(t, time.Date(2021, time.March, 15, 19, 25, 28, 0, time.UTC), doc.FirstPublicationDate.Time.UTC())
	assert.Nil(t, doc.LastPublicationDate)
}

func TestResponseNullCursor(t *testing.T) {
	var resp cms.Response
	require.NoError(t, json.Unmarshal([]byte(`{"results":[],"next_page":null}`), &resp))
	assert.Empty(t, resp.NextPage)

	require.NoError(t, json.Unmarshal([]byte(`{"results":[],"next_page":"https://x/api/v2/documents/search?page=2"}`), &resp))
	assert.Equal(t, "https://x/api/v2/documents/search?page=2", resp.NextPage)
}

func TestPredicateEncoding(t *testing.T) {
	assert.Equal(t, cms.Predicate(`[at(document.type,"posts")]`), cms.DocumentType("posts"))
	assert.Equal(t, cms.Predicate(`[not(document.id,"a")]`), cms.Not("document.id", "a"))
	assert.Equal(t, cms.Predicate(`[any(document.tags,["a","b"])]`), cms.Any("document.tags", "a", "b"))
	assert.Equal(t, cms.Predicate(`[in(document.id,["x"])]`), cms.InIDs("x"))
}
