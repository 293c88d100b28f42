package pagination_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/cms/cmstest"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/pagination"
)

type stubFetcher struct {
	pages   map[string]cms.Response
	err     error
	block   chan struct{}
	started chan struct{}
	calls   int
}

func (s *stubFetcher) FetchPage(ctx context.Context, cursor string) (cms.Response, error) {
	s.calls++
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return cms.Response{}, s.err
	}
	return s.pages[cursor], nil
}

func doc(uid string) cms.Document {
	data, _ := json.Marshal(map[string]string{"title": "T " + uid, "subtitle": "S", "author": "A"})
	return cms.Document{ID: "id-" + uid, UID: uid, Type: "posts", Data: data}
}

func summaries(uids ...string) []content.Summary {
	out := make([]content.Summary, len(uids))
	for i, u := range uids {
		out[i] = content.Summary{UID: u, Title: "T " + u, Subtitle: "S", Author: "A"}
	}
	return out
}

func uidsOf(posts []content.Summary) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.UID
	}
	return out
}

func TestLoadMoreWithoutCursorIsNoop(t *testing.T) {
	f := &stubFetcher{}
	c := pagination.New(content.Listing{Posts: summaries("a")}, f)

	assert.False(t, c.HasMore())
	_, err := c.LoadMore(context.Background())
	assert.ErrorIs(t, err, pagination.ErrExhausted)
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, []string{"a"}, uidsOf(c.Posts()))
	assert.False(t, c.Loading())
}

func TestLoadMoreAppendsInOrderAndReplacesCursor(t *testing.T) {
	f := &stubFetcher{pages: map[string]cms.Response{
		"p2": {Results: []cms.Document{doc("c"), doc("d")}, NextPage: "p3"},
		"p3": {Results: []cms.Document{doc("e")}},
	}}
	c := pagination.New(content.Listing{Posts: summaries("a", "b"), NextPage: "p2"}, f)

	added, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, uidsOf(added))
	assert.Equal(t, []string{"a", "b", "c", "d"}, uidsOf(c.Posts()))
	assert.Equal(t, "p3", c.Cursor())

	_, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, uidsOf(c.Posts()))
	assert.False(t, c.HasMore())
	assert.False(t, c.Loading())
}

func TestLoadMoreKeepsDuplicates(t *testing.T) {
	f := &stubFetcher{pages: map[string]cms.Response{
		"p2": {Results: []cms.Document{doc("b"), doc("c")}},
	}}
	c := pagination.New(content.Listing{Posts: summaries("a", "b"), NextPage: "p2"}, f)

	_, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b", "c"}, uidsOf(c.Posts()))
}

func TestLoadMoreFailureLeavesStateAndNotifies(t *testing.T) {
	boom := errors.New("network down")
	f := &stubFetcher{err: boom}
	var notified []string
	c := pagination.New(content.Listing{Posts: summaries("a"), NextPage: "p2"}, f,
		pagination.WithNotifier(pagination.NotifierFunc(func(m string) { notified = append(notified, m) })))

	added, err := c.LoadMore(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, added)
	assert.Equal(t, []string{"a"}, uidsOf(c.Posts()))
	assert.Equal(t, "p2", c.Cursor())
	assert.False(t, c.Loading())
	assert.Equal(t, []string{pagination.FailureMessage}, notified)
}

func TestLoadMoreDecodeFailureLeavesState(t *testing.T) {
	bad := cms.Document{ID: "x", UID: "x", Data: json.RawMessage(`{"title":1}`)}
	f := &stubFetcher{pages: map[string]cms.Response{"p2": {Results: []cms.Document{bad}, NextPage: "p3"}}}
	notified := 0
	c := pagination.New(content.Listing{Posts: summaries("a"), NextPage: "p2"}, f,
		pagination.WithNotifier(pagination.NotifierFunc(func(string) { notified++ })))

	_, err := c.LoadMore(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, uidsOf(c.Posts()))
	assert.Equal(t, "p2", c.Cursor())
	assert.Equal(t, 1, notified)
}

func TestOverlappingLoadIsRejected(t *testing.T) {
	f := &stubFetcher{
		pages:   map[string]cms.Response{"p2": {Results: []cms.Document{doc("b")}}},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c := pagination.New(content.Listing{Posts: summaries("a"), NextPage: "p2"}, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadMore(context.Background())
		done <- err
	}()
	<-f.started
	assert.True(t, c.Loading())

	_, err := c.LoadMore(context.Background())
	assert.ErrorIs(t, err, pagination.ErrBusy)

	close(f.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first load did not finish")
	}
	assert.Equal(t, []string{"a", "b"}, uidsOf(c.Posts()))
	assert.False(t, c.Loading())
}

func TestLoadMoreAgainstCMS(t *testing.T) {
	var docs []cms.Document
	for i := 1; i <= 45; i++ {
		docs = append(docs, cmstest.PostDoc("id-"+strconv.Itoa(i), "post-"+strconv.Itoa(i), "Post "+strconv.Itoa(i),
			time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i)*time.Hour), nil))
	}
	srv := cmstest.NewServer(t, docs...)
	client, err := cms.New(cms.Config{Endpoint: srv.Endpoint(), RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	b := content.NewBuilder(client, content.Config{PageSize: 20})

	first, err := b.Home(context.Background(), content.Preview{})
	require.NoError(t, err)
	require.Len(t, first.Posts, 20)
	require.Contains(t, first.NextPage, "page=2")

	c := pagination.New(first, client)
	added, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, added, 20)
	assert.Len(t, c.Posts(), 40)
	assert.Equal(t, "post-25", added[0].UID)
	assert.Contains(t, c.Cursor(), "page=3")

	require.NoError(t, c.Drain(context.Background()))
	assert.Len(t, c.Posts(), 45)
	assert.False(t, c.HasMore())
}
