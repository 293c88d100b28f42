package views

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/richtext"
)

var testCfg = SiteConfig{
	Name: "spacetraveling",
	URL:  "https://blog.example.com",
	Comments: CommentsConfig{
		Script:    "https://utteranc.es/client.js",
		Repo:      "owner/comments",
		IssueTerm: "pathname",
		Theme:     "github-dark",
	},
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func samplePost() content.Post {
	first := time.Date(2021, time.March, 15, 19, 25, 0, 0, time.UTC)
	return content.Post{
		Summary: content.Summary{
			UID:                  "my-post",
			FirstPublicationDate: first,
			Title:                "Como <utilizar> Hooks",
			Subtitle:             "Pensando em sincronização",
			Author:               "Joseph Oliveira",
		},
		LastPublicationDate: first.Add(48 * time.Hour),
		Banner:              content.Banner{URL: "https://images.example.com/banner.png"},
		Sections: []content.Section{{
			Heading: "Proin et varius",
			Body:    richtext.Blocks{{Type: richtext.Paragraph, Text: "Lorem ipsum"}},
		}},
		ReadingTime: 4,
	}
}

func TestHomeShowsLoadMoreOnlyWithCursor(t *testing.T) {
	posts := []content.Summary{{UID: "a", Title: "A", Author: "Ana"}}

	withCursor := render(t, Home(testCfg, content.Listing{Posts: posts, NextPage: "https://cms.example.com/api/v2/documents/search?page=2"}, false))
	if !strings.Contains(withCursor, `class="load-more"`) {
		t.Error("load-more control missing when a cursor exists")
	}
	if !strings.Contains(withCursor, `data-href="/posts/more?cursor=https%3A%2F%2Fcms.example.com`) {
		t.Errorf("cursor not encoded into control: %s", withCursor)
	}

	exhausted := render(t, Home(testCfg, content.Listing{Posts: posts}, false))
	if strings.Contains(exhausted, "load-more") {
		t.Error("load-more control rendered without a cursor")
	}
	if !strings.Contains(exhausted, `href="/post/a"`) {
		t.Error("post link missing")
	}
}

func TestHomePreviewBanner(t *testing.T) {
	got := render(t, Home(testCfg, content.Listing{}, true))
	if !strings.Contains(got, `href="/api/exit-preview"`) {
		t.Error("preview banner missing")
	}
	got = render(t, Home(testCfg, content.Listing{}, false))
	if strings.Contains(got, "exit-preview") {
		t.Error("preview banner shown outside preview")
	}
}

func TestPostItemsOrderAndEscaping(t *testing.T) {
	posts := []content.Summary{
		{UID: "b", Title: "<script>B</script>"},
		{UID: "a", Title: "A"},
	}
	got := render(t, PostItems(posts))
	if strings.Contains(got, "<script>") {
		t.Errorf("title not escaped: %s", got)
	}
	if strings.Index(got, "/post/b") > strings.Index(got, "/post/a") {
		t.Error("posts rendered out of order")
	}
}

func TestLoadMoreResult(t *testing.T) {
	got := render(t, LoadMoreResult([]content.Summary{{UID: "c", Title: "C"}}, ""))
	if !strings.Contains(got, `<template data-append=".post-list">`) || !strings.Contains(got, "/post/c") {
		t.Errorf("unexpected fragment: %s", got)
	}
	if strings.Contains(got, "load-more") {
		t.Error("control rendered after the last page")
	}
}

func TestPostPage(t *testing.T) {
	prev := content.Summary{UID: "older", Title: "Older"}
	got := render(t, Post(testCfg, samplePost(), content.Navigation{Prev: &prev}, false))

	checks := []string{
		`<main id="post">`,
		`src="https://images.example.com/banner.png"`,
		"Como &lt;utilizar&gt; Hooks",
		"15 mar 2021",
		"4 min",
		"* editado em 17 mar 2021, às 19:25",
		"<h2>Proin et varius</h2>",
		"<p>Lorem ipsum</p>",
		`href="/post/older"`,
		"Post anterior",
		`src="https://utteranc.es/client.js"`,
		`repo="owner/comments"`,
		`issue-term="pathname"`,
		`theme="github-dark"`,
		`crossorigin="anonymous"`,
		`<link rel="canonical" href="https://blog.example.com/post/my-post"/>`,
		`<meta property="og:image" content="https://blog.example.com/banner/my-post"/>`,
	}
	for _, want := range checks {
		if !strings.Contains(got, want) {
			t.Errorf("post page missing %q", want)
		}
	}
	if strings.Contains(got, "Próximo post") {
		t.Error("next link rendered without a next post")
	}
}

func TestPostMainIsEmbeddedInFullPage(t *testing.T) {
	post := samplePost()
	full := render(t, Post(testCfg, post, content.Navigation{}, false))
	main := render(t, PostMain(testCfg, post, content.Navigation{}, false))
	if !strings.Contains(full, main) {
		t.Error("full page does not contain the partial <main> verbatim")
	}
}

func TestCommentsDisabledWithoutRepo(t *testing.T) {
	if got := render(t, Comments(CommentsConfig{})); got != "" {
		t.Errorf("Comments = %q, want empty", got)
	}
}

func TestPostLoading(t *testing.T) {
	got := render(t, PostLoading(testCfg, "my-post"))
	if !strings.Contains(got, `data-fallback="/post/my-post?partial=post"`) {
		t.Errorf("fallback target missing: %s", got)
	}
	if !strings.Contains(got, "Carregando...") {
		t.Error("loading text missing")
	}
}

func TestErrorPages(t *testing.T) {
	if got := render(t, NotFound(testCfg)); !strings.Contains(got, "404") {
		t.Error("404 page missing code")
	}
	if got := render(t, ServerError(testCfg)); !strings.Contains(got, "500") {
		t.Error("500 page missing code")
	}
}

func jsonLD(t *testing.T, page string) map[string]any {
	t.Helper()
	const open = `<script type="application/ld+json">`
	start := strings.Index(page, open)
	if start < 0 {
		t.Fatal("JSON-LD block missing")
	}
	rest := page[start+len(open):]
	end := strings.Index(rest, "</script>")
	if end < 0 {
		t.Fatal("JSON-LD block not closed")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(rest[:end]), &data); err != nil {
		t.Fatalf("JSON-LD does not parse: %v", err)
	}
	return data
}

func TestPostJsonLD(t *testing.T) {
	post := samplePost()
	post.Title = "Fim </script><script>alert(1)</script>"
	page := render(t, Post(testCfg, post, content.Navigation{}, false))
	if strings.Contains(page, "<script>alert(1)") {
		t.Fatal("headline broke out of the JSON-LD block")
	}

	data := jsonLD(t, page)
	want := map[string]string{
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"datePublished": "2021-03-15T19:25:00Z",
		"dateModified":  "2021-03-17T19:25:00Z",
		"url":           "https://blog.example.com/post/my-post",
		"image":         "https://blog.example.com/banner/my-post",
	}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("%s = %v, want %q", k, data[k], v)
		}
	}
	author, _ := data["author"].(map[string]any)
	if author["name"] != "Joseph Oliveira" {
		t.Errorf("author = %v", data["author"])
	}
}

func TestHomeJsonLD(t *testing.T) {
	data := jsonLD(t, render(t, Home(testCfg, content.Listing{}, false)))
	if data["@type"] != "WebSite" || data["url"] != "https://blog.example.com/" {
		t.Errorf("unexpected WebSite JSON-LD: %v", data)
	}
}
