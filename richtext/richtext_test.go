package richtext

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatSpans(t *testing.T) {
	link := &SpanData{LinkType: "Web", URL: "https://example.com"}
	tests := []struct {
		name     string
		text     string
		spans    []Span
		expected string
	}{
		{"plain", "Hello world", nil, "Hello world"},
		{"escaped", "a < b & c", nil, "a &lt; b &amp; c"},
		{"newline", "one\ntwo", nil, "one<br />two"},
		{"strong", "Hello world", []Span{{Start: 0, End: 5, Type: Strong}}, "<strong>Hello</strong> world"},
		{"em", "Hello world", []Span{{Start: 6, End: 11, Type: Em}}, "Hello <em>world</em>"},
		{"nested", "Hello world", []Span{
			{Start: 0, End: 11, Type: Strong},
			{Start: 6, End: 11, Type: Em},
		}, "<strong>Hello <em>world</em></strong>"},
		{"overlapping", "abcdefghij", []Span{
			{Start: 0, End: 5, Type: Strong},
			{Start: 3, End: 8, Type: Em},
		}, "<strong>abc<em>de</em></strong><em>fgh</em>ij"},
		{"hyperlink", "see docs", []Span{{Start: 4, End: 8, Type: Hyperlink, Data: link}}, `see <a href="https://example.com">docs</a>`},
		{"hyperlink blank target", "docs", []Span{{Start: 0, End: 4, Type: Hyperlink, Data: &SpanData{URL: "https://example.com", Target: "_blank"}}},
			`<a href="https://example.com" target="_blank" rel="noopener noreferrer">docs</a>`},
		{"unsafe link dropped", "click", []Span{{Start: 0, End: 5, Type: Hyperlink, Data: &SpanData{URL: "javascript:alert(1)"}}}, "click"},
		{"out of range span ignored", "abc", []Span{{Start: 2, End: 10, Type: Strong}}, "abc"},
		{"utf16 offsets", "😀 bold", []Span{{Start: 3, End: 7, Type: Strong}}, "😀 <strong>bold</strong>"},
		{"label", "note", []Span{{Start: 0, End: 4, Type: Label, Data: &SpanData{Label: "highlight"}}}, `<span class="highlight">note</span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSpans(tt.text, tt.spans)
			if got != tt.expected {
				t.Errorf("FormatSpans(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestRenderHeadingsAndParagraphs(t *testing.T) {
	blocks := Blocks{
		{Type: Heading2, Text: "Intro"},
		{Type: Paragraph, Text: "First paragraph."},
		{Type: Preformatted, Text: "go run ."},
	}
	got := HTML(blocks)
	want := "<h2>Intro</h2><p>First paragraph.</p><pre>go run .</pre>"
	if got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}
}

func TestRenderGroupsListItems(t *testing.T) {
	blocks := Blocks{
		{Type: ListItem, Text: "one"},
		{Type: ListItem, Text: "two"},
		{Type: OListItem, Text: "first"},
		{Type: Paragraph, Text: "after"},
	}
	got := HTML(blocks)
	want := "<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol><p>after</p>"
	if got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}
}

func TestRenderImage(t *testing.T) {
	blocks := Blocks{
		{Type: Image, URL: "https://images.example.com/a.png", Alt: `a "quoted" alt`, Dimensions: &Dimensions{Width: 800, Height: 600}},
		{Type: Image, URL: "javascript:alert(1)"},
	}
	got := HTML(blocks)
	if !strings.Contains(got, `src="https://images.example.com/a.png"`) {
		t.Errorf("missing image src: %q", got)
	}
	if !strings.Contains(got, `alt="a &#34;quoted&#34; alt"`) {
		t.Errorf("alt not escaped: %q", got)
	}
	if !strings.Contains(got, `width="800" height="600"`) {
		t.Errorf("missing dimensions: %q", got)
	}
	if strings.Contains(got, "javascript") {
		t.Errorf("unsafe image rendered: %q", got)
	}
}

func TestRenderEmbedAsLink(t *testing.T) {
	blocks := Blocks{{Type: Embed, Oembed: &Oembed{EmbedURL: "https://www.youtube.com/watch?v=x", Title: "<b>Video</b>"}}}
	got := HTML(blocks)
	if strings.Contains(got, "<b>") {
		t.Errorf("embed title not escaped: %q", got)
	}
	if !strings.Contains(got, `href="https://www.youtube.com/watch?v=x"`) {
		t.Errorf("embed link missing: %q", got)
	}
}

func TestDecodeFromAPI(t *testing.T) {
	raw := `[{"type":"paragraph","text":"Hi there","spans":[{"start":0,"end":2,"type":"em"}]}]`
	var blocks Blocks
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := HTML(blocks); got != "<p><em>Hi</em> there</p>" {
		t.Errorf("HTML = %q", got)
	}
}

func TestComponentRendersSameHTML(t *testing.T) {
	blocks := Blocks{{Type: Paragraph, Text: "hello"}}
	var buf bytes.Buffer
	if err := Component(blocks).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != HTML(blocks) {
		t.Errorf("Component = %q, HTML = %q", buf.String(), HTML(blocks))
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/a?b=c&d=e", "https://example.com/a?b=c&amp;d=e"},
		{"/post/x", "/post/x"},
		{"#top", "#top"},
		{"//evil.example.com", ""},
		{"javascript:alert(1)", ""},
		{"data:text/html,x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestWordCountAndText(t *testing.T) {
	blocks := Blocks{
		{Type: Heading2, Text: "Two words"},
		{Type: Paragraph, Text: "three more words"},
		{Type: Image, URL: "https://x/y.png"},
	}
	if got := WordCount(blocks); got != 5 {
		t.Errorf("WordCount = %d, want 5", got)
	}
	if got := AsText(blocks); got != "Two words\nthree more words" {
		t.Errorf("AsText = %q", got)
	}
}
