// Package content maps CMS documents into the view models the pages render
// and builds the props for the listing and post pages.
package content

import (
	"time"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/richtext"
)

// Summary is a post as shown in the listing.
type Summary struct {
	UID                  string    `json:"uid"`
	FirstPublicationDate time.Time `json:"first_publication_date"`
	Title                string    `json:"title"`
	Subtitle             string    `json:"subtitle"`
	Author               string    `json:"author"`
}

// Link is the site path of the post.
func (s Summary) Link() string {
	return PostPath(s.UID)
}

// Section is a heading followed by rich-text body blocks. The body is kept
// unconverted; it is rendered to HTML by the views.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// Banner is the post's header image.
type Banner struct {
	URL        string               `json:"url"`
	Alt        string               `json:"alt,omitempty"`
	Dimensions *richtext.Dimensions `json:"dimensions,omitempty"`
}

// Post is a fully loaded post page.
type Post struct {
	Summary
	LastPublicationDate time.Time `json:"last_publication_date"`
	Banner              Banner    `json:"banner"`
	Sections            []Section `json:"content"`
	ReadingTime         int       `json:"reading_time"`
}

// Edited reports whether the post was republished after its first publication.
func (p Post) Edited() bool {
	return !p.LastPublicationDate.IsZero() && p.LastPublicationDate.After(p.FirstPublicationDate)
}

// Listing is the first page of the post listing plus its next-page cursor.
// An empty NextPage means there is nothing more to load.
type Listing struct {
	Posts    []Summary `json:"results"`
	NextPage string    `json:"next_page"`
}

// HasMore reports whether a next page can be requested.
func (l Listing) HasMore() bool {
	return l.NextPage != ""
}

// Navigation holds the posts published right before and after a post.
type Navigation struct {
	Prev *Summary
	Next *Summary
}

// Preview is the preview state of one browsing session. A non-empty Ref asks
// the CMS for draft content instead of the published release.
type Preview struct {
	Ref string
}

// Active reports whether the session is in preview mode.
func (p Preview) Active() bool {
	return p.Ref != ""
}

// PostData is the data field of a "posts" document.
type PostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   Banner `json:"banner"`
	Content  []struct {
		Heading string          `json:"heading"`
		Body    richtext.Blocks `json:"body"`
	} `json:"content"`
}

// PostPath is the site path of the post with the given uid.
func PostPath(uid string) string {
	return "/post/" + uid
}

// LinkResolver maps documents to site paths; unknown types go to the home page.
func LinkResolver(postType string) cms.LinkResolver {
	return func(doc cms.Document) string {
		if doc.Type == postType && doc.UID != "" {
			return PostPath(doc.UID)
		}
		return "/"
	}
}

// SummaryFromDocument maps a document to its listing shape.
func SummaryFromDocument(doc cms.Document) (Summary, error) {
	var data PostData
	if err := doc.DecodeData(&data); err != nil {
		return Summary{}, err
	}
	return summaryOf(doc, data), nil
}

// SummariesFromDocuments maps documents in order.
func SummariesFromDocuments(docs []cms.Document) ([]Summary, error) {
	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		s, err := SummaryFromDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// PostFromDocument maps a document to a full post.
func PostFromDocument(doc cms.Document) (Post, error) {
	var data PostData
	if err := doc.DecodeData(&data); err != nil {
		return Post{}, err
	}
	p := Post{
		Summary: summaryOf(doc, data),
		Banner:  data.Banner,
	}
	if doc.LastPublicationDate != nil {
		p.LastPublicationDate = doc.LastPublicationDate.Time
	}
	words := 0
	for _, c := range data.Content {
		p.Sections = append(p.Sections, Section{Heading: c.Heading, Body: c.Body})
		words += len(splitWords(c.Heading)) + richtext.WordCount(c.Body)
	}
	p.ReadingTime = ReadingTime(words)
	return p, nil
}

func summaryOf(doc cms.Document, data PostData) Summary {
	s := Summary{
		UID:      doc.UID,
		Title:    data.Title,
		Subtitle: data.Subtitle,
		Author:   data.Author,
	}
	if doc.FirstPublicationDate != nil {
		s.FirstPublicationDate = doc.FirstPublicationDate.Time
	}
	return s
}
