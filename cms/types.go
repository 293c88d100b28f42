package cms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used by the content API.
const TimeLayout = "2006-01-02T15:04:05-0700"

// Time is a publication timestamp as sent by the content API.
// It accepts both the API's "+0000" offsets and RFC 3339.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse publication date %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimeLayout))
}

// Document is a single CMS document. Data is left raw so that each
// content type can decode its own fields.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate *Time           `json:"first_publication_date"`
	LastPublicationDate  *Time           `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// DecodeData unmarshals the document's data field into v.
func (d Document) DecodeData(v any) error {
	if len(d.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s document %q: %w", d.Type, d.ID, err)
	}
	return nil
}

// Response is one page of search results. NextPage is the cursor URL for
// the following page, or empty when the results are exhausted.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         string     `json:"-"`
	PrevPage         string     `json:"-"`
	Results          []Document `json:"results"`
}

func (r *Response) UnmarshalJSON(b []byte) error {
	type plain Response
	var raw struct {
		plain
		NextPage *string `json:"next_page"`
		PrevPage *string `json:"prev_page"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Response(raw.plain)
	if raw.NextPage != nil {
		r.NextPage = *raw.NextPage
	}
	if raw.PrevPage != nil {
		r.PrevPage = *raw.PrevPage
	}
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	out := struct {
		plain
		NextPage *string `json:"next_page"`
		PrevPage *string `json:"prev_page"`
	}{plain: plain(r)}
	if r.NextPage != "" {
		out.NextPage = &r.NextPage
	}
	if r.PrevPage != "" {
		out.PrevPage = &r.PrevPage
	}
	return json.Marshal(out)
}

// Ref identifies a content release. The master ref points at published content.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// APIError is returned for any non-2xx answer from the content API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cms: api returned status %d", e.Status)
	}
	return fmt.Sprintf("cms: api returned status %d: %s", e.Status, e.Message)
}
