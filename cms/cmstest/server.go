// Package cmstest runs an in-memory content API for tests.
package cmstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

// MasterRef is the ref the fake API publishes as master.
const MasterRef = "master-ref"

var rePredicate = regexp.MustCompile(`\[(at|not)\(([^,]+),"((?:[^"\\]|\\.)*)"\)\]`)

// Server is a fake content API backed by a fixed set of documents.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     []cms.Document
	previews map[string][]cms.Document
	failures int
	failCode int
	requests atomic.Int64
}

// NewServer starts a fake API serving docs and registers cleanup on t.
func NewServer(t testing.TB, docs ...cms.Document) *Server {
	t.Helper()
	s := &Server{previews: make(map[string][]cms.Document)}
	s.docs = sortByDate(docs)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", s.handleRoot)
	mux.HandleFunc("/api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the API root to configure a cms.Client with.
func (s *Server) Endpoint() string {
	return s.URL + "/api/v2"
}

// PreviewToken registers a preview ref whose content is the published
// documents overridden by drafts, and returns the token URL.
func (s *Server) PreviewToken(name string, drafts ...cms.Document) string {
	token := s.URL + "/previews/" + name
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]cms.Document, 0, len(s.docs)+len(drafts))
	replaced := make(map[string]bool)
	for _, d := range drafts {
		replaced[d.ID] = true
	}
	for _, d := range s.docs {
		if !replaced[d.ID] {
			merged = append(merged, d)
		}
	}
	merged = append(merged, drafts...)
	s.previews[token] = sortByDate(merged)
	return token
}

// Fail makes the next n search requests answer with status code.
func (s *Server) Fail(n, code int) {
	s.mu.Lock()
	s.failures = n
	s.failCode = code
	s.mu.Unlock()
}

// Requests returns how many requests the server has handled.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"refs": []cms.Ref{{ID: "master", Ref: MasterRef, Label: "Master", IsMasterRef: true}},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		code := s.failCode
		s.mu.Unlock()
		writeJSON(w, code, map[string]string{"message": "injected failure"})
		return
	}
	q := r.URL.Query()
	ref := q.Get("ref")
	var docs []cms.Document
	switch {
	case ref == MasterRef:
		docs = s.docs
	case s.previews[ref] != nil:
		docs = s.previews[ref]
	default:
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Ref not found"})
		return
	}
	docs = append([]cms.Document(nil), docs...)
	s.mu.Unlock()

	docs = filter(docs, q.Get("q"))
	if strings.Contains(q.Get("orderings"), "first_publication_date") && !strings.Contains(q.Get("orderings"), "desc") {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	if after := q.Get("after"); after != "" {
		for i, d := range docs {
			if d.ID == after {
				docs = docs[i+1:]
				break
			}
		}
	}

	pageSize := atoiOr(q.Get("pageSize"), 20)
	page := atoiOr(q.Get("page"), 1)
	total := len(docs)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	results := docs[start:end]
	if _, ok := q["fetch"]; ok {
		results = restrict(results, q.Get("fetch"))
	}

	resp := cms.Response{
		Page:             page,
		ResultsPerPage:   pageSize,
		ResultsSize:      len(results),
		TotalResultsSize: total,
		TotalPages:       totalPages,
		Results:          results,
	}
	if page < totalPages {
		next := *r.URL
		nq := next.Query()
		nq.Set("page", strconv.Itoa(page+1))
		next.RawQuery = nq.Encode()
		resp.NextPage = s.URL + next.RequestURI()
	}
	if page > 1 {
		prev := *r.URL
		pq := prev.Query()
		pq.Set("page", strconv.Itoa(page-1))
		prev.RawQuery = pq.Encode()
		resp.PrevPage = s.URL + prev.RequestURI()
	}
	writeJSON(w, http.StatusOK, resp)
}

func filter(docs []cms.Document, query string) []cms.Document {
	for _, m := range rePredicate.FindAllStringSubmatch(query, -1) {
		op, path, value := m[1], m[2], strings.ReplaceAll(m[3], `\"`, `"`)
		kept := docs[:0:0]
		for _, d := range docs {
			if matches(d, path, value) == (op == "at") {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	return docs
}

func matches(d cms.Document, path, value string) bool {
	switch {
	case path == "document.type":
		return d.Type == value
	case path == "document.id":
		return d.ID == value
	case strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid"):
		return d.Type == strings.TrimSuffix(strings.TrimPrefix(path, "my."), ".uid") && d.UID == value
	}
	return false
}

// restrict keeps only the data fields listed in fetch ("posts.title,...").
func restrict(docs []cms.Document, fetch string) []cms.Document {
	keep := make(map[string]bool)
	for _, f := range strings.Split(fetch, ",") {
		if i := strings.Index(f, "."); i >= 0 {
			keep[f[i+1:]] = true
		}
	}
	out := make([]cms.Document, len(docs))
	for i, d := range docs {
		var data map[string]json.RawMessage
		_ = json.Unmarshal(d.Data, &data)
		for k := range data {
			if !keep[k] {
				delete(data, k)
			}
		}
		d.Data, _ = json.Marshal(data)
		out[i] = d
	}
	return out
}

func sortByDate(docs []cms.Document) []cms.Document {
	out := append([]cms.Document(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool {
		return date(out[i]).After(date(out[j]))
	})
	return out
}

func date(d cms.Document) time.Time {
	if d.FirstPublicationDate == nil {
		return time.Time{}
	}
	return d.FirstPublicationDate.Time
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// PostDoc builds a "posts" document published at the given time.
func PostDoc(id, uid, title string, published time.Time, data map[string]any) cms.Document {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["title"]; !ok {
		data["title"] = title
	}
	if _, ok := data["subtitle"]; !ok {
		data["subtitle"] = "Subtitle of " + title
	}
	if _, ok := data["author"]; !ok {
		data["author"] = "Joseph Oliveira"
	}
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("cmstest: marshal data: %v", err))
	}
	return cms.Document{
		ID:                   id,
		UID:                  uid,
		Type:                 "posts",
		FirstPublicationDate: &cms.Time{Time: published},
		LastPublicationDate:  &cms.Time{Time: published},
		Data:                 raw,
	}
}
