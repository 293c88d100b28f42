package cms

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// LinkResolver maps a document to a site-relative path.
type LinkResolver func(Document) string

// ResolvePreview validates a preview token issued by the CMS and returns the
// site path the previewed document lives at. Without a documentID the token
// is still checked against the API and defaultURL is returned.
//
// Every failure wraps ErrInvalidPreview.
func (c *Client) ResolvePreview(ctx context.Context, token, documentID string, resolve LinkResolver, defaultURL string) (string, error) {
	if !c.ownsPreviewToken(token) {
		return "", errors.Wrap(ErrInvalidPreview, "token is not issued by this repository")
	}
	if documentID == "" {
		if _, err := c.Query(ctx, nil, QueryOptions{Ref: token, PageSize: 1, Fetch: []string{}}); err != nil {
			return "", errors.Wrapf(ErrInvalidPreview, "check token: %v", err)
		}
		return defaultURL, nil
	}
	doc, err := c.GetByID(ctx, documentID, token)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidPreview, "document %q: %v", documentID, err)
	}
	path := defaultURL
	if resolve != nil {
		if p := resolve(doc); p != "" {
			path = p
		}
	}
	return path, nil
}

// ownsPreviewToken accepts tokens that are URLs on the repository's own
// domain: the API host itself or a sibling host sharing the repository name
// (repo.prismic.io for repo.cdn.prismic.io).
func (c *Client) ownsPreviewToken(token string) bool {
	u, err := url.Parse(token)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != c.endpoint.Scheme {
		return false
	}
	if u.Host == c.endpoint.Host {
		return true
	}
	repo, base, ok := splitRepositoryHost(c.endpoint.Hostname())
	if !ok {
		return false
	}
	tokenRepo, tokenBase, ok := splitRepositoryHost(u.Hostname())
	return ok && tokenRepo == repo && tokenBase == base
}

// splitRepositoryHost splits repo.cdn.prismic.io into ("repo", "prismic.io").
func splitRepositoryHost(host string) (string, string, bool) {
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", "", false
	}
	return labels[0], strings.Join(labels[len(labels)-2:], "."), true
}
