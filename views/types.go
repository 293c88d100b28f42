package views

// SiteConfig holds site-wide settings the templates need.
// Every handler passes this to templates so nothing is hardcoded.
type SiteConfig struct {
	Name        string // SITE_NAME  (default "spacetraveling")
	URL         string // SITE_URL   (default "http://localhost:3000")
	Description string // SITE_DESCRIPTION
	Logo        string // path of the header logo
	Comments    CommentsConfig
}

// CommentsConfig parameterizes the comment widget. An empty Repo disables it.
type CommentsConfig struct {
	Script    string // widget script URL
	Repo      string // owner/name of the repository holding the comments
	IssueTerm string // how pages map to issues, e.g. "pathname"
	Theme     string // widget theme, e.g. "github-dark"
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image
	JsonLD      string // structured data, emitted as application/ld+json
}
