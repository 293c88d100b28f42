package spacetraveling

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetraveling/content"
)

// Export writes a static copy of the site to dir: the listing, every post
// page, the feed, the sitemap, and the embedded assets. With no server to
// follow cursors, the exported listing holds every post. It returns the
// number of posts written.
func (a *App) Export(ctx context.Context, dir string) (int, error) {
	if err := a.Init(); err != nil {
		return 0, err
	}
	posts, err := a.AllPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("spacetraveling: export listing: %w", err)
	}
	cfg := a.viewConfig()

	home, err := renderBytes(ctx, a.Views.Home(cfg, content.Listing{Posts: posts}, false))
	if err != nil {
		return 0, err
	}
	if err := writeExportFile(dir, "index.html", home); err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range posts {
		g.Go(func() error {
			post, nav, err := a.Builder.Post(gctx, p.UID, content.Preview{})
			if err != nil {
				return fmt.Errorf("spacetraveling: export %s: %w", p.UID, err)
			}
			html, err := renderBytes(gctx, a.Views.Post(cfg, post, nav, false))
			if err != nil {
				return err
			}
			return writeExportFile(dir, filepath.Join("post", p.UID, "index.html"), html)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	latest := posts
	if len(latest) > a.Config.PageSize {
		latest = latest[:a.Config.PageSize]
	}
	if err := writeExportXML(dir, "feed.xml", a.feed(latest)); err != nil {
		return 0, err
	}
	if err := writeExportXML(dir, "sitemap.xml", a.sitemap(posts)); err != nil {
		return 0, err
	}
	if err := copyEmbeddedAssets(filepath.Join(dir, "public")); err != nil {
		return 0, err
	}
	return len(posts), nil
}

func writeExportFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("spacetraveling: export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("spacetraveling: export: %w", err)
	}
	return nil
}

func writeExportXML(dir, name string, v any) error {
	b, err := xml.Marshal(v)
	if err != nil {
		return err
	}
	return writeExportFile(dir, name, append([]byte(xml.Header), b...))
}

func copyEmbeddedAssets(dst string) error {
	src := embeddedFS()
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return writeExportFile(dst, path, data)
	})
}
