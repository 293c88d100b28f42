package spacetraveling

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/spacetraveling/content"
)

const (
	jpegQuality    = 80
	maxBannerBytes = 10 << 20 // 10MB
)

// resizeImage decodes an image from src, downscales it to at most width
// pixels wide, and encodes it as JPEG.
func resizeImage(src io.Reader, width int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > width {
		newH := h * width / w
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// bannerCache keeps resized banners in memory, keyed by source URL so an
// edited banner is fetched again.
type bannerCache struct {
	mu     sync.Mutex
	width  int
	http   *http.Client
	images map[string][]byte
}

func newBannerCache(width int) *bannerCache {
	return &bannerCache{
		width:  width,
		http:   &http.Client{Timeout: 15 * time.Second},
		images: make(map[string][]byte),
	}
}

func (b *bannerCache) get(ctx context.Context, src string) ([]byte, error) {
	b.mu.Lock()
	data, ok := b.images[src]
	b.mu.Unlock()
	if ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch banner: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch banner: status %d", resp.StatusCode)
	}
	data, err = resizeImage(io.LimitReader(resp.Body, maxBannerBytes), b.width)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.images[src] = data
	b.mu.Unlock()
	return data, nil
}

// handleBanner serves the published banner of a post, resized for link
// previews.
func (a *App) handleBanner(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	if !slugPattern.MatchString(slug) {
		return a.notFound(c)
	}
	doc, err := a.CMS.GetByUID(ctx, a.Builder.PostType(), slug, "")
	if err != nil {
		if content.IsNotFound(err) {
			return a.notFound(c)
		}
		return err
	}
	post, err := content.PostFromDocument(doc)
	if err != nil {
		return err
	}
	src, err := url.Parse(post.Banner.URL)
	if err != nil || (src.Scheme != "https" && src.Scheme != "http") || src.Host == "" {
		return a.notFound(c)
	}
	data, err := a.banners.get(ctx, src.String())
	if err != nil {
		c.Logger().Warnf("banner %s: %v", slug, err)
		return echo.NewHTTPError(http.StatusBadGateway, "banner unavailable")
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
