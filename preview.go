package spacetraveling

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
)

const (
	previewSessionName = "preview_session"
	previewRefKey      = "ref"
)

// previewFromSession returns the preview state carried by the request's
// session cookie. A missing or unreadable session means no preview.
func previewFromSession(c echo.Context) content.Preview {
	sess, err := session.Get(previewSessionName, c)
	if err != nil {
		return content.Preview{}
	}
	ref, _ := sess.Values[previewRefKey].(string)
	return content.Preview{Ref: ref}
}

// writablePreviewSession returns the session to save the preview state
// into. A cookie that no longer decodes, for example after a secret
// rotation, yields a fresh session that overwrites it.
func writablePreviewSession(c echo.Context) (*sessions.Session, error) {
	sess, err := session.Get(previewSessionName, c)
	if sess == nil {
		return nil, err
	}
	if err != nil {
		c.Logger().Debugf("discarding unreadable preview session: %v", err)
	}
	return sess, nil
}

func setPreviewSession(c echo.Context, ref string) error {
	sess, err := writablePreviewSession(c)
	if err != nil {
		return err
	}
	sess.Values[previewRefKey] = ref
	return sess.Save(c.Request(), c.Response())
}

func clearPreviewSession(c echo.Context) error {
	sess, err := writablePreviewSession(c)
	if err != nil {
		return err
	}
	delete(sess.Values, previewRefKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// handlePreview starts a preview session for a token issued by the CMS and
// sends the browser to the previewed document.
func (a *App) handlePreview(c echo.Context) error {
	ip := c.RealIP()
	if !a.previewLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"message": "Too many attempts"})
	}

	token := c.QueryParam("token")
	documentID := c.QueryParam("documentId")
	path, err := a.CMS.ResolvePreview(c.Request().Context(), token, documentID, a.Builder.LinkResolver(), "/")
	if err == nil && !isSitePath(path) {
		path = "/"
	}
	if err != nil {
		a.previewLimiter.Record(ip)
		c.Logger().Warnf("preview rejected: %v", err)
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
	}

	if err := setPreviewSession(c, token); err != nil {
		return err
	}
	noStore(c)
	return c.HTML(http.StatusOK, previewRedirectPage(path))
}

// handleExitPreview ends the preview session and returns to the listing.
func handleExitPreview(c echo.Context) error {
	if err := clearPreviewSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// isSitePath accepts only paths on this site, so a resolved link can never
// send the browser elsewhere.
func isSitePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}

// previewRedirectPage navigates with both a meta refresh and a script, so
// the session cookie set on this response is sent with the next request.
func previewRedirectPage(path string) string {
	js, _ := json.Marshal(path)
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"/>`)
	b.WriteString(`<meta http-equiv="Refresh" content="0; url=`)
	b.WriteString(html.EscapeString(path))
	b.WriteString(`"/><script>window.location.href = `)
	b.Write(js)
	b.WriteString(`</script></head><body></body></html>`)
	return b.String()
}
