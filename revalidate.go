package spacetraveling

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// revalidateRequest is the CMS webhook payload. Only the secret matters.
type revalidateRequest struct {
	Secret string `json:"secret"`
	Type   string `json:"type"`
}

// handleRevalidate drops every rendered page and pre-renders again in the
// background, so published edits show up without a restart.
func (a *App) handleRevalidate(c echo.Context) error {
	var req revalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Secret == "" {
		req.Secret = c.QueryParam("secret")
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(a.Config.RevalidateSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid secret"})
	}

	if err := a.Cache.Invalidate(c.Request().Context()); err != nil {
		return err
	}
	c.Logger().Infof("revalidating after %q webhook", req.Type)

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		if err := a.Prerender(context.Background()); err != nil {
			a.Echo.Logger.Errorf("revalidate: %v", err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]bool{"revalidated": true})
}
