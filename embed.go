package spacetraveling

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EmbeddedAssets contains the assets shipped with the site:
// site.js, site.css, images/logo.svg
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// embeddedFiles lists the assets served from EmbeddedAssets. Anything else
// under /public/ comes from the static directory.
var embeddedFiles = []string{"site.js", "site.css", "images/logo.svg"}

func embeddedFS() fs.FS {
	sub, _ := fs.Sub(EmbeddedAssets, "embedded")
	return sub
}

func (a *App) mountAssets() {
	e := a.Echo
	handler := http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS())))
	for _, name := range embeddedFiles {
		e.GET("/public/"+name, echo.WrapHandler(handler))
	}
	e.Static("/public", a.staticDir)
}
