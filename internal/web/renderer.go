package web

import (
	"embed"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/flosch/pongo2/v6"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*
var TemplateFS embed.FS

type Renderer struct {
	TemplateSet *pongo2.TemplateSet
}

// NewRenderer loads templates from the embedded filesystem. If templateDir is non-empty, templates are instead read from disk on every render, for editing during development.
func NewRenderer(templateDir string) (*Renderer, error) {
	var fsys fs.FS
	if templateDir != "" {
		fsys = os.DirFS(templateDir)
	} else {
		sub, err := fs.Sub(TemplateFS, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	set := pongo2.NewSet("templates", pongo2.NewFSLoader(fsys))
	set.Debug = templateDir != ""
	return &Renderer{TemplateSet: set}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	var ctx pongo2.Context
	if data != nil {
		var ok bool
		ctx, ok = data.(pongo2.Context)
		if !ok {
			return errors.New("no pongo2.Context data was passed")
		}
	}

	t, err := r.TemplateSet.FromFile(name)
	if err != nil {
		return err
	}
	return t.ExecuteWriter(ctx, w)
}
