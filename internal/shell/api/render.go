package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex   = "index"
	pageDetail  = "detail"
	pageResults = "results"
	pageError   = "error"
)

// pages maps a page name to its template, each parsed together with the
// shared layout.
type pages map[string]*template.Template

type errorPage struct {
	Status int
	Text   string
}

func loadPages() (pages, error) {
	p := make(pages)
	for _, name := range []string{pageIndex, pageDetail, pageResults, pageError} {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

// render executes the page into a buffer first so a template failure still
// produces a clean 500.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("failed to write page", "page", name, "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, status int) {
	h.render(w, status, pageError, errorPage{Status: status, Text: http.StatusText(status)})
}
