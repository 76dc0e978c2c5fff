package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title    string
	Version  string
	Nav      string // active nav item: "products", "brain-dumps", "projects"
	Greeting string
	Offline  bool
}

// ListPanel is the state shared by every list page.
type ListPanel struct {
	Entity      string // route segment, e.g. "products"
	Error       string
	Remediation string
	Loading     bool
}

// ProductsPageData is the template data for the product list.
type ProductsPageData struct {
	PageData
	ListPanel
	Items  []ops.ProductView
	Stats  ops.Stats
	Filter ops.FilterInput
}

// ProductPageData is the template data for a product detail page.
type ProductPageData struct {
	PageData
	Product ops.ProductView
	Resume  content.Resume
	Summary template.HTML
}

// BrainDumpsPageData is the template data for the brain dump list.
type BrainDumpsPageData struct {
	PageData
	ListPanel
	Items []content.BrainDump
}

// BrainDumpPageData is the template data for a brain dump detail page.
type BrainDumpPageData struct {
	PageData
	Dump         content.BrainDump
	Stats        content.DumpStats
	RenderedHTML template.HTML
}

// ProjectsPageData is the template data for the project list.
type ProjectsPageData struct {
	PageData
	ListPanel
	Items []content.Project
}

// RenderedSection is a project section with its markdown rendered.
type RenderedSection struct {
	content.Section
	HTML template.HTML
}

// ProjectPageData is the template data for a project detail page.
type ProjectPageData struct {
	PageData
	Project  content.Project
	Sections []RenderedSection
}

// ConfirmPageData is the template data for a delete confirmation.
type ConfirmPageData struct {
	PageData
	Kind   string // "product", "brain dump", "project"
	Name   string
	Action string // form action
	Back   string
}

// NotFoundPageData is the template data for a missing record.
type NotFoundPageData struct {
	PageData
	Message string
	Back    string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode  int
	Message     string
	Remediation string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       zerolog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log zerolog.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatTime":  formatTime,
		"formatCount": formatCount,
		"words":       func(m content.Metadata) int { return m.WordCount() },
		"short":       shortID,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html", "panels.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"products":    "products.html",
		"product":     "product.html",
		"brain-dumps": "brain_dumps.html",
		"brain-dump":  "brain_dump.html",
		"projects":    "projects.html",
		"project":     "project.html",
		"confirm":     "confirm.html",
		"notfound":    "notfound.html",
		"error":       "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}, nil
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isHTMX(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error().Err(err).Str("template", name).Msg("template execution error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var qErr *errors.QuillError
	if !stderrors.As(err, &qErr) {
		qErr = errors.NewInternal(err)
	}

	status := qErr.Status
	message := qErr.Message
	remediation := errors.Remediation(err)

	// HTMX request: return HTML fragment
	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		body := map[string]any{
			"code":    string(qErr.Code),
			"message": message,
			"status":  status,
		}
		if remediation != "" {
			body["remediation"] = remediation
		}
		renderJSON(w, status, map[string]any{"error": body})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode:  status,
		Message:     message,
		Remediation: remediation,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// goldmark drops raw HTML by default, so the output is safe to embed.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// formatTime formats a timestamp as "2006-01-02 15:04" UTC. Zero times render as "-".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatCount formats an integer with comma thousands separators.
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// shortID truncates an id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
