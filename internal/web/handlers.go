package web

import (
	"context"
	"net/http"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	products   *ops.Products
	brainDumps *ops.BrainDumps
	projects   *ops.Projects
	profiles   *ops.Profiles
	handoffs   *ops.Handoffs
	user       ops.UserFunc
	conn       *backend.Connectivity
	renderer   *Renderer
}

func (h *Handlers) page(ctx context.Context, title, nav string) PageData {
	pd := PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
	}
	if h.conn != nil {
		pd.Offline = !h.conn.Connected()
	}
	if h.profiles != nil {
		if p, err := h.profiles.Current(ctx); err == nil {
			pd.Greeting = p.Name()
		}
	}
	return pd
}

func panel(entity string, loading bool, err error) ListPanel {
	return ListPanel{
		Entity:      entity,
		Error:       errors.Message(err),
		Remediation: errors.Remediation(err),
		Loading:     loading,
	}
}

// HandleProducts handles GET /products: the merged product list.
func (h *Handlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	_, err := h.products.Load(r.Context())
	if errors.Is(err, errors.ErrAuthRequired) {
		h.renderer.renderError(w, r, err)
		return
	}
	state := h.products.State()

	q := r.URL.Query()
	filter := ops.FilterInput{Type: q.Get("type"), Bucket: q.Get("bucket"), Query: q.Get("q")}
	items := ops.FilterProducts(state.Items, filter)

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"items": ops.ViewProducts(items),
			"stats": ops.Summarize(state.Items),
		})
		return
	}

	h.renderer.renderPage(w, r, "products", ProductsPageData{
		PageData:  h.page(r.Context(), "Products", "products"),
		ListPanel: panel("products", state.Loading, err),
		Items:     ops.ViewProducts(items),
		Stats:     ops.Summarize(state.Items),
		Filter:    filter,
	})
}

// HandleProduct handles GET /products/{source}/{id}.
func (h *Handlers) HandleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetFrom(r.Context(), r.PathValue("source"), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/products")
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, ops.ViewProduct(p))
		return
	}

	h.renderer.renderPage(w, r, "product", ProductPageData{
		PageData: h.page(r.Context(), p.Title, "products"),
		Product:  ops.ViewProduct(p),
		Resume:   content.ResumeTarget(p),
		Summary:  renderMarkdown(p.Metadata.Summary()),
	})
}

// HandleProductDeleteConfirm handles GET /products/{source}/{id}/delete.
func (h *Handlers) HandleProductDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetFrom(r.Context(), r.PathValue("source"), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/products")
		return
	}
	back := "/products/" + p.Source + "/" + p.ID
	h.renderConfirm(w, r, "products", "product", p.Title, back+"/delete", back)
}

// HandleProductDelete handles POST /products/{source}/{id}/delete.
func (h *Handlers) HandleProductDelete(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}
	id := r.PathValue("id")
	if err := h.products.Delete(r.Context(), r.PathValue("source"), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.deleted(w, r, id, "/products")
}

// HandleProductContinue handles POST /products/{source}/{id}/continue. It
// rewrites the handoff record and sends the browser to the resume path.
func (h *Handlers) HandleProductContinue(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetFrom(r.Context(), r.PathValue("source"), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	user := ""
	if h.user != nil {
		user = h.user()
	}
	handoff, err := h.handoffs.Continue(r.Context(), user, p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", handoff.Path)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, handoff)
		return
	}
	http.Redirect(w, r, handoff.Path, http.StatusSeeOther)
}

// HandleBrainDumps handles GET /brain-dumps.
func (h *Handlers) HandleBrainDumps(w http.ResponseWriter, r *http.Request) {
	_, err := h.brainDumps.Load(r.Context())
	if errors.Is(err, errors.ErrAuthRequired) {
		h.renderer.renderError(w, r, err)
		return
	}
	state := h.brainDumps.State()

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{"items": state.Items})
		return
	}

	h.renderer.renderPage(w, r, "brain-dumps", BrainDumpsPageData{
		PageData:  h.page(r.Context(), "Brain Dumps", "brain-dumps"),
		ListPanel: panel("brain-dumps", state.Loading, err),
		Items:     state.Items,
	})
}

// HandleBrainDump handles GET /brain-dumps/{id}.
func (h *Handlers) HandleBrainDump(w http.ResponseWriter, r *http.Request) {
	d, err := h.brainDumps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/brain-dumps")
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, d)
		return
	}

	h.renderer.renderPage(w, r, "brain-dump", BrainDumpPageData{
		PageData:     h.page(r.Context(), d.Title, "brain-dumps"),
		Dump:         d,
		Stats:        content.AnalyzeDump(d.Content),
		RenderedHTML: renderMarkdown(d.Content),
	})
}

// HandleBrainDumpDeleteConfirm handles GET /brain-dumps/{id}/delete.
func (h *Handlers) HandleBrainDumpDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	d, err := h.brainDumps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/brain-dumps")
		return
	}
	back := "/brain-dumps/" + d.ID
	h.renderConfirm(w, r, "brain-dumps", "brain dump", d.Title, back+"/delete", back)
}

// HandleBrainDumpDelete handles POST /brain-dumps/{id}/delete.
func (h *Handlers) HandleBrainDumpDelete(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}
	id := r.PathValue("id")
	if err := h.brainDumps.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.deleted(w, r, id, "/brain-dumps")
}

// HandleProjects handles GET /projects.
func (h *Handlers) HandleProjects(w http.ResponseWriter, r *http.Request) {
	_, err := h.projects.Load(r.Context())
	if errors.Is(err, errors.ErrAuthRequired) {
		h.renderer.renderError(w, r, err)
		return
	}
	state := h.projects.State()

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{"items": state.Items})
		return
	}

	h.renderer.renderPage(w, r, "projects", ProjectsPageData{
		PageData:  h.page(r.Context(), "Projects", "projects"),
		ListPanel: panel("projects", state.Loading, err),
		Items:     state.Items,
	})
}

// HandleProject handles GET /projects/{id}.
func (h *Handlers) HandleProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/projects")
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, p)
		return
	}

	sections := make([]RenderedSection, 0, len(p.Content.Sections))
	for _, s := range p.Content.Sections {
		sections = append(sections, RenderedSection{Section: s, HTML: renderMarkdown(s.Content)})
	}
	h.renderer.renderPage(w, r, "project", ProjectPageData{
		PageData: h.page(r.Context(), p.Title, "projects"),
		Project:  p,
		Sections: sections,
	})
}

// HandleProjectCompose handles GET /projects/{id}/compose: the sections as one document.
func (h *Handlers) HandleProjectCompose(w http.ResponseWriter, r *http.Request) {
	out, err := h.projects.Compose(r.Context(), ops.ComposeInput{
		ID:     r.PathValue("id"),
		Format: r.URL.Query().Get("format"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.BundleText))
}

// HandleProjectDeleteConfirm handles GET /projects/{id}/delete.
func (h *Handlers) HandleProjectDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderMissing(w, r, err, "/projects")
		return
	}
	back := "/projects/" + p.ID
	h.renderConfirm(w, r, "projects", "project", p.Title, back+"/delete", back)
}

// HandleProjectDelete handles POST /projects/{id}/delete.
func (h *Handlers) HandleProjectDelete(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}
	id := r.PathValue("id")
	if err := h.projects.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.deleted(w, r, id, "/projects")
}

// refreshHandler handles POST /{entity}/refresh, the retry action of list pages.
func (h *Handlers) refreshHandler(entity string, refresh func(context.Context) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := refresh(r.Context())
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		if isHTMX(r) {
			w.Header().Set("HX-Redirect", "/"+entity)
			w.WriteHeader(http.StatusOK)
			return
		}
		if wantsJSON(r) {
			renderJSON(w, http.StatusOK, map[string]any{"refreshed": true, "count": n})
			return
		}
		http.Redirect(w, r, "/"+entity, http.StatusSeeOther)
	}
}

// renderMissing shows the not-found panel for absent records and the
// error page for everything else.
func (h *Handlers) renderMissing(w http.ResponseWriter, r *http.Request, err error, back string) {
	if !errors.Is(err, errors.ErrNotFound) || wantsJSON(r) {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPageStatus(w, r, http.StatusNotFound, "notfound", NotFoundPageData{
		PageData: h.page(r.Context(), "Not found", back[1:]),
		Message:  errors.Message(err),
		Back:     back,
	})
}

func (h *Handlers) renderConfirm(w http.ResponseWriter, r *http.Request, nav, kind, name, action, back string) {
	h.renderer.renderPage(w, r, "confirm", ConfirmPageData{
		PageData: h.page(r.Context(), "Delete "+kind, nav),
		Kind:     kind,
		Name:     name,
		Action:   action,
		Back:     back,
	})
}

// confirmed requires confirm=true on destructive requests.
func (h *Handlers) confirmed(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return false
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return false
	}
	return true
}

// deleted answers a successful delete.
func (h *Handlers) deleted(w http.ResponseWriter, r *http.Request, id, list string) {
	// HTMX request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", list)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	http.Redirect(w, r, list, http.StatusSeeOther)
}
