package web

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/backend/backendtest"
	"github.com/hpungsan/quill/internal/db"
	"github.com/hpungsan/quill/internal/ops"
)

type testEnv struct {
	srv     *backendtest.Server
	db      *sql.DB
	user    string
	deps    Deps
	handler http.Handler
}

func allTables() []string {
	return []string{ops.TableCreatorContents, ops.TableProjects, ops.TableBrainDumps, ops.TableProfiles}
}

func setupTest(t *testing.T, tables ...string) *testEnv {
	t.Helper()
	srv := backendtest.New(tables...)
	t.Cleanup(srv.Close)

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	client := backend.New(backend.Options{BaseURL: srv.URL, APIKey: "anon"})
	user := uuid.NewString()
	opts := ops.Options{Backend: client, User: ops.StaticUser(user)}
	deps := Deps{
		Products:     ops.NewProducts(opts),
		BrainDumps:   ops.NewBrainDumps(opts),
		Projects:     ops.NewProjects(opts),
		Profiles:     ops.NewProfiles(opts),
		Handoffs:     ops.NewHandoffs(database),
		User:         opts.User,
		Connectivity: client.Connectivity(),
	}
	handler, err := NewHandler(deps, "test")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return &testEnv{srv: srv, db: database, user: user, deps: deps, handler: handler}
}

func (e *testEnv) request(method, target string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func stamp(day string) string {
	return day + "T00:00:00.000000+00:00"
}

// seedProduct adds a creator_contents row owned by the test user.
func (e *testEnv) seedProduct(title, typ, status string, words int, day string) string {
	id := uuid.NewString()
	e.srv.Seed(ops.TableCreatorContents, backendtest.Row{
		"id": id, "title": title, "type": typ, "status": status, "user_id": e.user,
		"metadata": map[string]any{"wordCount": words}, "updated_at": stamp(day), "created_at": stamp(day),
	})
	return id
}

// --- HandleProducts ---

func TestHandleProducts_ListsWithProgress(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.seedProduct("Field Guide", "ebook", "draft", 2000, "2026-01-02")
	e.seedProduct("Launch Post", "Blog Post", "published", 900, "2026-01-01")

	rec := e.request("GET", "/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "Field Guide", "Launch Post", "eBook", "20%", "Published", "100%"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestHandleProducts_Empty(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No products found") {
		t.Error("expected empty state message")
	}
}

func TestHandleProducts_HtmxReturnsContentOnly(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.seedProduct("htmx-product", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("GET", "/products", nil, "HX-Request", "true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "htmx-product") {
		t.Error("htmx response should contain product data")
	}
}

func TestHandleProducts_JSON(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.seedProduct("A", "ebook", "draft", 2000, "2026-01-02")
	e.seedProduct("B", "course", "in_progress", 0, "2026-01-01")

	rec := e.request("GET", "/products?type=course", nil, "Accept", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Items []ops.ProductView `json:"items"`
		Stats ops.Stats         `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "B" {
		t.Fatalf("items = %+v, want only B", resp.Items)
	}
	if resp.Stats.Total != 2 {
		t.Errorf("stats.total = %d, want 2 (stats cover the unfiltered list)", resp.Stats.Total)
	}
}

func TestHandleProducts_SchemaMissingPanel(t *testing.T) {
	e := setupTest(t, ops.TableProfiles)

	rec := e.request("GET", "/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Database setup required") {
		t.Error("expected schema-missing panel")
	}
	if !strings.Contains(body, "row-level security") {
		t.Error("expected remediation text")
	}
}

func TestHandleProducts_ErrorPanelKeepsRetry(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.srv.Fail(ops.TableCreatorContents, backendtest.Failure{Status: 500, Body: `{"message":"boom"}`})

	rec := e.request("GET", "/products", nil)
	body := rec.Body.String()
	if !strings.Contains(body, "Could not load") {
		t.Error("expected error panel")
	}
	if !strings.Contains(body, `action="/products/refresh"`) {
		t.Error("expected retry form")
	}
	if strings.Contains(body, "No products found") {
		t.Error("empty state should not show alongside an error")
	}
}

func TestHandleProducts_ErrorJSON(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.srv.Fail(ops.TableCreatorContents, backendtest.Failure{Status: 500, Body: `{"message":"boom"}`})

	rec := e.request("GET", "/products", nil, "Accept", "application/json")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"INTERNAL"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleProducts_NoUser(t *testing.T) {
	e := setupTest(t, allTables()...)
	opts := ops.Options{Backend: backend.New(backend.Options{BaseURL: e.srv.URL}), User: ops.StaticUser("")}
	deps := e.deps
	deps.Products = ops.NewProducts(opts)
	deps.Profiles = nil
	handler, err := NewHandler(deps, "test")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/products", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleProducts_Greeting(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.srv.Seed(ops.TableProfiles, backendtest.Row{"id": e.user, "display_name": "Sam"})

	rec := e.request("GET", "/products", nil)
	if !strings.Contains(rec.Body.String(), "Hi, Sam") {
		t.Error("expected greeting from profile")
	}
}

// --- HandleProduct ---

func TestHandleProduct_Detail(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Field Guide", "ebook", "draft", 2000, "2026-01-02")

	rec := e.request("GET", "/products/creator_contents/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Field Guide", "eBook", "2,000", "Continue at brain-dump"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestHandleProduct_NotFound(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/products/creator_contents/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `href="/products"`) {
		t.Error("expected back link to the list")
	}
}

func TestHandleProduct_InvalidIDMakesNoRequest(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/products/creator_contents/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if n := e.srv.TotalRequests(); n != 0 {
		t.Errorf("backend requests = %d, want 0", n)
	}
}

func TestHandleProduct_LegacySource(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := uuid.NewString()
	e.srv.Seed(ops.TableProjects, backendtest.Row{"id": id, "title": "Old Book", "status": "complete", "user_id": e.user, "updated_at": stamp("2026-01-01")})

	rec := e.request("GET", "/products/projects/"+id, nil, "Accept", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var view ops.ProductView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Source != "projects" || view.Progress != 100 {
		t.Errorf("view = %+v", view)
	}
}

// --- Delete ---

func TestHandleProductDelete_ConfirmPage(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Doomed", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("GET", "/products/creator_contents/"+id+"/delete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Delete product?") || !strings.Contains(body, `name="confirm" value="true"`) {
		t.Error("expected confirmation form")
	}
}

func TestHandleProductDelete_RequiresConfirm(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Doomed", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("POST", "/products/creator_contents/"+id+"/delete", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(e.srv.Rows(ops.TableCreatorContents)) != 1 {
		t.Error("row should still exist without confirmation")
	}
}

func TestHandleProductDelete_Confirmed(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Doomed", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("POST", "/products/creator_contents/"+id+"/delete", url.Values{"confirm": {"true"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/products" {
		t.Errorf("Location = %q, want /products", loc)
	}
	if len(e.srv.Rows(ops.TableCreatorContents)) != 0 {
		t.Error("row should be deleted")
	}
}

func TestHandleProductDelete_HtmxRedirect(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Doomed", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("POST", "/products/creator_contents/"+id+"/delete", url.Values{"confirm": {"true"}}, "HX-Request", "true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/products" {
		t.Errorf("HX-Redirect = %q", got)
	}
}

// --- Continue ---

func TestHandleProductContinue_WritesHandoff(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Field Guide", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("POST", "/products/creator_contents/"+id+"/continue", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	want := "/workflow/ebook?product=" + id + "&step=brain-dump"
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}

	handoff, err := e.deps.Handoffs.Peek(context.Background(), e.user)
	if err != nil || handoff == nil {
		t.Fatalf("Peek: %v, %v", handoff, err)
	}
	if handoff.ProductID != id || handoff.Step != "brain-dump" {
		t.Errorf("handoff = %+v", handoff)
	}
}

func TestHandleProductContinue_PublishedOpensEditor(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := e.seedProduct("Done", "ebook", "published", 0, "2026-01-01")

	rec := e.request("POST", "/products/creator_contents/"+id+"/continue", url.Values{}, "Accept", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var handoff ops.Handoff
	if err := json.Unmarshal(rec.Body.Bytes(), &handoff); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if handoff.Path != "/products/creator_contents/"+id+"?edit=true" {
		t.Errorf("path = %q", handoff.Path)
	}
}

// --- Refresh ---

func TestRefresh_Redirects(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.seedProduct("A", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("POST", "/products/refresh", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := len(e.deps.Products.State().Items); got != 1 {
		t.Errorf("items after refresh = %d, want 1", got)
	}
}

func TestRefresh_ErrorShowsRemediation(t *testing.T) {
	e := setupTest(t, ops.TableProfiles)

	rec := e.request("POST", "/brain-dumps/refresh", url.Values{}, "Accept", "application/json")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "SCHEMA_MISSING") || !strings.Contains(body, "remediation") {
		t.Errorf("body = %s", body)
	}
}

// --- Brain dumps ---

func TestHandleBrainDump_RendersMarkdown(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := uuid.NewString()
	e.srv.Seed(ops.TableBrainDumps, backendtest.Row{
		"id": id, "title": "Ideas", "status": "draft", "user_id": e.user, "updated_at": stamp("2026-01-01"),
		"content": "# Big idea\n\nSee [notes](https://example.com).\n\n<script>alert(1)</script>\n",
	})

	rec := e.request("GET", "/brain-dumps/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Big idea</h1>") {
		t.Error("expected rendered heading")
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("raw HTML must not be rendered")
	}
	if !strings.Contains(body, "<li>Big idea</li>") {
		t.Error("expected outline entry")
	}
}

func TestHandleBrainDumps_List(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.srv.Seed(ops.TableBrainDumps, backendtest.Row{"id": uuid.NewString(), "title": "Morning pages", "user_id": e.user, "updated_at": stamp("2026-01-01")})

	rec := e.request("GET", "/brain-dumps", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Morning pages") {
		t.Error("expected brain dump title")
	}
}

func TestHandleBrainDumpDelete(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := uuid.NewString()
	e.srv.Seed(ops.TableBrainDumps, backendtest.Row{"id": id, "title": "Gone", "user_id": e.user, "updated_at": stamp("2026-01-01")})

	rec := e.request("POST", "/brain-dumps/"+id+"/delete", url.Values{"confirm": {"true"}}, "Accept", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// --- Projects ---

func seedProject(e *testEnv) string {
	id := uuid.NewString()
	e.srv.Seed(ops.TableProjects, backendtest.Row{
		"id": id, "title": "Handbook", "status": "in_progress", "user_id": e.user, "updated_at": stamp("2026-01-01"),
		"content": map[string]any{"sections": []any{
			map[string]any{"id": "s1", "title": "Intro", "content": "Hello **world**"},
			map[string]any{"id": "s2", "title": "Body", "content": "More text"},
		}},
	})
	return id
}

func TestHandleProject_Sections(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := seedProject(e)

	rec := e.request("GET", "/projects/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>world</strong>") || !strings.Contains(body, `id="section-s2"`) {
		t.Error("expected rendered sections")
	}
}

func TestHandleProjectCompose(t *testing.T) {
	e := setupTest(t, allTables()...)
	id := seedProject(e)

	rec := e.request("GET", "/projects/"+id+"/compose", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# Handbook") || !strings.Contains(body, "Intro") {
		t.Errorf("body = %s", body)
	}
}

func TestHandleProjects_NotFoundPanel(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/projects/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Back to the list") {
		t.Error("expected not-found panel")
	}
}

// --- Middleware ---

func TestServer_SecurityHeadersAndCompression(t *testing.T) {
	e := setupTest(t, allTables()...)
	e.seedProduct("Compressed", "ebook", "draft", 0, "2026-01-01")

	rec := e.request("GET", "/products", nil, "Accept-Encoding", "gzip")
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers")
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if !strings.Contains(string(plain), "Compressed") {
		t.Error("expected product in decompressed body")
	}
}

func TestServer_RootRedirects(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/products" {
		t.Errorf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestServer_StaticCSS(t *testing.T) {
	e := setupTest(t, allTables()...)

	rec := e.request("GET", "/static/app.css", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- Helpers ---

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-2500, "-2,500"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
