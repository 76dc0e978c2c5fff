package ops

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hpungsan/quill/internal/backend/backendtest"
	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

func seedProject(t *testing.T, env *testEnv) string {
	t.Helper()
	id := uuid.NewString()
	env.srv.Seed(TableProjects, backendtest.Row{
		"id": id, "title": "Field Guide", "description": "Notes on birds", "status": "in_progress", "user_id": env.user,
		"content": map[string]any{
			"sections": []any{
				map[string]any{"id": "s1", "title": "Intro", "content": "Hello"},
				map[string]any{"id": "s2", "title": "Owls", "content": ""},
			},
			"theme": "dark",
		},
	})
	return id
}

func TestProjects_CreateAssignsSectionIDs(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	projects := NewProjects(env.opts)

	created, err := projects.Create(context.Background(), ProjectInput{
		Title:    "Guide",
		Sections: []content.Section{{Title: "One", Content: "a"}, {ID: "keep", Title: "Two"}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sections := created.Content.Sections
	if len(sections) != 2 {
		t.Fatalf("len(sections) = %d, want 2", len(sections))
	}
	if !ValidID(sections[0].ID) {
		t.Errorf("generated section id %q is not a UUID", sections[0].ID)
	}
	if sections[1].ID != "keep" {
		t.Errorf("sections[1].ID = %q, want keep", sections[1].ID)
	}
	if created.Status != "draft" {
		t.Errorf("Status = %q, want draft", created.Status)
	}
}

func TestProjects_AppendSection(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)
	projects := NewProjects(env.opts)
	ctx := context.Background()

	tests := []struct {
		section string
		text    string
		wantID  string
		wantHit string
	}{
		{"intro", "More words", "s1", "Intro"},
		{"s2", "Hoot", "s2", "Owls"},
	}
	for _, tt := range tests {
		out, err := projects.AppendSection(ctx, AppendInput{ID: id, Section: tt.section, Content: tt.text})
		if err != nil {
			t.Fatalf("AppendSection(%q) failed: %v", tt.section, err)
		}
		if out.SectionID != tt.wantID || out.SectionHit != tt.wantHit || out.Created {
			t.Errorf("AppendSection(%q) = %+v, want {%s %s created:false}", tt.section, out, tt.wantID, tt.wantHit)
		}
	}

	p, err := projects.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := p.Content.Sections[0].Content; got != "Hello\n\nMore words" {
		t.Errorf("Intro = %q", got)
	}
	if got := p.Content.Sections[1].Content; got != "Hoot" {
		t.Errorf("Owls = %q", got)
	}
	// Unknown document keys survive the rewrite.
	if got := string(p.Content.Extra["theme"]); got != `"dark"` {
		t.Errorf("theme = %s, want \"dark\"", got)
	}
}

func TestProjects_AppendSection_ReadsStoredRow(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)
	projects := NewProjects(env.opts)
	ctx := context.Background()

	// Warm memory and the record cache.
	if _, err := projects.Get(ctx, id); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Another writer adds a section behind the cache's back.
	doc := map[string]any{"sections": []any{
		map[string]any{"id": "s1", "title": "Intro", "content": "Hello"},
		map[string]any{"id": "s2", "title": "Owls", "content": ""},
		map[string]any{"id": "s3", "title": "Hawks", "content": "Sharp eyes"},
	}}
	if err := env.client.Update(ctx, TableProjects, byID(id, env.user), map[string]any{"content": doc}, nil); err != nil {
		t.Fatalf("backend update failed: %v", err)
	}

	out, err := projects.AppendSection(ctx, AppendInput{ID: id, Section: "Notes", Content: "more", Create: true})
	if err != nil {
		t.Fatalf("AppendSection failed: %v", err)
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}

	stored, err := projects.fresh(ctx, id)
	if err != nil {
		t.Fatalf("fresh read failed: %v", err)
	}
	var titles []string
	for _, s := range stored.Content.Sections {
		titles = append(titles, s.Title)
	}
	if got := strings.Join(titles, ","); got != "Intro,Owls,Hawks,Notes" {
		t.Errorf("stored sections = %s, want Intro,Owls,Hawks,Notes", got)
	}
}

func TestProjects_AppendSection_Missing(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)
	projects := NewProjects(env.opts)
	ctx := context.Background()

	_, err := projects.AppendSection(ctx, AppendInput{ID: id, Section: "Eagles", Content: "x"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
	if !strings.Contains(err.Error(), "Owls") {
		t.Errorf("error %q does not list the available sections", err)
	}

	out, err := projects.AppendSection(ctx, AppendInput{ID: id, Section: "Eagles", Content: "Soar", Create: true})
	if err != nil {
		t.Fatalf("AppendSection with Create failed: %v", err)
	}
	if !out.Created || !ValidID(out.SectionID) {
		t.Errorf("out = %+v, want a created section with a UUID", out)
	}
}

func TestProjects_AppendSection_Validation(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	projects := NewProjects(env.opts)
	ctx := context.Background()

	tests := []struct {
		name  string
		input AppendInput
	}{
		{"no section", AppendInput{ID: uuid.NewString(), Section: "", Content: "x"}},
		{"blank content", AppendInput{ID: uuid.NewString(), Section: "a", Content: " "}},
		{"bad id", AppendInput{ID: "nope", Section: "a", Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := projects.AppendSection(ctx, tt.input); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}
	if n := env.srv.TotalRequests(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestProjects_ComposeMarkdown(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)

	out, err := NewProjects(env.opts).Compose(context.Background(), ComposeInput{ID: id})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	want := "# Field Guide\n\nNotes on birds\n\n## Intro\n\nHello\n\n## Owls\n"
	if out.BundleText != want {
		t.Errorf("BundleText = %q, want %q", out.BundleText, want)
	}
	if out.PartsCount != 2 || out.WordCount != 1 || out.BundleChars != len(out.BundleText) {
		t.Errorf("counts = {parts:%d words:%d chars:%d}", out.PartsCount, out.WordCount, out.BundleChars)
	}
}

func TestProjects_ComposeJSON(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)

	out, err := NewProjects(env.opts).Compose(context.Background(), ComposeInput{ID: id, Format: "json"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	var bundle ComposeBundle
	if err := json.Unmarshal([]byte(out.BundleText), &bundle); err != nil {
		t.Fatalf("bundle is not JSON: %v", err)
	}
	if bundle.Title != "Field Guide" {
		t.Errorf("Title = %q", bundle.Title)
	}
	if len(bundle.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(bundle.Parts))
	}
	if bundle.Parts[0].Text != "Hello" || bundle.Parts[0].Chars != 5 {
		t.Errorf("Parts[0] = %+v", bundle.Parts[0])
	}
}

func TestProjects_ComposeBadFormat(t *testing.T) {
	env := newTestEnv(t, allTables()...)

	_, err := NewProjects(env.opts).Compose(context.Background(), ComposeInput{ID: uuid.NewString(), Format: "pdf"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestProjects_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, allTables()...)
	id := seedProject(t, env)
	projects := NewProjects(env.opts)
	ctx := context.Background()

	title := "Field Guide, 2nd ed."
	updated, err := projects.Update(ctx, " "+id, ProjectPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != title || len(updated.Content.Sections) != 2 {
		t.Errorf("updated = {%q sections:%d}", updated.Title, len(updated.Content.Sections))
	}

	if err := projects.Delete(ctx, id+" "); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := projects.Delete(ctx, id); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete: err = %v, want NOT_FOUND", err)
	}
}
