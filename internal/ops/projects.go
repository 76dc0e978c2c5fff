package ops

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

// ProjectInput contains parameters for creating a project.
type ProjectInput struct {
	Title       string // required
	Description string
	Status      string // default: "draft"
	Sections    []content.Section
}

// ProjectPatch contains the fields to change. Nil fields are left alone.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *string
	Content     *content.ProjectContent // full-document overwrite
}

// Projects is the legacy projects collection.
type Projects struct {
	*Collection[content.Project]
}

// NewProjects creates the collection.
func NewProjects(opts Options) *Projects {
	return &Projects{
		Collection: NewCollection(Spec[content.Project]{
			Entity: TableProjects,
			Sources: []Source[content.Project]{
				{Table: TableProjects, Select: selectRows(TableProjects, projectRow.project)},
			},
			ID:        func(p content.Project) string { return p.ID },
			Table:     func(content.Project) string { return TableProjects },
			UpdatedAt: func(p content.Project) time.Time { return p.UpdatedAt },
		}, opts),
	}
}

// Create inserts a project. Sections without an id get one.
func (p *Projects) Create(ctx context.Context, input ProjectInput) (content.Project, error) {
	var zero content.Project
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return zero, p.fail("create", errors.NewInvalidRequest("title is required"))
	}
	user, err := p.opts.user()
	if err != nil {
		return zero, p.fail("create", err)
	}

	row := map[string]any{
		"title":       title,
		"description": input.Description,
		"status":      defaultStatus(input.Status),
		"content":     content.ProjectContent{Sections: withSectionIDs(input.Sections)},
		"user_id":     user,
	}

	var rows []projectRow
	if err := p.opts.Backend.Insert(ctx, TableProjects, row, &rows); err != nil {
		return zero, p.fail("create", err)
	}
	if len(rows) == 0 {
		return zero, p.fail("create", errors.NewInternal(nil))
	}

	created := rows[0].project()
	p.added(ctx, user, created)
	return created, nil
}

// Update patches a project. Content replaces the whole document.
func (p *Projects) Update(ctx context.Context, id string, patch ProjectPatch) (content.Project, error) {
	var zero content.Project
	id, err := cleanID(id)
	if err != nil {
		return zero, p.fail("update", err)
	}
	user, err := p.opts.user()
	if err != nil {
		return zero, p.fail("update", err)
	}

	fields := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return zero, p.fail("update", errors.NewInvalidRequest("title must not be empty"))
		}
		fields["title"] = title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Status != nil {
		fields["status"] = defaultStatus(*patch.Status)
	}
	if patch.Content != nil {
		doc := *patch.Content
		doc.Sections = withSectionIDs(doc.Sections)
		fields["content"] = doc
	}
	if len(fields) == 0 {
		return zero, p.fail("update", errors.NewInvalidRequest("nothing to update"))
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	var rows []projectRow
	if err := p.opts.Backend.Update(ctx, TableProjects, byID(id, user), fields, &rows); err != nil {
		return zero, p.fail("update", err)
	}

	updated := rows[0].project()
	p.replaced(ctx, user, updated)
	return updated, nil
}

// Delete removes a project.
func (p *Projects) Delete(ctx context.Context, id string) error {
	id, err := cleanID(id)
	if err != nil {
		return p.fail("delete", err)
	}
	user, err := p.opts.user()
	if err != nil {
		return p.fail("delete", err)
	}
	if err := p.opts.Backend.Delete(ctx, TableProjects, byID(id, user), nil); err != nil {
		return p.fail("delete", err)
	}
	p.removed(ctx, user, TableProjects, id)
	return nil
}

func withSectionIDs(sections []content.Section) []content.Section {
	out := make([]content.Section, len(sections))
	for i, s := range sections {
		if strings.TrimSpace(s.ID) == "" {
			s.ID = uuid.NewString()
		}
		out[i] = s
	}
	return out
}
