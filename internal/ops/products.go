package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

// ProductInput contains parameters for creating a product.
type ProductInput struct {
	Title     string           // required
	Type      string           // normalized; default: "other"
	Status    string           // default: "draft"
	ProjectID *string          // optional link to a project
	Metadata  content.Metadata // optional
}

// ProductPatch contains the fields to change. Nil fields are left alone.
type ProductPatch struct {
	Title     *string
	Type      *string
	Status    *string
	ProjectID *string
	Metadata  content.Metadata // replaces the whole bag when non-nil
}

// Products is the merged product list over creator_contents and the legacy
// projects table, in that priority.
type Products struct {
	*Collection[content.Product]
}

// NewProducts reads creator_contents first, then projects.
func NewProducts(opts Options) *Products {
	return newProducts("products", opts, []Source[content.Product]{
		{Table: TableCreatorContents, Select: selectRows(TableCreatorContents, contentRow.product)},
		{Table: TableProjects, Select: selectRows(TableProjects, projectRow.product)},
	})
}

// NewCreatorContents is the product collection over creator_contents only.
func NewCreatorContents(opts Options) *Products {
	return newProducts("creator_contents", opts, []Source[content.Product]{
		{Table: TableCreatorContents, Select: selectRows(TableCreatorContents, contentRow.product)},
	})
}

func newProducts(entity string, opts Options, sources []Source[content.Product]) *Products {
	return &Products{
		Collection: NewCollection(Spec[content.Product]{
			Entity:    entity,
			Sources:   sources,
			ID:        func(p content.Product) string { return p.ID },
			Table:     func(p content.Product) string { return p.Source },
			UpdatedAt: func(p content.Product) time.Time { return p.UpdatedAt },
		}, opts),
	}
}

// Create inserts a product into creator_contents.
func (p *Products) Create(ctx context.Context, input ProductInput) (content.Product, error) {
	var zero content.Product
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return zero, p.fail("create", errors.NewInvalidRequest("title is required"))
	}
	user, err := p.opts.user()
	if err != nil {
		return zero, p.fail("create", err)
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = content.StatusDraft
	}
	row := map[string]any{
		"title":   title,
		"type":    content.NormalizeType(input.Type),
		"status":  status,
		"user_id": user,
	}
	if pid := cleanOptionalString(input.ProjectID); pid != nil {
		row["project_id"] = *pid
	}
	if input.Metadata != nil {
		row["metadata"] = input.Metadata
	}

	var rows []contentRow
	if err := p.opts.Backend.Insert(ctx, TableCreatorContents, row, &rows); err != nil {
		return zero, p.fail("create", err)
	}
	if len(rows) == 0 {
		return zero, p.fail("create", errors.NewInternal(nil))
	}

	created := rows[0].product()
	p.added(ctx, user, created)
	return created, nil
}

// Update patches a product in the table it came from. Legacy project rows
// carry no type or metadata, so only title and status can change there.
func (p *Products) Update(ctx context.Context, source, id string, patch ProductPatch) (content.Product, error) {
	var zero content.Product
	id, err := cleanID(id)
	if err != nil {
		return zero, p.fail("update", err)
	}
	user, err := p.opts.user()
	if err != nil {
		return zero, p.fail("update", err)
	}
	source = productSource(source)

	fields := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return zero, p.fail("update", errors.NewInvalidRequest("title must not be empty"))
		}
		fields["title"] = title
	}
	if patch.Status != nil {
		fields["status"] = defaultStatus(*patch.Status)
	}
	if source == content.SourceProjects {
		if patch.Type != nil || patch.Metadata != nil || patch.ProjectID != nil {
			return zero, p.fail("update", errors.NewInvalidRequest("legacy project products only support title and status changes"))
		}
	} else {
		if patch.Type != nil {
			fields["type"] = content.NormalizeType(*patch.Type)
		}
		if patch.Metadata != nil {
			fields["metadata"] = patch.Metadata
		}
		if patch.ProjectID != nil {
			if pid := cleanOptionalString(patch.ProjectID); pid != nil {
				fields["project_id"] = *pid
			} else {
				fields["project_id"] = nil
			}
		}
	}
	if len(fields) == 0 {
		return zero, p.fail("update", errors.NewInvalidRequest("nothing to update"))
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	var updated content.Product
	if source == content.SourceProjects {
		var rows []projectRow
		if err := p.opts.Backend.Update(ctx, TableProjects, byID(id, user), fields, &rows); err != nil {
			return zero, p.fail("update", err)
		}
		updated = rows[0].product()
	} else {
		var rows []contentRow
		if err := p.opts.Backend.Update(ctx, TableCreatorContents, byID(id, user), fields, &rows); err != nil {
			return zero, p.fail("update", err)
		}
		updated = rows[0].product()
	}

	p.replaced(ctx, user, updated)
	return updated, nil
}

// Delete removes a product from the table it came from.
func (p *Products) Delete(ctx context.Context, source, id string) error {
	id, err := cleanID(id)
	if err != nil {
		return p.fail("delete", err)
	}
	user, err := p.opts.user()
	if err != nil {
		return p.fail("delete", err)
	}
	source = productSource(source)

	if err := p.opts.Backend.Delete(ctx, source, byID(id, user), nil); err != nil {
		return p.fail("delete", err)
	}
	p.removed(ctx, user, source, id)
	return nil
}

// productSource maps an optional source to a table; mutations default to creator_contents.
func productSource(source string) string {
	if strings.TrimSpace(source) == content.SourceProjects {
		return content.SourceProjects
	}
	return content.SourceCreatorContents
}

