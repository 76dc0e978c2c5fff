package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

// BrainDumpInput contains parameters for creating a brain dump.
type BrainDumpInput struct {
	Title       string // required
	Description string
	Content     string
	Status      string // default: "draft"
	ProjectID   *string
	Metadata    content.Metadata
}

// BrainDumpPatch contains the fields to change. Nil fields are left alone.
type BrainDumpPatch struct {
	Title       *string
	Description *string
	Content     *string
	Status      *string
	ProjectID   *string
	Metadata    content.Metadata // replaces the whole bag when non-nil
}

// BrainDumps is the brain_dumps collection. Word, link and outline stats are
// recomputed into metadata whenever the content is written.
type BrainDumps struct {
	*Collection[content.BrainDump]
}

// NewBrainDumps creates the collection.
func NewBrainDumps(opts Options) *BrainDumps {
	return &BrainDumps{
		Collection: NewCollection(Spec[content.BrainDump]{
			Entity: TableBrainDumps,
			Sources: []Source[content.BrainDump]{
				{Table: TableBrainDumps, Select: selectRows(TableBrainDumps, brainDumpRow.brainDump)},
			},
			ID:        func(d content.BrainDump) string { return d.ID },
			Table:     func(content.BrainDump) string { return TableBrainDumps },
			UpdatedAt: func(d content.BrainDump) time.Time { return d.UpdatedAt },
		}, opts),
	}
}

// Create inserts a brain dump.
func (b *BrainDumps) Create(ctx context.Context, input BrainDumpInput) (content.BrainDump, error) {
	var zero content.BrainDump
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return zero, b.fail("create", errors.NewInvalidRequest("title is required"))
	}
	user, err := b.opts.user()
	if err != nil {
		return zero, b.fail("create", err)
	}

	row := map[string]any{
		"title":       title,
		"description": input.Description,
		"content":     input.Content,
		"status":      defaultStatus(input.Status),
		"metadata":    content.AnalyzeDump(input.Content).Apply(input.Metadata),
		"user_id":     user,
	}
	if pid := cleanOptionalString(input.ProjectID); pid != nil {
		row["project_id"] = *pid
	}

	var rows []brainDumpRow
	if err := b.opts.Backend.Insert(ctx, TableBrainDumps, row, &rows); err != nil {
		return zero, b.fail("create", err)
	}
	if len(rows) == 0 {
		return zero, b.fail("create", errors.NewInternal(nil))
	}

	created := rows[0].brainDump()
	b.added(ctx, user, created)
	return created, nil
}

// Update patches a brain dump.
func (b *BrainDumps) Update(ctx context.Context, id string, patch BrainDumpPatch) (content.BrainDump, error) {
	var zero content.BrainDump
	id, err := cleanID(id)
	if err != nil {
		return zero, b.fail("update", err)
	}
	user, err := b.opts.user()
	if err != nil {
		return zero, b.fail("update", err)
	}

	fields := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return zero, b.fail("update", errors.NewInvalidRequest("title must not be empty"))
		}
		fields["title"] = title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Status != nil {
		fields["status"] = defaultStatus(*patch.Status)
	}
	if patch.ProjectID != nil {
		if pid := cleanOptionalString(patch.ProjectID); pid != nil {
			fields["project_id"] = *pid
		} else {
			fields["project_id"] = nil
		}
	}
	meta := patch.Metadata
	if patch.Content != nil {
		fields["content"] = *patch.Content
		if meta == nil {
			// Keep the other metadata keys; only the stats change.
			existing, err := b.Get(ctx, id)
			if err != nil {
				return zero, b.fail("update", err)
			}
			meta = existing.Metadata
		}
		meta = content.AnalyzeDump(*patch.Content).Apply(meta)
	}
	if meta != nil {
		fields["metadata"] = meta
	}
	if len(fields) == 0 {
		return zero, b.fail("update", errors.NewInvalidRequest("nothing to update"))
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	var rows []brainDumpRow
	if err := b.opts.Backend.Update(ctx, TableBrainDumps, byID(id, user), fields, &rows); err != nil {
		return zero, b.fail("update", err)
	}

	updated := rows[0].brainDump()
	b.replaced(ctx, user, updated)
	return updated, nil
}

// Delete removes a brain dump.
func (b *BrainDumps) Delete(ctx context.Context, id string) error {
	id, err := cleanID(id)
	if err != nil {
		return b.fail("delete", err)
	}
	user, err := b.opts.user()
	if err != nil {
		return b.fail("delete", err)
	}
	if err := b.opts.Backend.Delete(ctx, TableBrainDumps, byID(id, user), nil); err != nil {
		return b.fail("delete", err)
	}
	b.removed(ctx, user, TableBrainDumps, id)
	return nil
}
