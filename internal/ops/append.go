package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

// AppendInput contains parameters for the AppendSection operation.
type AppendInput struct {
	ID      string // project id
	Section string // section title (case-insensitive) or section id
	Content string // text to append
	Create  bool   // add the section at the end when it does not exist
}

// AppendOutput contains the result of the AppendSection operation.
type AppendOutput struct {
	ID         string `json:"id"`
	SectionID  string `json:"section_id"`
	SectionHit string `json:"section_hit"` // actual title matched
	Created    bool   `json:"created"`     // true if the section was added
}

// AppendSection adds text to the end of one section of a project and writes
// the whole document back.
func (p *Projects) AppendSection(ctx context.Context, input AppendInput) (*AppendOutput, error) {
	if strings.TrimSpace(input.Section) == "" {
		return nil, errors.NewInvalidRequest("section is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}

	// The whole document is written back, so start from the stored row
	project, err := p.fresh(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	doc := project.Content
	sections := make([]content.Section, len(doc.Sections))
	copy(sections, doc.Sections)

	idx := findSection(sections, input.Section)
	created := false
	if idx < 0 {
		if !input.Create {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("section %q not found; available: %v", input.Section, sectionTitles(sections)))
		}
		sections = append(sections, content.Section{Title: strings.TrimSpace(input.Section)})
		sections = withSectionIDs(sections)
		idx = len(sections) - 1
		created = true
	}

	existing := strings.TrimRight(sections[idx].Content, "\n")
	if existing == "" {
		sections[idx].Content = input.Content
	} else {
		sections[idx].Content = existing + "\n\n" + input.Content
	}
	doc.Sections = sections

	updated, err := p.Update(ctx, project.ID, ProjectPatch{Content: &doc})
	if err != nil {
		return nil, err
	}
	hit := updated.Content.Sections[idx]
	return &AppendOutput{
		ID:         updated.ID,
		SectionID:  hit.ID,
		SectionHit: hit.Title,
		Created:    created,
	}, nil
}

func findSection(sections []content.Section, ref string) int {
	ref = strings.TrimSpace(ref)
	for i, s := range sections {
		if s.ID == ref {
			return i
		}
	}
	for i, s := range sections {
		if strings.EqualFold(strings.TrimSpace(s.Title), ref) {
			return i
		}
	}
	return -1
}

func sectionTitles(sections []content.Section) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Title)
	}
	return out
}
