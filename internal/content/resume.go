package content

import (
	"fmt"
	"net/url"
)

// Resume describes where the "continue" action sends the user.
// Step is empty when the product opens in the editor instead of the workflow.
type Resume struct {
	Path string `json:"path"`
	Flow string `json:"flow,omitempty"`
	Step string `json:"step,omitempty"`
}

// ResumeTarget picks the workflow step a product should resume at.
//
// Finished products open in edit mode. Otherwise a recorded workflow step wins,
// then status and type decide: generation in flight resumes at writing, short-form
// types resume at the outline, everything else starts from the brain dump.
func ResumeTarget(p Product) Resume {
	status := normalizeStatus(p.Status)
	if status == StatusComplete || status == StatusPublished {
		return Resume{Path: fmt.Sprintf("/products/%s/%s?edit=true", url.PathEscape(p.Source), url.PathEscape(p.ID))}
	}

	typ := NormalizeType(p.Type)
	flow := typ
	if typ == TypeEbook || typ == TypeBrainDump || typ == TypeOther {
		flow = TypeEbook
	}

	step := p.Metadata.WorkflowStep()
	if step == "" {
		switch {
		case status == StatusGenerating || status == StatusProcessing:
			step = "ebook-writing"
		case typ == TypeBlog || typ == TypeSocial || typ == TypeVideo:
			step = "outline"
		default:
			step = "brain-dump"
		}
	}

	q := url.Values{}
	q.Set("step", step)
	q.Set("product", p.ID)
	return Resume{
		Path: "/workflow/" + flow + "?" + q.Encode(),
		Flow: flow,
		Step: step,
	}
}
