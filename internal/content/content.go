// Package content defines quill's records (products, brain dumps, projects)
// and the pure rules derived from them: type normalization, categories,
// progress, status badges and workflow resumption.
package content

import (
	"encoding/json"
	"time"
)

// Source tables a product can be read from.
const (
	SourceCreatorContents = "creator_contents"
	SourceProjects        = "projects"
)

// Product types.
const (
	TypeEbook     = "ebook"
	TypeBlog      = "blog"
	TypeSocial    = "social"
	TypeVideo     = "video"
	TypeCourse    = "course"
	TypeBrainDump = "brain_dump"
	TypeOther     = "other"
)

// Statuses used by products, brain dumps and projects.
const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusPublished  = "published"
	StatusGenerating = "generating"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusAnalyzed   = "analyzed"
)

// Metadata is the open key-value bag attached to products and brain dumps.
type Metadata map[string]any

// Product is a content artifact tracked through a status lifecycle.
// Identity for display purposes is (Source, ID): the two source tables
// are not guaranteed to have disjoint ids.
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
	ProjectID *string   `json:"project_id,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Source    string    `json:"source"`
}

// Key returns the display identity of the product.
func (p Product) Key() string {
	return p.Source + "/" + p.ID
}

// BrainDump is unstructured user input pending or post analysis.
type BrainDump struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	ProjectID   *string   `json:"project_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      string    `json:"user_id"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// Project is a legacy project record with nested section content.
type Project struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Content     ProjectContent `json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	UserID      string         `json:"user_id"`
}

// Section is one ordered part of a project's content.
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ProjectContent is the nested JSON document stored in projects.content.
// Keys other than "sections" are kept verbatim in Extra.
type ProjectContent struct {
	Sections []Section
	Extra    map[string]json.RawMessage
}

// UnmarshalJSON accepts an object, null, or a JSON string holding an object
// (older rows stored the document as text).
func (pc *ProjectContent) UnmarshalJSON(data []byte) error {
	*pc = ProjectContent{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if sections, ok := raw["sections"]; ok {
		if err := json.Unmarshal(sections, &pc.Sections); err != nil {
			return err
		}
		delete(raw, "sections")
	}
	if len(raw) > 0 {
		pc.Extra = raw
	}
	return nil
}

// MarshalJSON writes the sections back together with the preserved keys.
func (pc ProjectContent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(pc.Extra)+1)
	for k, v := range pc.Extra {
		out[k] = v
	}
	sections := pc.Sections
	if sections == nil {
		sections = []Section{}
	}
	out["sections"] = sections
	return json.Marshal(out)
}

// Metadata accessors. Rows written by different app versions use
// camelCase or snake_case keys, so both are read.

// WordCount returns metadata.wordCount (or word_count), 0 when absent.
func (m Metadata) WordCount() int {
	for _, key := range []string{"wordCount", "word_count"} {
		if n, ok := toInt(m[key]); ok {
			return n
		}
	}
	return 0
}

// WorkflowStep returns metadata.workflow_step (or workflowStep).
func (m Metadata) WorkflowStep() string {
	return m.firstString("workflow_step", "workflowStep")
}

// Summary returns metadata.summary.
func (m Metadata) Summary() string {
	return m.firstString("summary")
}

// CoverImage returns metadata.coverImage (or cover_image).
func (m Metadata) CoverImage() string {
	return m.firstString("coverImage", "cover_image")
}

func (m Metadata) firstString(keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy so callers can add keys without mutating shared state.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
