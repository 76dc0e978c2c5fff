package ops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/quill/internal/content"
)

// timestamp decodes the backend's timestamp renderings. Columns declared
// without a time zone come back without an offset and are read as UTC.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type contentRow struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Type        string           `json:"type"`
	ContentType string           `json:"content_type"`
	Status      string           `json:"status"`
	ProjectID   *string          `json:"project_id"`
	Metadata    content.Metadata `json:"metadata"`
	CreatedAt   timestamp        `json:"created_at"`
	UpdatedAt   timestamp        `json:"updated_at"`
	UserID      string           `json:"user_id"`
}

func (r contentRow) product() content.Product {
	typ := r.Type
	if typ == "" {
		typ = r.ContentType
	}
	return content.Product{
		ID:        r.ID,
		Title:     r.Title,
		Type:      content.NormalizeType(typ),
		Status:    defaultStatus(r.Status),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
		UserID:    r.UserID,
		ProjectID: r.ProjectID,
		Metadata:  r.Metadata,
		Source:    content.SourceCreatorContents,
	}
}

type projectRow struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Type        string                 `json:"type"`
	Status      string                 `json:"status"`
	Content     content.ProjectContent `json:"content"`
	CreatedAt   timestamp              `json:"created_at"`
	UpdatedAt   timestamp              `json:"updated_at"`
	UserID      string                 `json:"user_id"`
}

func (r projectRow) project() content.Project {
	return content.Project{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      defaultStatus(r.Status),
		Content:     r.Content,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
		UserID:      r.UserID,
	}
}

// product presents a legacy project as a product. Projects predate typed
// products and were all e-books, so an untyped row is an ebook.
func (r projectRow) product() content.Product {
	typ := content.TypeEbook
	if strings.TrimSpace(r.Type) != "" {
		typ = content.NormalizeType(r.Type)
	}
	meta := content.Metadata{}
	if words := sectionWords(r.Content.Sections); words > 0 {
		meta["wordCount"] = words
	}
	if r.Description != "" {
		meta["summary"] = r.Description
	}
	return content.Product{
		ID:        r.ID,
		Title:     r.Title,
		Type:      typ,
		Status:    defaultStatus(r.Status),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
		UserID:    r.UserID,
		Metadata:  meta,
		Source:    content.SourceProjects,
	}
}

type brainDumpRow struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Content     string           `json:"content"`
	Status      string           `json:"status"`
	ProjectID   *string          `json:"project_id"`
	Metadata    content.Metadata `json:"metadata"`
	CreatedAt   timestamp        `json:"created_at"`
	UpdatedAt   timestamp        `json:"updated_at"`
	UserID      string           `json:"user_id"`
}

func (r brainDumpRow) brainDump() content.BrainDump {
	return content.BrainDump{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		Status:      defaultStatus(r.Status),
		ProjectID:   r.ProjectID,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
		UserID:      r.UserID,
		Metadata:    r.Metadata,
	}
}

func defaultStatus(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return content.StatusDraft
	}
	return s
}

func sectionWords(sections []content.Section) int {
	n := 0
	for _, s := range sections {
		n += len(strings.Fields(s.Content))
	}
	return n
}
