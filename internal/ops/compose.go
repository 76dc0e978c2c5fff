package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

// ComposeInput contains parameters for the Compose operation.
type ComposeInput struct {
	ID     string // project id
	Format string // "markdown" (default) or "json"
}

// ComposeOutput contains the result of the Compose operation.
type ComposeOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	BundleText  string `json:"bundle_text"`
	BundleChars int    `json:"bundle_chars"`
	PartsCount  int    `json:"parts_count"`
	WordCount   int    `json:"word_count"`
}

// ComposePart is one section in the JSON bundle.
type ComposePart struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}

// ComposeBundle is the JSON format output structure.
type ComposeBundle struct {
	Title string        `json:"title"`
	Parts []ComposePart `json:"parts"`
}

// Compose assembles a project's sections into one document.
func (p *Projects) Compose(ctx context.Context, input ComposeInput) (*ComposeOutput, error) {
	format := input.Format
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "json" {
		return nil, errors.NewInvalidRequest("format must be one of: markdown, json")
	}

	project, err := p.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	var text string
	if format == "json" {
		text, err = composeJSON(project)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	} else {
		text = composeMarkdown(project)
	}

	return &ComposeOutput{
		ID:          project.ID,
		Title:       project.Title,
		BundleText:  text,
		BundleChars: len(text),
		PartsCount:  len(project.Content.Sections),
		WordCount:   sectionWords(project.Content.Sections),
	}, nil
}

func composeMarkdown(project content.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", displayTitle(project.Title, project.ID))
	if project.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", project.Description)
	}
	for _, s := range project.Content.Sections {
		fmt.Fprintf(&b, "\n## %s\n", displayTitle(s.Title, s.ID))
		if body := strings.TrimSpace(s.Content); body != "" {
			fmt.Fprintf(&b, "\n%s\n", body)
		}
	}
	return b.String()
}

func composeJSON(project content.Project) (string, error) {
	bundle := ComposeBundle{
		Title: project.Title,
		Parts: make([]ComposePart, 0, len(project.Content.Sections)),
	}
	for _, s := range project.Content.Sections {
		bundle.Parts = append(bundle.Parts, ComposePart{
			ID:    s.ID,
			Title: s.Title,
			Text:  s.Content,
			Chars: len(s.Content),
		})
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func displayTitle(title, id string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return id
}
