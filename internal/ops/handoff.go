package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/db"
	"github.com/hpungsan/quill/internal/errors"
)

// Handoff is the context a workflow screen needs to resume a product.
type Handoff struct {
	ProductID string          `json:"product_id"`
	Source    string          `json:"source"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	Flow      string          `json:"flow"`
	Step      string          `json:"step"`
	Path      string          `json:"path"`
	Product   content.Product `json:"product"`
	WrittenAt time.Time       `json:"written_at"`
}

// Handoffs stores one single-use handoff per user in the local database.
type Handoffs struct {
	db  *sql.DB
	now func() time.Time
}

// NewHandoffs creates the store.
func NewHandoffs(database *sql.DB) *Handoffs {
	return &Handoffs{db: database, now: time.Now}
}

// Continue computes where p resumes and overwrites the user's handoff with it.
func (h *Handoffs) Continue(ctx context.Context, userID string, p content.Product) (*Handoff, error) {
	if userID == "" {
		return nil, errors.NewAuthRequired("")
	}
	target := content.ResumeTarget(p)
	handoff := &Handoff{
		ProductID: p.ID,
		Source:    p.Source,
		Title:     p.Title,
		Type:      p.Type,
		Flow:      target.Flow,
		Step:      target.Step,
		Path:      target.Path,
		Product:   p,
		WrittenAt: h.now().UTC(),
	}

	data, err := json.Marshal(handoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	// Each continue action replaces whatever was left behind.
	if err := db.Put(ctx, h.db, db.Record{
		Namespace: db.NamespaceHandoff,
		Key:       userID,
		Value:     data,
		WrittenAt: handoff.WrittenAt,
	}); err != nil {
		return nil, err
	}
	return handoff, nil
}

// Consume returns the pending handoff and deletes it. Returns nil when there is none.
func (h *Handoffs) Consume(ctx context.Context, userID string) (*Handoff, error) {
	rec, err := db.Take(ctx, h.db, db.NamespaceHandoff, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	var handoff Handoff
	if err := json.Unmarshal(rec.Value, &handoff); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &handoff, nil
}

// Peek returns the pending handoff without consuming it.
func (h *Handoffs) Peek(ctx context.Context, userID string) (*Handoff, error) {
	rec, err := db.Get(ctx, h.db, db.NamespaceHandoff, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	var handoff Handoff
	if err := json.Unmarshal(rec.Value, &handoff); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &handoff, nil
}
