package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
)

func TestHandoffs_ContinueOverwritesAndConsumesOnce(t *testing.T) {
	env := newTestEnv(t)
	handoffs := NewHandoffs(env.db)
	ctx := context.Background()

	first := content.Product{ID: "p1", Source: content.SourceCreatorContents, Type: "ebook", Status: "draft"}
	second := content.Product{ID: "p2", Source: content.SourceCreatorContents, Type: "blog", Status: "in_progress"}

	if _, err := handoffs.Continue(ctx, env.user, first); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	h, err := handoffs.Continue(ctx, env.user, second)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if h.Step != "outline" || h.Path != "/workflow/blog?product=p2&step=outline" {
		t.Errorf("handoff = {%q %q}", h.Step, h.Path)
	}

	peeked, err := handoffs.Peek(ctx, env.user)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if peeked == nil || peeked.ProductID != "p2" {
		t.Fatalf("Peek = %+v, want p2", peeked)
	}

	got, err := handoffs.Consume(ctx, env.user)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got == nil || got.ProductID != "p2" || got.Flow != "blog" {
		t.Fatalf("Consume = %+v, want p2 in the blog flow", got)
	}

	again, err := handoffs.Consume(ctx, env.user)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if again != nil {
		t.Errorf("second Consume = %+v, want nil", again)
	}
}

func TestHandoffs_PerUser(t *testing.T) {
	env := newTestEnv(t)
	handoffs := NewHandoffs(env.db)
	ctx := context.Background()

	if _, err := handoffs.Continue(ctx, "u1", content.Product{ID: "p1"}); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	got, err := handoffs.Consume(ctx, "u2")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got != nil {
		t.Errorf("u2 consumed u1's handoff: %+v", got)
	}
}

func TestHandoffs_RequiresUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewHandoffs(env.db).Continue(context.Background(), "", content.Product{ID: "p1"})
	if !errors.Is(err, errors.ErrAuthRequired) {
		t.Errorf("err = %v, want AUTH_REQUIRED", err)
	}
}
