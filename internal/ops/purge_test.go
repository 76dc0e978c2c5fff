package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/quill/internal/db"
)

func TestPurgeCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	for key, at := range map[string]time.Time{
		"products:list:u1":    now.Add(-time.Hour),
		"brain_dumps:list:u1": now,
		"projects:list:u1":    now,
	} {
		if err := db.Put(ctx, env.db, db.Record{Namespace: db.NamespaceCache, Key: key, Value: []byte("[]"), WrittenAt: at}); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}

	age := 30 * time.Minute
	tests := []struct {
		name        string
		input       PurgeInput
		wantPurged  int
		wantMessage string
	}{
		{"older than", PurgeInput{OlderThan: &age}, 1, "Purged 1 cache entry (written more than 30m0s ago)"},
		{"prefix", PurgeInput{Prefix: "projects:"}, 1, `Purged 1 cache entry matching "projects:"`},
		{"everything", PurgeInput{}, 1, "Purged 1 cache entry"},
		{"nothing left", PurgeInput{}, 0, "No cache entries to purge"},
	}
	for _, tt := range tests {
		out, err := PurgeCache(ctx, env.db, tt.input)
		if err != nil {
			t.Fatalf("%s: PurgeCache failed: %v", tt.name, err)
		}
		if out.Purged != tt.wantPurged || out.Message != tt.wantMessage {
			t.Errorf("%s: got {%d %q}, want {%d %q}", tt.name, out.Purged, out.Message, tt.wantPurged, tt.wantMessage)
		}
	}
}

func TestPurgeCache_PrefixAndAge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	entries := map[string]time.Time{
		"products:list:u1": now.Add(-time.Hour),
		"projects:list:u1": now.Add(-time.Hour),
		"products:abc:u1":  now,
	}
	for key, at := range entries {
		if err := db.Put(ctx, env.db, db.Record{Namespace: db.NamespaceCache, Key: key, Value: []byte("[]"), WrittenAt: at}); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}

	age := 30 * time.Minute
	out, err := PurgeCache(ctx, env.db, PurgeInput{Prefix: "products:", OlderThan: &age})
	if err != nil {
		t.Fatalf("PurgeCache failed: %v", err)
	}
	want := `Purged 1 cache entry matching "products:" (written more than 30m0s ago)`
	if out.Purged != 1 || out.Message != want {
		t.Errorf("got {%d %q}, want {1 %q}", out.Purged, out.Message, want)
	}

	for key, kept := range map[string]bool{
		"products:list:u1": false,
		"projects:list:u1": true,
		"products:abc:u1":  true,
	} {
		rec, err := db.Get(ctx, env.db, db.NamespaceCache, key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}
		if (rec != nil) != kept {
			t.Errorf("%s kept = %v, want %v", key, rec != nil, kept)
		}
	}
}
