package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/backend/backendtest"
	"github.com/hpungsan/quill/internal/cache"
	"github.com/hpungsan/quill/internal/db"
)

type testEnv struct {
	srv    *backendtest.Server
	client *backend.Client
	db     *sql.DB
	user   string
	opts   Options
}

// newTestEnv starts a fake backend with the given tables and a local cache.
func newTestEnv(t *testing.T, tables ...string) *testEnv {
	t.Helper()
	srv := backendtest.New(tables...)
	t.Cleanup(srv.Close)

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	client := backend.New(backend.Options{BaseURL: srv.URL, APIKey: "anon"})
	user := uuid.NewString()
	return &testEnv{
		srv:    srv,
		client: client,
		db:     database,
		user:   user,
		opts: Options{
			Backend: client,
			Cache:   cache.NewSQLiteStore(database),
			User:    StaticUser(user),
		},
	}
}

func allTables() []string {
	return []string{TableCreatorContents, TableProjects, TableBrainDumps, TableProfiles}
}

func ts(s string) string {
	return s + "T00:00:00.000000+00:00"
}

// scriptedBackend answers Select calls from a queue. Each reply may wait on
// a gate before returning, which lets tests reorder responses.
type scriptedBackend struct {
	replies chan scriptedReply
}

type scriptedReply struct {
	rows    any
	err     error
	started chan struct{} // closed when the call picks up this reply
	gate    chan struct{} // reply is returned once gate is closed
}

func (s *scriptedBackend) Select(ctx context.Context, table string, q backend.Query, dest any) error {
	r := <-s.replies
	if r.started != nil {
		close(r.started)
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return r.err
	}
	data, err := json.Marshal(r.rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *scriptedBackend) Insert(context.Context, string, any, any) error { return nil }
func (s *scriptedBackend) Update(context.Context, string, []backend.Filter, any, any) error {
	return nil
}
func (s *scriptedBackend) Delete(context.Context, string, []backend.Filter, any) error { return nil }
