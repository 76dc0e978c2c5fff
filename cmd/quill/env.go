package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/cache"
	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/db"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/mcp"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/refresher"
	"github.com/hpungsan/quill/internal/web"
)

// sessionKey is the single slot in the session namespace.
const sessionKey = "current"

// env holds everything the commands share.
type env struct {
	cfg    *config.Config
	db     *sql.DB
	client *backend.Client
	store  cache.Store
	log    zerolog.Logger

	products   *ops.Products
	brainDumps *ops.BrainDumps
	projects   *ops.Projects
	profiles   *ops.Profiles
	handoffs   *ops.Handoffs
}

// newEnv wires the backend client, cache store and collections from cfg.
// A stored session is restored so commands run as the signed-in user.
func newEnv(database *sql.DB, cfg *config.Config, log zerolog.Logger) (*env, error) {
	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout(),
		Logger:  log,
	})

	var store cache.Store
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		rs, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		store = cache.NewSQLiteStore(database)
	}

	e := &env{cfg: cfg, db: database, client: client, store: store, log: log}
	opts := ops.Options{
		Backend:      client,
		Cache:        store,
		User:         e.userID,
		Logger:       log,
		CacheOptions: []cache.Option{cache.WithTTL(cfg.CacheTTL())},
	}
	e.products = ops.NewProducts(opts)
	e.brainDumps = ops.NewBrainDumps(opts)
	e.projects = ops.NewProjects(opts)
	e.profiles = ops.NewProfiles(opts)
	e.handoffs = ops.NewHandoffs(database)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()
	if err := e.restoreSession(ctx); err != nil {
		log.Warn().Err(err).Msg("stored session could not be restored")
	}
	return e, nil
}

// Close releases the cache store when it holds its own connection.
func (e *env) Close() error {
	if c, ok := e.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// userID is the session user, falling back to the configured user id.
func (e *env) userID() string {
	if s := e.client.Session(); s != nil && s.User.ID != "" {
		return s.User.ID
	}
	return e.cfg.UserID
}

// restoreSession installs the stored session, refreshing it when expired.
func (e *env) restoreSession(ctx context.Context) error {
	rec, err := db.Get(ctx, e.db, db.NamespaceSession, sessionKey)
	if err != nil || rec == nil {
		return err
	}
	var s backend.Session
	if err := json.Unmarshal(rec.Value, &s); err != nil {
		return errors.NewInternal(err)
	}
	e.client.SetSession(&s)

	if !s.Expired(time.Now()) {
		return nil
	}
	fresh, err := e.client.RefreshSession(ctx)
	if err != nil {
		return err
	}
	return e.saveSession(ctx, fresh)
}

func (e *env) saveSession(ctx context.Context, s *backend.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.Put(ctx, e.db, db.Record{
		Namespace: db.NamespaceSession,
		Key:       sessionKey,
		Value:     raw,
		WrittenAt: time.Now(),
	})
}

func (e *env) clearSession(ctx context.Context) error {
	e.client.SetSession(nil)
	return db.Delete(ctx, e.db, db.NamespaceSession, sessionKey)
}

func (e *env) mcpDeps() mcp.Deps {
	return mcp.Deps{
		Products:   e.products,
		BrainDumps: e.brainDumps,
		Projects:   e.projects,
		Handoffs:   e.handoffs,
		User:       e.userID,
	}
}

func (e *env) webDeps() web.Deps {
	return web.Deps{
		Products:     e.products,
		BrainDumps:   e.brainDumps,
		Projects:     e.projects,
		Profiles:     e.profiles,
		Handoffs:     e.handoffs,
		User:         e.userID,
		Connectivity: e.client.Connectivity(),
		Logger:       e.log,
	}
}

// refresher keeps the three lists warm while the web UI runs.
// Returns nil when background refresh is disabled.
func (e *env) refresher() *refresher.Refresher {
	interval := e.cfg.RefreshInterval()
	if interval <= 0 {
		return nil
	}
	return refresher.New(refresher.Options{
		Interval:  interval,
		Threshold: e.cfg.RefreshErrorThreshold,
		Window:    e.cfg.RefreshErrorWindow(),
		Logger:    e.log,
	},
		refresher.Task{Name: "products", Refresh: discard(e.products.Refresh)},
		refresher.Task{Name: "brain_dumps", Refresh: discard(e.brainDumps.Refresh)},
		refresher.Task{Name: "projects", Refresh: discard(e.projects.Refresh)},
	)
}

func discard[T any](fn func(context.Context) ([]T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

// clearCaches drops the current user's cached lists and records.
func (e *env) clearCaches(ctx context.Context) {
	e.products.ClearCache(ctx)
	e.brainDumps.ClearCache(ctx)
	e.projects.ClearCache(ctx)
}
