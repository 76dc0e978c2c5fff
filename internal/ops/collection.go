package ops

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/cache"
	"github.com/hpungsan/quill/internal/errors"
)

// State is a snapshot of a collection.
type State[T any] struct {
	Items   []T    `json:"items"` // never nil
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"` // typed form of Error, for remediation text
}

// Source is one backend table feeding a collection.
type Source[T any] struct {
	Table  string
	Select func(ctx context.Context, b Backend, q backend.Query) ([]T, error)
}

// Spec describes how a collection identifies and orders its records.
type Spec[T any] struct {
	// Entity names the list cache ("products", "brain_dumps", ...).
	Entity string
	// Sources in priority order. Earlier sources win ties and lookups.
	Sources []Source[T]
	ID      func(T) string
	// Table reports which source a record was read from.
	Table     func(T) string
	UpdatedAt func(T) time.Time
}

// Collection holds one entity's in-memory list and its caches.
//
// Overlapping refreshes are ordered by start: each refresh takes a
// generation number when it begins and its result is applied only if no
// later-started refresh (or local mutation) has been applied meanwhile.
type Collection[T any] struct {
	spec   Spec[T]
	opts   Options
	rank   map[string]int
	list   *cache.Cache[[]T]
	record *cache.Cache[T]
	log    zerolog.Logger

	mu       sync.Mutex
	owner    string // user the items belong to
	complete bool   // items are a full read for owner
	items    []T
	inflight int
	errMsg   string
	err      error
	started  uint64
	applied  uint64
}

// NewCollection creates an empty collection.
func NewCollection[T any](spec Spec[T], opts Options) *Collection[T] {
	rank := make(map[string]int, len(spec.Sources))
	for i, s := range spec.Sources {
		rank[s.Table] = i
	}
	copts := append([]cache.Option{cache.WithLogger(opts.Logger)}, opts.CacheOptions...)
	return &Collection[T]{
		spec:   spec,
		opts:   opts,
		rank:   rank,
		list:   cache.New[[]T](opts.Cache, copts...),
		record: cache.New[T](opts.Cache, copts...),
		log:    opts.Logger.With().Str("entity", spec.Entity).Logger(),
		items:  []T{},
	}
}

// State returns a snapshot. Items is a copy and never nil.
func (c *Collection[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T]{
		Items:   items,
		Loading: c.inflight > 0,
		Error:   c.errMsg,
		Err:     c.err,
	}
}

// Load serves the list from a fresh cache entry, falling back to Refresh.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	user, err := c.opts.user()
	if err != nil {
		c.setError(err)
		return nil, err
	}
	if cached, ok := c.list.Get(ctx, cache.ListKey(c.spec.Entity, user)); ok {
		if cached == nil {
			cached = []T{}
		}
		c.mu.Lock()
		c.started++
		c.applied = c.started
		c.owner = user
		c.complete = true
		c.items = cached
		c.errMsg, c.err = "", nil
		c.mu.Unlock()
		return c.State().Items, nil
	}
	return c.Refresh(ctx)
}

// Refresh bypasses the cache, re-reads every source and replaces the list.
// On failure it returns nil and the error, records Error and keeps the items.
func (c *Collection[T]) Refresh(ctx context.Context) ([]T, error) {
	user, err := c.opts.user()
	if err != nil {
		c.setError(err)
		return nil, err
	}

	c.mu.Lock()
	c.started++
	gen := c.started
	c.inflight++
	c.mu.Unlock()

	items, err := c.fetch(ctx, user)

	c.mu.Lock()
	c.inflight--
	if err != nil {
		if gen > c.applied {
			c.errMsg, c.err = errors.Message(err), err
		}
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("refresh failed")
		return nil, err
	}
	if gen < c.applied {
		// A newer result is already in place.
		current := make([]T, len(c.items))
		copy(current, c.items)
		c.mu.Unlock()
		return current, nil
	}
	c.items = items
	c.owner = user
	c.complete = true
	c.applied = gen
	c.errMsg, c.err = "", nil
	c.mu.Unlock()

	c.list.Set(ctx, cache.ListKey(c.spec.Entity, user), items)
	out := make([]T, len(items))
	copy(out, items)
	return out, nil
}

// fetch queries every source and merges the rows. A source whose table is
// missing is skipped as long as another source answered.
func (c *Collection[T]) fetch(ctx context.Context, user string) ([]T, error) {
	q := backend.Query{
		Filters:    ownedBy(user),
		Order:      "updated_at",
		Descending: true,
	}

	var (
		merged    []T
		seen      = map[string]bool{}
		answered  int
		schemaErr error
	)
	for _, src := range c.spec.Sources {
		rows, err := src.Select(ctx, c.opts.Backend, q)
		if err != nil {
			if errors.Is(err, errors.ErrSchemaMissing) {
				c.log.Warn().Str("table", src.Table).Msg("source table missing, skipped")
				if schemaErr == nil {
					schemaErr = err
				}
				continue
			}
			return nil, err
		}
		answered++
		for _, item := range rows {
			key := c.spec.Table(item) + "/" + c.spec.ID(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, item)
		}
	}
	if answered == 0 && schemaErr != nil {
		return nil, schemaErr
	}

	c.sort(merged)
	if merged == nil {
		merged = []T{}
	}
	return merged, nil
}

// sort orders by updated_at desc, then source priority, then id.
func (c *Collection[T]) sort(items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		ta, tb := c.spec.UpdatedAt(a), c.spec.UpdatedAt(b)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		ra, rb := c.rank[c.spec.Table(a)], c.rank[c.spec.Table(b)]
		if ra != rb {
			return ra < rb
		}
		return c.spec.ID(a) < c.spec.ID(b)
	})
}

// Get finds a record by id: memory, then the record cache, then each source
// in priority order (first match wins). Non-UUID ids fail without a request.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.get(ctx, id, c.spec.Sources)
}

// GetFrom is Get restricted to one source table.
func (c *Collection[T]) GetFrom(ctx context.Context, table, id string) (T, error) {
	for _, src := range c.spec.Sources {
		if src.Table == table {
			return c.get(ctx, id, []Source[T]{src})
		}
	}
	var zero T
	return zero, errors.NewInvalidRequest("unknown source: " + table)
}

func (c *Collection[T]) get(ctx context.Context, id string, sources []Source[T]) (T, error) {
	var zero T
	id, err := cleanID(id)
	if err != nil {
		return zero, err
	}
	user, err := c.opts.user()
	if err != nil {
		return zero, err
	}

	allowed := make(map[string]bool, len(sources))
	for _, s := range sources {
		allowed[s.Table] = true
	}

	if item, ok := c.fromMemory(user, id, allowed); ok {
		return item, nil
	}

	for _, src := range sources {
		if item, ok := c.record.Get(ctx, c.recordKey(src.Table, id, user)); ok {
			return item, nil
		}
	}
	return c.fetchOne(ctx, user, id, sources)
}

// fresh reads a record straight from the backend, skipping memory and the
// record cache. Read-modify-write paths use it so a stale copy is never
// written back.
func (c *Collection[T]) fresh(ctx context.Context, id string) (T, error) {
	var zero T
	id, err := cleanID(id)
	if err != nil {
		return zero, err
	}
	user, err := c.opts.user()
	if err != nil {
		return zero, err
	}
	return c.fetchOne(ctx, user, id, c.spec.Sources)
}

// fetchOne queries sources in priority order and caches the first match.
func (c *Collection[T]) fetchOne(ctx context.Context, user, id string, sources []Source[T]) (T, error) {
	var zero T
	var firstErr error
	for _, src := range sources {
		rows, err := src.Select(ctx, c.opts.Backend, backend.Query{Filters: byID(id, user), Limit: 1})
		if err != nil {
			if errors.Is(err, errors.ErrSchemaMissing) && len(sources) > 1 {
				c.log.Warn().Str("table", src.Table).Msg("source table missing, skipped")
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(rows) > 0 {
			c.record.Set(ctx, c.recordKey(src.Table, id, user), rows[0])
			return rows[0], nil
		}
	}
	if firstErr != nil {
		return zero, firstErr
	}
	return zero, errors.NewNotFound(c.spec.Entity, id)
}

func (c *Collection[T]) fromMemory(user, id string, allowed map[string]bool) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		best  T
		found bool
	)
	if c.owner != user {
		return best, false
	}
	for _, item := range c.items {
		table := c.spec.Table(item)
		if c.spec.ID(item) != id || !allowed[table] {
			continue
		}
		if !found || c.rank[table] < c.rank[c.spec.Table(best)] {
			best, found = item, true
		}
	}
	return best, found
}

// recordKey scopes the per-record cache to this collection. Two collections
// can read the same source table into different types.
func (c *Collection[T]) recordKey(table, id, user string) string {
	return cache.RecordKey(c.spec.Entity+":"+table, id, user)
}

// added prepends item after a successful create.
func (c *Collection[T]) added(ctx context.Context, user string, item T) {
	c.mutate(ctx, user, func(items []T) []T {
		return append([]T{item}, items...)
	})
	c.record.Set(ctx, c.recordKey(c.spec.Table(item), c.spec.ID(item), user), item)
}

// replaced swaps in item after a successful update.
func (c *Collection[T]) replaced(ctx context.Context, user string, item T) {
	table, id := c.spec.Table(item), c.spec.ID(item)
	c.mutate(ctx, user, func(items []T) []T {
		out := make([]T, 0, len(items)+1)
		found := false
		for _, existing := range items {
			if c.spec.Table(existing) == table && c.spec.ID(existing) == id {
				out = append(out, item)
				found = true
				continue
			}
			out = append(out, existing)
		}
		if !found {
			out = append([]T{item}, out...)
		}
		return out
	})
	c.record.Set(ctx, c.recordKey(table, id, user), item)
}

// removed drops the record after a successful delete.
func (c *Collection[T]) removed(ctx context.Context, user, table, id string) {
	c.mutate(ctx, user, func(items []T) []T {
		out := make([]T, 0, len(items))
		for _, existing := range items {
			if c.spec.Table(existing) == table && c.spec.ID(existing) == id {
				continue
			}
			out = append(out, existing)
		}
		return out
	})
	c.record.Invalidate(ctx, c.recordKey(table, id, user))
}

// mutate applies a local patch. It counts as the newest state, so a refresh
// that started before it will not overwrite it. The list cache is rewritten
// only when the in-memory list is a complete read for user.
func (c *Collection[T]) mutate(ctx context.Context, user string, patch func([]T) []T) {
	c.mu.Lock()
	if c.owner != user {
		c.items = []T{}
		c.owner = user
		c.complete = false
	}
	c.items = patch(c.items)
	c.started++
	c.applied = c.started
	c.errMsg, c.err = "", nil
	complete := c.complete
	snapshot := make([]T, len(c.items))
	copy(snapshot, c.items)
	c.mu.Unlock()

	key := cache.ListKey(c.spec.Entity, user)
	if complete {
		c.list.Set(ctx, key, snapshot)
	} else {
		c.list.Invalidate(ctx, key)
	}
}

// setError records a failed operation without touching the items.
func (c *Collection[T]) setError(err error) {
	c.mu.Lock()
	c.errMsg, c.err = errors.Message(err), err
	c.mu.Unlock()
}

// fail records err and returns it, for use in mutation error paths.
func (c *Collection[T]) fail(op string, err error) error {
	c.setError(err)
	c.log.Warn().Err(err).Str("op", op).Msg("operation failed")
	return err
}

// ClearCache drops the user's list cache so the next Load refetches.
func (c *Collection[T]) ClearCache(ctx context.Context) {
	if user, err := c.opts.user(); err == nil {
		c.list.Invalidate(ctx, cache.ListKey(c.spec.Entity, user))
	}
}

// selectRows reads table and converts each row.
func selectRows[R any, T any](table string, convert func(R) T) func(context.Context, Backend, backend.Query) ([]T, error) {
	return func(ctx context.Context, b Backend, q backend.Query) ([]T, error) {
		var rows []R
		if err := b.Select(ctx, table, q, &rows); err != nil {
			return nil, err
		}
		out := make([]T, 0, len(rows))
		for _, r := range rows {
			out = append(out, convert(r))
		}
		return out, nil
	}
}
