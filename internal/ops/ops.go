// Package ops implements quill's data-access operations: per-entity
// collections over the backend with a local cache, plus the single-use
// workflow handoff.
package ops

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/cache"
	"github.com/hpungsan/quill/internal/errors"
)

// Backend tables.
const (
	TableCreatorContents = "creator_contents"
	TableProjects        = "projects"
	TableBrainDumps      = "brain_dumps"
	TableProfiles        = "profiles"
)

// Backend is the subset of the backend client the collections use.
type Backend interface {
	Select(ctx context.Context, table string, q backend.Query, dest any) error
	Insert(ctx context.Context, table string, row any, dest any) error
	Update(ctx context.Context, table string, filters []backend.Filter, patch any, dest any) error
	Delete(ctx context.Context, table string, filters []backend.Filter, dest any) error
}

// UserFunc returns the id of the signed-in user, or "" when there is none.
type UserFunc func() string

// StaticUser returns a UserFunc that always reports id.
func StaticUser(id string) UserFunc {
	return func() string { return id }
}

// Options are shared by every collection.
type Options struct {
	Backend Backend
	Cache   cache.Store // nil disables caching
	User    UserFunc
	Logger  zerolog.Logger
	// CacheOptions tune TTL and clock of the typed caches.
	CacheOptions []cache.Option
}

// ValidID reports whether id is a canonical UUID, the only identifier form
// the backend accepts.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// cleanID trims and validates id before any lookup. Callers use the
// returned value for requests and cache keys.
func cleanID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	if !ValidID(id) {
		return "", errors.NewInvalidID(id)
	}
	return id, nil
}

func (o Options) user() (string, error) {
	if o.User == nil {
		return "", errors.NewAuthRequired("")
	}
	id := strings.TrimSpace(o.User())
	if id == "" {
		return "", errors.NewAuthRequired("")
	}
	return id, nil
}

func ownedBy(userID string, extra ...backend.Filter) []backend.Filter {
	return append([]backend.Filter{backend.Eq("user_id", userID)}, extra...)
}

func byID(id, userID string) []backend.Filter {
	return []backend.Filter{backend.Eq("id", id), backend.Eq("user_id", userID)}
}

func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
