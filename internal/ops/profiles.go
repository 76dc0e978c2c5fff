package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/cache"
	"github.com/hpungsan/quill/internal/errors"
)

// Profile is the signed-in user's profile row.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Name returns the best available name for greeting the user.
func (p Profile) Name() string {
	for _, s := range []string{p.DisplayName, p.FullName, p.Email} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "there"
}

// Profiles reads the profiles table. Profile rows are keyed by the user id.
type Profiles struct {
	opts  Options
	cache *cache.Cache[Profile]
}

// NewProfiles creates the reader.
func NewProfiles(opts Options) *Profiles {
	copts := append([]cache.Option{cache.WithLogger(opts.Logger)}, opts.CacheOptions...)
	return &Profiles{opts: opts, cache: cache.New[Profile](opts.Cache, copts...)}
}

// Current returns the signed-in user's profile.
func (p *Profiles) Current(ctx context.Context) (Profile, error) {
	user, err := p.opts.user()
	if err != nil {
		return Profile{}, err
	}
	key := cache.RecordKey(TableProfiles, user, user)
	if cached, ok := p.cache.Get(ctx, key); ok {
		return cached, nil
	}

	var rows []Profile
	q := backend.Query{Filters: []backend.Filter{backend.Eq("id", user)}, Limit: 1}
	if err := p.opts.Backend.Select(ctx, TableProfiles, q, &rows); err != nil {
		return Profile{}, err
	}
	if len(rows) == 0 {
		return Profile{}, errors.NewNotFound("profile", user)
	}
	p.cache.Set(ctx, key, rows[0])
	return rows[0], nil
}
