package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hpungsan/quill/internal/errors"
)

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session holds the tokens returned by the auth service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
// Sessions without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Before(time.Unix(s.ExpiresAt, 0))
}

// SignIn exchanges email and password for a session and installs it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, errors.NewInvalidRequest("email and password are required")
	}
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

// RefreshSession trades the current refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	s := c.Session()
	if s == nil || s.RefreshToken == "" {
		return nil, errors.NewAuthRequired("")
	}
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": s.RefreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	q := url.Values{}
	q.Set("grant_type", grant)

	raw, err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/v1/token",
		query:     q,
		body:      body,
		anonymous: true,
	})
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return nil, errors.NewAuthRequired(errors.Message(err))
		}
		return nil, err
	}

	var s Session
	if err := decode(raw, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, errors.NewAuthRequired("auth service returned no access token")
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}

	c.SetSession(&s)
	return &s, nil
}

// SetSession installs s for subsequent requests. nil signs out.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Session returns the installed session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}
