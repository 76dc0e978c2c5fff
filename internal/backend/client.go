// Package backend talks to the hosted database over its REST interface
// (PostgREST under /rest/v1, auth under /auth/v1).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 8 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues authenticated requests to the backend.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     zerolog.Logger
	conn    *Connectivity

	mu      sync.RWMutex
	session *Session
}

// New creates a client. BaseURL is the project URL without the /rest/v1 suffix.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		timeout: timeout,
		http:    hc,
		log:     opts.Logger,
		conn:    NewConnectivity(),
	}
}

// Connectivity returns the client's reachability tracker.
func (c *Client) Connectivity() *Connectivity {
	return c.conn
}

// Select reads rows from table into dest (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q Query, dest any) error {
	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + table,
		query:  q.values(),
		table:  table,
	})
	if err != nil {
		return err
	}
	return decode(body, dest)
}

// Insert creates one row and decodes the stored rows into dest (may be nil).
func (c *Client) Insert(ctx context.Context, table string, row any, dest any) error {
	body, err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/rest/v1/" + table,
		body:           row,
		representation: true,
		table:          table,
	})
	if err != nil {
		return err
	}
	return decode(body, dest)
}

// Update patches the rows matched by filters. Matching nothing is NOT_FOUND.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, patch any, dest any) error {
	return c.mutate(ctx, http.MethodPatch, table, filters, patch, dest)
}

// Delete removes the rows matched by filters. Matching nothing is NOT_FOUND.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter, dest any) error {
	return c.mutate(ctx, http.MethodDelete, table, filters, nil, dest)
}

func (c *Client) mutate(ctx context.Context, method, table string, filters []Filter, patch any, dest any) error {
	if len(filters) == 0 {
		return errors.NewInvalidRequest("refusing to " + strings.ToLower(method) + " without a filter")
	}
	v := url.Values{}
	addFilters(v, filters)

	body, err := c.do(ctx, request{
		method:         method,
		path:           "/rest/v1/" + table,
		query:          v,
		body:           patch,
		representation: true,
		table:          table,
	})
	if err != nil {
		return err
	}
	if countRows(body) == 0 {
		return errors.NewNotFound(table, idOf(filters))
	}
	return decode(body, dest)
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	representation bool
	table          string
	anonymous      bool
}

// do sends r under the client timeout and returns the response body of a 2xx.
// The deadline cancels the transport request, not only the wait for it.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if c.baseURL == "" {
		return nil, errors.NewInvalidRequest("backend_url is not configured")
	}

	var reader io.Reader = http.NoBody
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("encode request body: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, r.method, u, reader)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	requestID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.representation {
		req.Header.Set("Prefer", "return=representation")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer(r.anonymous))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// A caller that gave up is not evidence the backend is down.
		if ctx.Err() == nil {
			c.conn.set(false)
		}
		c.log.Debug().Err(err).
			Str("request_id", requestID).
			Str("method", r.method).
			Str("path", r.path).
			Dur("elapsed", time.Since(start)).
			Msg("backend request failed")
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewNetwork(fmt.Errorf("request timed out after %s", c.timeout))
		}
		return nil, errors.NewNetwork(err)
	}
	defer resp.Body.Close()
	c.conn.set(true)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewNetwork(err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapError(resp.StatusCode, r.table, body)
	}
	return body, nil
}

func (c *Client) bearer(anonymous bool) string {
	if !anonymous {
		c.mu.RLock()
		s := c.session
		c.mu.RUnlock()
		if s != nil && s.AccessToken != "" {
			return s.AccessToken
		}
	}
	return c.apiKey
}

func decode(body []byte, dest any) error {
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.NewInternal(fmt.Errorf("decode backend response: %w", err))
	}
	return nil
}
