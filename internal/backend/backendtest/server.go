// Package backendtest provides an in-memory fake of the hosted backend's REST
// interface for tests. It understands the subset quill uses: eq/neq/in
// filters, order, limit, return=representation and password sign-in.
//
// Failures can be injected per table (status and body) and every request can
// be delayed or intercepted through a hook.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimeFormat matches how the backend renders timestamptz columns.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Row is one stored record.
type Row map[string]any

// Failure is a canned error response.
type Failure struct {
	Status int
	Body   string
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string][]Row
	failures map[string]Failure
	users    map[string]userRecord
	tokens   map[string]string
	requests map[string]int
	hook     func(*http.Request)
	now      func() time.Time
	auth     bool
}

type userRecord struct {
	id       string
	password string
}

// New starts a server with the named tables created empty.
// Tables not named here answer as missing from the schema.
func New(tables ...string) *Server {
	s := &Server{
		tables:   map[string][]Row{},
		failures: map[string]Failure{},
		users:    map[string]userRecord{},
		tokens:   map[string]string{},
		requests: map[string]int{},
		now:      time.Now,
	}
	for _, t := range tables {
		s.tables[t] = nil
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Seed inserts rows into table as-is (creating the table if needed).
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], cloneRow(r))
	}
}

// Rows returns a copy of table's rows.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, cloneRow(r))
	}
	return out
}

// DropTable makes table answer as missing.
func (s *Server) DropTable(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, table)
}

// Fail makes every request to table return f until cleared with Fail(table, Failure{}).
func (s *Server) Fail(table string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Status == 0 {
		delete(s.failures, table)
		return
	}
	s.failures[table] = f
}

// SetHook runs fn at the start of every request, outside the server lock.
// A hook may block to delay or reorder responses.
func (s *Server) SetHook(fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// SetClock replaces time.Now for generated timestamps.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers a sign-in account and returns its id.
// After the first user is added, table requests need a token issued by SignIn.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.users[email] = userRecord{id: id, password: password}
	s.auth = true
	return id
}

// Requests returns how many requests reached table ("auth" for sign-in).
func (s *Server) Requests(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[table]
}

// TotalRequests returns the number of requests served.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.requests {
		n += c
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(r)
	}

	switch {
	case r.URL.Path == "/auth/v1/token" && r.Method == http.MethodPost:
		s.signIn(w, r)
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		s.table(w, r, strings.TrimPrefix(r.URL.Path, "/rest/v1/"))
	default:
		writeError(w, http.StatusNotFound, "", "no route")
	}
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests["auth"]++

	u, ok := s.users[body.Email]
	if r.URL.Query().Get("grant_type") != "password" || !ok || u.password != body.Password {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
		return
	}

	token := uuid.NewString()
	s.tokens[token] = u.id
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  token,
		"refresh_token": uuid.NewString(),
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": u.id, "email": body.Email},
	})
}

func (s *Server) table(w http.ResponseWriter, r *http.Request, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[name]++

	if s.auth {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, ok := s.tokens[token]; !ok {
			writeError(w, http.StatusUnauthorized, "PGRST301", "JWT invalid")
			return
		}
	}
	if f, ok := s.failures[name]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.Status)
		_, _ = io.WriteString(w, f.Body)
		return
	}
	rows, ok := s.tables[name]
	if !ok {
		writeError(w, http.StatusNotFound, "PGRST205",
			fmt.Sprintf("Could not find the table 'public.%s' in the schema cache", name))
		return
	}

	q := r.URL.Query()
	filters, err := parseFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		out := matching(rows, filters)
		if order := q.Get("order"); order != "" {
			sortRows(out, order)
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 0 && limit < len(out) {
			out = out[:limit]
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		inserted, err := s.insert(name, r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
			return
		}
		writeRepresentation(w, r, http.StatusCreated, inserted)

	case http.MethodPatch:
		var patch Row
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
			return
		}
		stamp := s.now().UTC().Format(TimeFormat)
		var updated []Row
		for _, row := range rows {
			if !row.matches(filters) {
				continue
			}
			for k, v := range patch {
				if k == "id" {
					continue
				}
				row[k] = v
			}
			if _, ok := patch["updated_at"]; !ok {
				row["updated_at"] = stamp
			}
			updated = append(updated, cloneRow(row))
		}
		writeRepresentation(w, r, http.StatusOK, updated)

	case http.MethodDelete:
		var kept, removed []Row
		for _, row := range rows {
			if row.matches(filters) {
				removed = append(removed, row)
			} else {
				kept = append(kept, row)
			}
		}
		s.tables[name] = kept
		writeRepresentation(w, r, http.StatusOK, removed)

	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

func (s *Server) insert(table string, body io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	var batch []Row
	if err := json.Unmarshal(raw, &batch); err != nil {
		var one Row
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		batch = []Row{one}
	}

	stamp := s.now().UTC().Format(TimeFormat)
	out := make([]Row, 0, len(batch))
	for _, row := range batch {
		row = cloneRow(row)
		if id, _ := row["id"].(string); id == "" {
			row["id"] = uuid.NewString()
		}
		for _, existing := range s.tables[table] {
			if existing["id"] == row["id"] {
				return nil, fmt.Errorf("duplicate key value violates unique constraint on id %v", row["id"])
			}
		}
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = stamp
		}
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = stamp
		}
		s.tables[table] = append(s.tables[table], row)
		out = append(out, cloneRow(row))
	}
	return out, nil
}

type filter struct {
	column string
	op     string
	values []string
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func parseFilters(q map[string][]string) ([]filter, error) {
	var out []filter
	for col, vals := range q {
		if reserved[col] {
			continue
		}
		for _, v := range vals {
			op, arg, ok := strings.Cut(v, ".")
			if !ok {
				return nil, fmt.Errorf("malformed filter %s=%s", col, v)
			}
			f := filter{column: col, op: op}
			switch op {
			case "eq", "neq":
				f.values = []string{arg}
			case "in":
				inner := strings.TrimSuffix(strings.TrimPrefix(arg, "("), ")")
				for _, part := range strings.Split(inner, ",") {
					f.values = append(f.values, strings.Trim(part, `"`))
				}
			default:
				return nil, fmt.Errorf("unsupported operator %q", op)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

func (r Row) matches(filters []filter) bool {
	for _, f := range filters {
		got := stringify(r[f.column])
		hit := false
		for _, v := range f.values {
			if got == v {
				hit = true
				break
			}
		}
		if f.op == "neq" {
			hit = !hit
		}
		if !hit {
			return false
		}
	}
	return true
}

func matching(rows []Row, filters []filter) []Row {
	out := []Row{}
	for _, r := range rows {
		if r.matches(filters) {
			out = append(out, cloneRow(r))
		}
	}
	return out
}

func sortRows(rows []Row, order string) {
	col, dir, _ := strings.Cut(order, ".")
	desc := dir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := stringify(rows[i][col]), stringify(rows[j][col])
		if ta, errA := time.Parse(time.RFC3339Nano, a); errA == nil {
			if tb, errB := time.Parse(time.RFC3339Nano, b); errB == nil {
				if desc {
					return ta.After(tb)
				}
				return ta.Before(tb)
			}
		}
		if desc {
			return a > b
		}
		return a < b
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func writeRepresentation(w http.ResponseWriter, r *http.Request, status int, rows []Row) {
	if rows == nil {
		rows = []Row{}
	}
	if !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "message": msg, "details": nil, "hint": nil})
}
