package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/hpungsan/quill/internal/errors"
)

// Backend error codes that need special handling.
const (
	pgUndefinedTable   = "42P01"
	pgrstTableNotFound = "PGRST205"
	pgrstJWTExpired    = "PGRST301"
	pgrstJWTInvalid    = "PGRST302"
)

// mapError turns a non-2xx response into a QuillError.
func mapError(status int, table string, body []byte) error {
	code, _ := jsonparser.GetString(body, "code")
	msg := firstString(body, "message", "msg", "error_description", "error")
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case code == pgUndefinedTable || code == pgrstTableNotFound,
		strings.Contains(msg, "does not exist") && strings.Contains(msg, "relation"),
		strings.Contains(msg, "Could not find the table"):
		return errors.NewSchemaMissing(table)
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		code == pgrstJWTExpired || code == pgrstJWTInvalid:
		return errors.NewAuthRequired(msg)
	case status == http.StatusNotFound:
		return errors.NewNotFound(table, "")
	case status == http.StatusConflict:
		return errors.NewConflict(msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.NewInvalidRequest(msg)
	default:
		return errors.NewInternal(fmt.Errorf("backend returned %d: %s", status, msg))
	}
}

func firstString(body []byte, keys ...string) string {
	for _, k := range keys {
		if v, err := jsonparser.GetString(body, k); err == nil && v != "" {
			return v
		}
	}
	return ""
}

// countRows counts the elements of a JSON array body. Non-arrays count as one row.
func countRows(body []byte) int {
	n := 0
	_, err := jsonparser.ArrayEach(body, func(_ []byte, _ jsonparser.ValueType, _ int, _ error) {
		n++
	})
	if err != nil {
		if len(strings.TrimSpace(string(body))) == 0 {
			return 0
		}
		return 1
	}
	return n
}
