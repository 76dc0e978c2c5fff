package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Quill error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrAuthRequired   ErrorCode = "AUTH_REQUIRED"   // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrSchemaMissing  ErrorCode = "SCHEMA_MISSING"  // 500, backend table not provisioned
	ErrNetwork        ErrorCode = "NETWORK"         // 503
)

// QuillError represents a structured error with code, status, and details.
type QuillError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QuillError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QuillError {
	return &QuillError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidID creates a 400 error for identifiers that are not UUIDs.
func NewInvalidID(id string) *QuillError {
	return &QuillError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: fmt.Sprintf("invalid id: %q is not a UUID", id),
		Details: map[string]any{"id": id},
	}
}

// NewAuthRequired creates a 401 error when there is no valid session.
func NewAuthRequired(msg string) *QuillError {
	if msg == "" {
		msg = "not signed in; run 'quill login' or set user_id and api_key"
	}
	return &QuillError{
		Code:    ErrAuthRequired,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a record that is absent or not owned by the caller.
func NewNotFound(entity, id string) *QuillError {
	return &QuillError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *QuillError {
	return &QuillError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewSchemaMissing creates an error for a backend table that does not exist.
func NewSchemaMissing(table string) *QuillError {
	return &QuillError{
		Code:    ErrSchemaMissing,
		Status:  500,
		Message: fmt.Sprintf("backend table %q does not exist", table),
		Details: map[string]any{"table": table},
	}
}

// NewNetwork creates a 503 error for timeouts and transport failures.
func NewNetwork(err error) *QuillError {
	msg := "backend unreachable"
	if err != nil {
		msg = fmt.Sprintf("backend unreachable: %v", err)
	}
	return &QuillError{
		Code:    ErrNetwork,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *QuillError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &QuillError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a QuillError with the given code.
func Is(err error, code ErrorCode) bool {
	var qErr *QuillError
	if stderrors.As(err, &qErr) {
		return qErr.Code == code
	}
	return false
}

// Message returns the human-readable message of err, or "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var qErr *QuillError
	if stderrors.As(err, &qErr) {
		return qErr.Message
	}
	return err.Error()
}

// Remediation returns operator-facing setup instructions for schema failures.
// Returns "" for every other error.
func Remediation(err error) string {
	var qErr *QuillError
	if !stderrors.As(err, &qErr) || qErr.Code != ErrSchemaMissing {
		return ""
	}
	table, _ := qErr.Details["table"].(string)
	return fmt.Sprintf(
		"The backend has no %q table. Apply the quill schema migration in your database "+
			"project (SQL editor: create the brain_dumps, creator_contents, projects and profiles "+
			"tables with a user_id owner column and row-level security on user_id = auth.uid()), "+
			"then retry.", table)
}
