// Package apperror carries the error kinds the HTTP layer turns into status codes.
package apperror

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalid         = errors.New("invalid request")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Error is a kind plus the human readable detail returned to clients.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

// BadRequest reports a request-level problem.
func BadRequest(detail string) error { return &Error{Kind: ErrInvalid, Detail: detail} }

// Forbidden reports a permission problem.
func Forbidden(detail string) error { return &Error{Kind: ErrForbidden, Detail: detail} }

// Unauthenticated reports missing or rejected credentials.
func Unauthenticated(detail string) error { return &Error{Kind: ErrUnauthenticated, Detail: detail} }

// ValidationError maps field names to messages.
type ValidationError struct {
	Fields map[string][]string
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a message for field.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// OrNil returns v when it holds messages, nil otherwise.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error { return ErrInvalid }
