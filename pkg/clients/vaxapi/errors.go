package vaxapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnauthorized is returned when the backend rejects the stored token, or when an
// authenticated endpoint is called without one. The session has been cleared by then.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return nil
}

// errorMessage picks the most useful text out of a decoded error body: detail, then error,
// then message, then non-field errors, then the field errors, else a generic fallback.
func errorMessage(status int, payload map[string]any) string {
	fallback := fmt.Sprintf("API Error: %d", status)
	if len(payload) == 0 {
		return fallback
	}
	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	if text := flatten(payload["non_field_errors"]); text != "" {
		return text
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if text := flatten(payload[k]); text != "" {
			parts = append(parts, k+": "+text)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "; ")
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				out = append(out, s)
			}
		}
		return strings.Join(out, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
