package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrOwnerRequired = errors.New("owner is required")
	ErrNotFound      = errors.New("analysis not found")
	// ErrForbidden is returned by AuthorizeOwner. Service methods never return
	// it; they report ErrNotFound instead so existence is not revealed.
	ErrForbidden = errors.New("analysis belongs to another owner")
)

// ValidationError lists rejected request fields keyed by their JSON path
// (e.g. "selectedAxes.z").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
