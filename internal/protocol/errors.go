// Package protocol decode errors. Both error types are recoverable: a failed
// decode is reported back to the sending connection and never terminates the
// connection handler.
package protocol

import (
	"fmt"
	"strings"
)

// UnknownResourceError reports a frame whose resource tag is missing or does
// not name a known client request. Resource is empty when the tag was absent
// entirely.
type UnknownResourceError struct {
	Resource string
}

func (e *UnknownResourceError) Error() string {
	if e.Resource == "" {
		return "frame has no resource field"
	}
	return fmt.Sprintf("unknown resource %q", e.Resource)
}

// Violation describes one offending field of a frame.
type Violation struct {
	Path    string
	Message string
}

// SchemaError reports every field of a frame that failed validation, so the
// caller can surface all problems at once instead of the first one found.
type SchemaError struct {
	Resource   string
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Path == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Path+": "+v.Message)
	}
	joined := strings.Join(parts, "; ")
	if e.Resource == "" {
		return "invalid frame: " + joined
	}
	return fmt.Sprintf("invalid %s frame: %s", e.Resource, joined)
}
