// Package tools contains the stateless adapters for the external services
// the workflow nodes call: disease classification, prescription,
// insurance, context extraction, and attention-overlay retrieval. Every
// adapter returns a typed result or a *ToolError; adapters never panic
// and never surface transport details to nodes.
package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind tags a tool failure for the node-level propagation policy.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindToolError           ErrorKind = "tool_error"
	KindParseError          ErrorKind = "parse_error"
	KindTimeout             ErrorKind = "timeout"
	KindInternal            ErrorKind = "internal_error"
)

// ToolError is the error channel of every adapter.
type ToolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewToolError builds a tagged error.
func NewToolError(kind ErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classifyTransportError maps an http.Client error onto timeout vs
// unavailable.
func classifyTransportError(err error) *ToolError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewToolError(KindTimeout, "request timed out: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewToolError(KindTimeout, "request timed out: %v", err)
	}
	return NewToolError(KindUpstreamUnavailable, "request failed: %v", err)
}
