package dkod

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionClosed is returned by every Session operation after Close.
var ErrSessionClosed = errors.New("dkod: session is closed")

// UnknownToolError reports a tool name that is neither an alias nor a
// canonical tool. Name is exactly what the caller supplied.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// MissingArgumentError reports a required argument that was absent or null.
type MissingArgumentError struct {
	Tool  string
	Field string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("tool %s: missing required argument %q", e.Tool, e.Field)
}

// InvalidArgumentError reports an argument of the wrong type or an enum value
// outside Allowed. For type mismatches Allowed holds the expected type name.
type InvalidArgumentError struct {
	Field   string
	Value   any
	Allowed []string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid value %v for %q: expected one of [%s]", formatValue(e.Value), e.Field, strings.Join(e.Allowed, ", "))
}

// IsValidationError reports whether err was produced by argument or tool-name
// validation rather than by the transport.
func IsValidationError(err error) bool {
	var unknown *UnknownToolError
	var missing *MissingArgumentError
	var invalid *InvalidArgumentError
	return errors.As(err, &unknown) || errors.As(err, &missing) || errors.As(err, &invalid)
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
