package flow

import (
	"errors"
	"fmt"
)

// ErrStructural marks caller invariant violations: duplicate ids, edges that
// reference unknown nodes, removing the entry point. They are programmer
// errors and are never shown to the end user as validation messages.
var ErrStructural = errors.New("structural error")

// Kinds of structural failure.
const (
	StructDuplicateID    = "duplicate_id"
	StructDanglingEdge   = "dangling_edge"
	StructUnknownNode    = "unknown_node"
	StructUnknownEdge    = "unknown_edge"
	StructStartProtected = "start_protected"
	StructInvalidNode    = "invalid_node"
	StructInvalidEdge    = "invalid_edge"
	StructInvalidHandle  = "invalid_handle"
	StructStartCount     = "start_count"
	StructHandleConflict = "handle_conflict"
)

// StructuralError describes a structural failure.
// Wraps ErrStructural for errors.Is() compatibility.
type StructuralError struct {
	Kind string // One of the Struct* constants
	Msg  string
}

func (e *StructuralError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return ErrStructural.Error()
	}
	return fmt.Sprintf("%s: %s", ErrStructural.Error(), e.Msg)
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

func structural(kind, format string, args ...any) error {
	return &StructuralError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is a structural error of the given kind.
func IsStructural(err error, kind string) bool {
	var se *StructuralError
	return errors.As(err, &se) && se.Kind == kind
}
