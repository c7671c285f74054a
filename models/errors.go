package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEdge matches every ValidationError.
	ErrInvalidEdge = errors.New("invalid edge record")
	// ErrNodeNotFound is returned by lookups of an unknown node id.
	ErrNodeNotFound = errors.New("node not found")
)

// ValidationError reports a malformed edge record.
type ValidationError struct {
	Index int    // Position of the record in the input
	Field string // Missing or malformed field
}

func (e *ValidationError) Error() string {
	if e.Field == "record" {
		return fmt.Sprintf("edge %d: record is empty", e.Index)
	}
	return fmt.Sprintf("edge %d: missing %s", e.Index, e.Field)
}

// Is lets errors.Is match ErrInvalidEdge.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEdge
}
