package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryNotInitialized is returned by a Registry not built with NewRegistry.
	ErrRegistryNotInitialized = errors.New("transformer registry not initialized")

	// ErrNoTransformer matches, via errors.Is, every lookup of an unmapped event type.
	ErrNoTransformer = errors.New("no transformer implemented")

	// ErrInvalidScore reports a score whose possible value is absent, zero or not numeric.
	ErrInvalidScore = errors.New("invalid score")
)

// NotFoundError names the event type that has no transformer.
type NotFoundError struct {
	EventType string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no transformer implemented for event %q", e.EventType)
}

// Is reports ErrNoTransformer as a match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNoTransformer
}

// MissingMappingError is raised when a field has neither a literal value nor a
// deriver. It is a programming defect, not a data error.
type MissingMappingError struct {
	Field       string
	Transformer string
	EventType   string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("cannot find an accessor for the field %q in transformer %q for event %q",
		e.Field, e.Transformer, e.EventType)
}

// RequiredFieldError reports a required field that resolved to null or was
// omitted for this event.
type RequiredFieldError struct {
	Field       string
	Transformer string
	EventType   string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q of transformer %q resolved to null for event %q",
		e.Field, e.Transformer, e.EventType)
}

// DataError wraps a per-event failure caused by the event's contents, such as
// an undecodable data payload or an invalid score.
type DataError struct {
	Field     string
	EventType string
	Err       error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("event %q: field %q: %v", e.EventType, e.Field, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }
