package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when no rows survive cleanup before a stage
	// that needs at least one (means, window search).
	ErrEmptyInput = errors.New("no rows left after cleanup")

	// ErrInsufficientHistory is returned when a gap sequence is too short for
	// any rolling window to be evaluated.
	ErrInsufficientHistory = errors.New("not enough history for a rolling window")

	// ErrUnresolvableLocation marks a flight whose coordinates map to no zone.
	ErrUnresolvableLocation = errors.New("no timezone for location")

	// ErrMalformedTime marks a flight whose date or HHMM departure does not parse.
	ErrMalformedTime = errors.New("malformed local departure time")
)

// MalformedFieldError reports a weather field that passed its sentinel check
// but whose numeric sub-field could not be decoded. It aborts the batch.
type MalformedFieldError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("row %d: malformed %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *MalformedFieldError) Unwrap() error { return e.Err }

// SchemaError reports an input file missing a required column.
type SchemaError struct {
	Source string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Source, e.Column)
}
