package core

import (
	"errors"
	"fmt"
	"reflect"
)

// Recoverable engine conditions. Conversion and relationship code logs these
// and carries on; they are exported so callers and tests can match them with
// errors.Is.
var (
	ErrMalformedField       = errors.New("malformed field")
	ErrMissingKeyProperty   = errors.New("missing key property")
	ErrCircularRelationship = errors.New("circular relationship")
)

// Input errors returned to the caller.
var (
	ErrUnknownSchema  = errors.New("unknown schema")
	ErrInvalidSchema  = errors.New("invalid schema")
	ErrInvalidRecords = errors.New("records must be a slice of structs or struct pointers")
	ErrNoRelationship = errors.New("relationship not declared")
)

// ConversionError describes a cell that could not be converted to its
// destination type.
type ConversionError struct {
	Type reflect.Type // Destination type
	Text string       // Source text
	Err  error        // Underlying cause
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("convert %q to %s: %v", e.Text, typeName(e.Type), e.Err)
	}
	return fmt.Sprintf("convert %q to %s", e.Text, typeName(e.Type))
}

// Unwrap lets errors.Is match both ErrMalformedField and the cause.
func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedField}
	}
	return []error{ErrMalformedField, e.Err}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
