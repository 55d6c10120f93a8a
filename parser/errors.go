package parser

import (
	"errors"
	"fmt"
)

var (
	errNotPositive = errors.New("must be positive")
	errNegative    = errors.New("must not be negative")
	errNotFound    = errors.New("not found")
)

// StructureError reports an expected element missing from the rendered page.
// It usually means the page layout changed or the lookup service rejected
// the request parameters.
type StructureError struct {
	Element string
	Err     error
}

func (e *StructureError) Error() string {
	return fmt.Errorf("structure: %s: %w", e.Element, e.Err).Error()
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

// FormatError reports a cell value that could not be parsed.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Errorf("format: %s %q: %w", e.Field, e.Value, e.Err).Error()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func missing(element string) error {
	return &StructureError{Element: element, Err: errNotFound}
}
