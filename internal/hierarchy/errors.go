package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("hierarchy: invalid snapshot")
	// ErrUnsupportedCategory matches every *UnsupportedCategoryError.
	ErrUnsupportedCategory = errors.New("hierarchy: unsupported category")
)

// ValidationError rejects a malformed snapshot. Err carries the tracker
// error that triggered it, if any.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Is reports ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Unwrap exposes the cause.
func (e *ValidationError) Unwrap() error { return e.Err }

// UnsupportedCategoryError rejects a category that is unknown or not
// registered on the engine.
type UnsupportedCategoryError struct {
	Category string
}

func (e *UnsupportedCategoryError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnsupportedCategory, e.Category)
}

// Is reports ErrUnsupportedCategory.
func (e *UnsupportedCategoryError) Is(target error) bool { return target == ErrUnsupportedCategory }

func invalid(field, reason string, cause error) error {
	return &ValidationError{Field: field, Reason: reason, Err: cause}
}
