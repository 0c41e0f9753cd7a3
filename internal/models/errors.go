package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by cache updates that target a missing tracking number.
var ErrNotFound = errors.New("package not found")

// ValidationError reports bad caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
