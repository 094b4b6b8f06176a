package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnknownSource         = errors.New("unknown review provider")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// ValidationError is a rejected request input; the HTTP layer maps it to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
