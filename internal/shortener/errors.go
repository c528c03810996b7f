package shortener

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("short link not found")
	ErrConflict     = errors.New("short code already exists")
	ErrUnauthorized = errors.New("owner is not authorized")
	ErrForbidden    = errors.New("link belongs to another owner")
	ErrValidation   = errors.New("validation failed")

	// ErrCodeTaken is returned by a Repository when the short code index rejects an insert.
	ErrCodeTaken = errors.New("short code taken")
	// ErrDuplicateLink is returned by a Repository when the owner already shortened the URL.
	ErrDuplicateLink = errors.New("owner already shortened this url")
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

// ValidationError collects every rejected field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string, value any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message, Value: value})
}

// Err returns nil when no field was rejected.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}

	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}

	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
