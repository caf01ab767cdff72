package cacheclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a required argument was missing or empty.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidFormat indicates the token is not a UUID v4 string.
	ErrInvalidFormat = errors.New("invalid token format, should be a valid UUID v4")
	// ErrMissingObject indicates a video submission lacks one of its required properties.
	ErrMissingObject = errors.New("video object missing one of identifier, title, author, artwork, duration")
	// ErrTypeMismatch indicates a video submission property has the wrong JSON type.
	ErrTypeMismatch = errors.New("video property has wrong type")
	// ErrTransport wraps network failures and undecodable response bodies.
	ErrTransport = errors.New("cache service request failed")
)

// FieldError names the video property that failed validation.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: property %q %s", e.Err, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missingField(field string) error {
	return &FieldError{Field: field, Reason: "is required", Err: ErrMissingObject}
}

func mismatchedField(field, want string) error {
	return &FieldError{Field: field, Reason: "must be " + want, Err: ErrTypeMismatch}
}
