package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input. It never touches the store.
	ErrValidation = errors.New("validation failed")

	ErrNotFound            = errors.New("not found")
	ErrApplicationNotFound = fmt.Errorf("application %w", ErrNotFound)
	ErrKeyNotFound         = fmt.Errorf("api key %w", ErrNotFound)

	// ErrUnauthorized covers missing or unverifiable sessions and service credentials.
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidPassword   = fmt.Errorf("%w: invalid password", ErrUnauthorized)
	ErrInvalidServiceKey = fmt.Errorf("%w: invalid service api key", ErrUnauthorized)

	// ErrInvalidCredential is returned by Validate for well-formed input that
	// does not match. The wrapped errors stay distinguishable for callers and
	// tests; all of them share one external code.
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrMalformedKey         = fmt.Errorf("%w: invalid api key format", ErrInvalidCredential)
	ErrUnknownKey           = fmt.Errorf("%w: invalid api key", ErrInvalidCredential)
	ErrClientSecretMismatch = fmt.Errorf("%w: invalid client secret for this application", ErrInvalidCredential)

	// ErrConflict is a uniqueness violation on an application name or a key hash.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries a caller-facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError carries a caller-facing message and matches ErrConflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func conflict(msg string) error {
	return &ConflictError{Message: msg}
}
