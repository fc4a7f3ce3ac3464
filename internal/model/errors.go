package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrKind classifies a failure so callers can decide whether to retry,
// fail over to another provider, or give up immediately.
type ErrKind string

const (
	ErrInvalidParameter ErrKind = "invalid_parameter"
	ErrNetwork          ErrKind = "network_error"
	ErrRateLimit        ErrKind = "rate_limit"
	ErrAPI              ErrKind = "api_error"
	ErrParse            ErrKind = "parse_error"
	ErrNoData           ErrKind = "no_data"
)

// ClassifiedError wraps an underlying error with its kind and origin.
type ClassifiedError struct {
	Kind       ErrKind
	Provider   string // empty for errors raised before any provider was involved
	Status     int    // HTTP status, when applicable
	RetryAfter time.Duration
	Err        error
}

func (e *ClassifiedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind ErrKind, provider string, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Provider: provider, Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report an empty kind.
func KindOf(err error) ErrKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
