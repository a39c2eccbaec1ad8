// Package errors provides error handling for the gitgafit agent.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, error wrapping, and user-facing hints/details, plus the sentinel
// errors shared across the coordinator.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	if errors.Is(err, errors.ErrUnauthorized) {
//	    // credentials missing or expired - retry later
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Sentinel errors for use across the coordinator.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrUnauthorized indicates the request lacks valid credentials.
	// Push registration treats this as retryable: the user may simply
	// not be logged in yet.
	ErrUnauthorized = New("unauthorized")

	// ErrUnsupported indicates the platform lacks a required capability
	// (push API, background worker). Callers abort quietly and never retry.
	ErrUnsupported = New("unsupported platform")

	// ErrPermissionDenied indicates notification permission has not been
	// granted. Retryable the next time initialization is invoked.
	ErrPermissionDenied = New("notification permission not granted")

	// ErrWorkerUnavailable indicates the background push worker did not
	// acknowledge a message within the bounded retry window.
	ErrWorkerUnavailable = New("background worker unavailable")
)

// IsRetryableRegistration reports whether a backend device-registration
// failure should be retried on a later Initialize rather than marking the
// push adapter as failed for the session.
func IsRetryableRegistration(err error) bool {
	return err != nil && Is(err, ErrUnauthorized)
}
