// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package apperr defines the typed error kinds shared by all Clipsight services.
//
// Services return *apperr.Error; the API layer translates kinds to HTTP status
// codes at the edge. Workers never propagate these to the queue - failures are
// written to the job row instead.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of transport.
type Kind int

const (
	// KindFatal is an unexpected internal failure. Rendered as a generic 500.
	KindFatal Kind = iota

	// KindBadRequest means inputs failed structural or semantic validation.
	KindBadRequest

	// KindUnauthenticated means the session token is missing or invalid.
	KindUnauthenticated

	// KindForbidden means the caller attempted cross-user access.
	KindForbidden

	// KindNotFound means the entity is missing or not owned by the caller.
	KindNotFound

	// KindConflict means a pre-condition was violated.
	KindConflict

	// KindFeatureDisabled means the feature flag for this operation is off.
	KindFeatureDisabled

	// KindInsufficientCredits means the caller's credit balance is too low.
	KindInsufficientCredits

	// KindPayloadTooLarge means an uploaded payload exceeded the size limit.
	KindPayloadTooLarge

	// KindServiceUnavailable means a queue or provider is unreachable.
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindFeatureDisabled:
		return "feature_disabled"
	case KindInsufficientCredits:
		return "insufficient_credits"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Error is a typed application error with a user-displayable detail string.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap supports errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with a display detail.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates a typed error with a formatted display detail.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error that wraps an underlying cause.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// BadRequest is shorthand for New(KindBadRequest, detail).
func BadRequest(detail string) *Error { return New(KindBadRequest, detail) }

// Unauthenticated is shorthand for New(KindUnauthenticated, detail).
func Unauthenticated(detail string) *Error { return New(KindUnauthenticated, detail) }

// Forbidden is shorthand for New(KindForbidden, detail).
func Forbidden(detail string) *Error { return New(KindForbidden, detail) }

// NotFound is shorthand for New(KindNotFound, detail).
func NotFound(detail string) *Error { return New(KindNotFound, detail) }

// Conflict is shorthand for New(KindConflict, detail).
func Conflict(detail string) *Error { return New(KindConflict, detail) }

// FeatureDisabled is shorthand for New(KindFeatureDisabled, detail).
func FeatureDisabled(detail string) *Error { return New(KindFeatureDisabled, detail) }

// InsufficientCredits is shorthand for New(KindInsufficientCredits, detail).
func InsufficientCredits(detail string) *Error { return New(KindInsufficientCredits, detail) }

// ServiceUnavailable is shorthand for New(KindServiceUnavailable, detail).
func ServiceUnavailable(detail string) *Error { return New(KindServiceUnavailable, detail) }

// Internal wraps an unexpected failure as KindFatal.
func Internal(detail string, err error) *Error { return Wrap(KindFatal, detail, err) }

// KindOf extracts the Kind from any error. Untyped errors map to KindFatal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindFatal
}

// DetailOf extracts the user-displayable detail from any error.
// Untyped errors return a generic message so internals never leak to clients.
func DetailOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return "internal server error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
