// Package common defines shared constants and sentinel errors used across
// fieldsync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Local precondition errors: never retried automatically, surfaced to
	// the caller immediately.
	ErrEventNotFound   = errors.New("event not found locally")
	ErrProjectNotFound = errors.New("project not found locally")

	// Transport-level errors. Anything wrapping ErrUnavailable is considered
	// transient and is a candidate for a bounded retry.
	ErrUnavailable  = errors.New("remote service unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPollTimeout means the completion-poll budget was exhausted. It is
	// reported distinctly from outright failure: the work may still finish
	// on the server side.
	ErrPollTimeout = errors.New("poll attempt budget exhausted")
)
