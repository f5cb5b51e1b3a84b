// Package common defines shared constants and sentinel errors used across
// the watcher daemon and the operator console. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Operator auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Directory session state.
	ErrNotAuthorized       = errors.New("directory session is not authorized")
	ErrHandshakeInProgress = errors.New("authorization already in progress")
	ErrNothingPending      = errors.New("no credential request is pending")

	// Monitoring control.
	ErrMonitoringActive   = errors.New("monitoring is already running")
	ErrMonitoringInactive = errors.New("monitoring is not running")

	// Settings and input validation.
	ErrInvalidSetting = errors.New("invalid setting")
	ErrEmptyInput     = errors.New("empty input")
)
