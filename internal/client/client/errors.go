package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected wraps a request the daemon refused, with its reason.
	ErrRejected = errors.New("rejected")
)
