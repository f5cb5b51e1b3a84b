// Package directory resolves handles against the remote directory service
// and folds its answers into handle statuses.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/handles"
)

var (
	// ErrInvalidHandle is returned by a Resolver for a malformed name.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrNotOccupied is returned by a Resolver when nobody holds the name.
	ErrNotOccupied = errors.New("handle not occupied")
)

// ThrottleError carries the cooldown the remote service demands before the
// next request.
type ThrottleError struct {
	Wait time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled for %s", e.Wait)
}

// TransportError wraps any other lookup failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "directory transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsThrottle extracts a ThrottleError from err.
func AsThrottle(err error) (*ThrottleError, bool) {
	var te *ThrottleError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Resolver looks a single normalized name up. A nil error means the name
// is occupied.
type Resolver interface {
	Resolve(ctx context.Context, name string) error
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, name string) error

func (f ResolverFunc) Resolve(ctx context.Context, name string) error { return f(ctx, name) }

// Adapter turns raw Resolver outcomes into statuses.
type Adapter struct {
	resolver Resolver
}

func NewAdapter(r Resolver) *Adapter {
	return &Adapter{resolver: r}
}

// Resolve returns occupied or free for name. An invalid name counts as free.
// A throttle is returned unchanged as *ThrottleError; every other failure
// yields StatusError together with a *TransportError.
func (a *Adapter) Resolve(ctx context.Context, name string) (handles.Status, error) {
	err := a.resolver.Resolve(ctx, handles.Normalize(name))
	switch {
	case err == nil:
		return handles.StatusOccupied, nil
	case errors.Is(err, ErrNotOccupied), errors.Is(err, ErrInvalidHandle):
		return handles.StatusFree, nil
	}
	if te, ok := AsThrottle(err); ok {
		return handles.StatusError, te
	}
	var tr *TransportError
	if errors.As(err, &tr) {
		return handles.StatusError, tr
	}
	return handles.StatusError, &TransportError{Err: err}
}
