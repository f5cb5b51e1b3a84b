// Package session owns the lifecycle of the directory network session:
// connecting, the interactive login handshake and destructive reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/filex"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

// Credentials supplies secrets to a login flow in the order it asks.
type Credentials interface {
	Phone(ctx context.Context) (string, error)
	Code(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
}

// Client is a single network session to the directory service.
type Client interface {
	Connect(ctx context.Context) error
	Authorized(ctx context.Context) (bool, error)
	SignIn(ctx context.Context, creds Credentials) error
	Resolve(ctx context.Context, name string) error
	Close() error
}

// Factory builds a fresh, unauthenticated Client.
type Factory func() (Client, error)

// Announcer delivers status text to operators.
type Announcer interface {
	Announce(ctx context.Context, operatorIDs []int64, text string)
}

// HandshakeError reports a failed login handshake.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return "authorization failed: " + e.Err.Error() }

func (e *HandshakeError) Unwrap() error { return e.Err }

type Options struct {
	// SessionPath is the on-disk session file owned by the client.
	SessionPath string
	// Operators receive handshake announcements when no operator triggered it.
	Operators []int64
	// HandshakeTimeout bounds one handshake; zero means no bound.
	HandshakeTimeout time.Duration
}

type Manager struct {
	mu      sync.RWMutex
	client  Client
	factory Factory

	bridge    *credentials.Bridge
	announcer Announcer
	opts      Options
	log       logging.Logger

	authorized atomic.Bool

	hsCancel context.CancelFunc
	hsDone   chan struct{}
}

func NewManager(factory Factory, bridge *credentials.Bridge, announcer Announcer, opts Options, log logging.Logger) (*Manager, error) {
	c, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create session client: %w", err)
	}
	return &Manager{
		client:    c,
		factory:   factory,
		bridge:    bridge,
		announcer: announcer,
		opts:      opts,
		log:       log.With("module", "session"),
	}, nil
}

func (m *Manager) current() Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Authorized reports the last known authorization state.
func (m *Manager) Authorized() bool { return m.authorized.Load() }

// HandshakeInProgress reports whether a login handshake is running.
func (m *Manager) HandshakeInProgress() bool { return m.bridge.InProgress() }

// EnsureAuthorized returns true when the session is authorized. Otherwise it
// starts one background handshake prompting operatorID (or the configured
// operators when zero) and returns false. While a handshake is running it
// returns false at once; callers should try again later.
func (m *Manager) EnsureAuthorized(ctx context.Context, operatorID int64) (bool, error) {
	if m.bridge.InProgress() {
		return false, nil
	}

	c := m.current()
	if err := c.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	ok, err := c.Authorized(ctx)
	if err != nil {
		return false, fmt.Errorf("authorization status: %w", err)
	}
	if ok {
		m.authorized.Store(true)
		return true, nil
	}
	m.authorized.Store(false)

	if !m.bridge.TryBegin() {
		return false, nil
	}
	hsCtx := m.begin(context.WithoutCancel(ctx))
	go func() {
		_ = m.handshake(hsCtx, operatorID)
	}()
	return false, nil
}

// Authorize runs the handshake synchronously.
func (m *Manager) Authorize(ctx context.Context, operatorID int64) error {
	if !m.bridge.TryBegin() {
		return common.ErrHandshakeInProgress
	}
	return m.handshake(m.begin(ctx), operatorID)
}

// begin records the cancel/done pair of a handshake. The caller holds the
// bridge's in-progress flag.
func (m *Manager) begin(parent context.Context) context.Context {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.opts.HandshakeTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, m.opts.HandshakeTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	m.mu.Lock()
	m.hsCancel = cancel
	m.hsDone = make(chan struct{})
	m.mu.Unlock()
	return ctx
}

func (m *Manager) finish() {
	m.mu.Lock()
	if m.hsCancel != nil {
		m.hsCancel()
		m.hsCancel = nil
	}
	if m.hsDone != nil {
		close(m.hsDone)
		m.hsDone = nil
	}
	m.mu.Unlock()
	m.bridge.End()
}

func (m *Manager) handshake(ctx context.Context, operatorID int64) (err error) {
	defer m.finish()

	targets := m.opts.Operators
	if operatorID != 0 {
		m.bridge.SetSource(operatorID)
		targets = []int64{operatorID}
	} else if len(targets) > 0 {
		m.bridge.SetSource(targets[0])
	}

	defer func() {
		if err == nil {
			return
		}
		herr := &HandshakeError{Err: err}
		m.log.Error(ctx, "handshake failed", "error", err)
		m.announce(ctx, targets, herr.Error())
		err = herr
	}()

	c := m.current()
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	ok, err := c.Authorized(ctx)
	if err != nil {
		return fmt.Errorf("authorization status: %w", err)
	}
	if ok {
		m.authorized.Store(true)
		m.log.Info(ctx, "session already authorized")
		m.announce(ctx, targets, "directory session is already authorized")
		return nil
	}

	m.log.Info(ctx, "session not authorized, requesting credentials", "operator", m.bridge.Source())
	m.announce(ctx, targets, "directory session requires authorization, answer the following prompts")

	if err := c.SignIn(ctx, m.bridge); err != nil {
		return err
	}
	m.authorized.Store(true)
	m.log.Info(ctx, "session authorized")
	m.announce(ctx, targets, "authorization successful, directory session is ready")
	return nil
}

func (m *Manager) announce(ctx context.Context, to []int64, text string) {
	if m.announcer == nil || len(to) == 0 {
		return
	}
	m.announcer.Announce(context.WithoutCancel(ctx), to, text)
}

// Resolve looks name up through the current session. It fails with
// common.ErrNotAuthorized until a handshake has completed.
func (m *Manager) Resolve(ctx context.Context, name string) error {
	if !m.authorized.Load() {
		return common.ErrNotAuthorized
	}
	err := m.current().Resolve(ctx, name)
	if errors.Is(err, common.ErrNotAuthorized) {
		m.authorized.Store(false)
	}
	return err
}

// stopHandshake cancels a running handshake and waits for it to unwind.
func (m *Manager) stopHandshake() {
	m.mu.Lock()
	cancel, done := m.hsCancel, m.hsDone
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.bridge.Abandon()
	if done != nil {
		<-done
	}
}

// Reset tears the session down, deletes its files and installs a fresh
// unauthenticated client. A new handshake is required afterwards.
func (m *Manager) Reset(ctx context.Context) error {
	m.stopHandshake()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.authorized.Store(false)
	if err := m.client.Close(); err != nil {
		m.log.Warn(ctx, "close session client", "error", err)
	}
	if m.opts.SessionPath != "" {
		if err := filex.RemoveFiles(m.opts.SessionPath, m.opts.SessionPath+"-journal"); err != nil {
			m.log.Warn(ctx, "remove session files", "error", err)
		}
	}
	c, err := m.factory()
	if err != nil {
		return fmt.Errorf("create session client: %w", err)
	}
	m.client = c
	m.log.Info(ctx, "session reset")
	return nil
}

// Close stops any handshake and closes the client.
func (m *Manager) Close() error {
	m.stopHandshake()
	m.authorized.Store(false)
	return m.current().Close()
}
