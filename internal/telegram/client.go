// Package telegram implements the directory session on top of the MTProto
// client from gotd/td.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/filex"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	sess "github.com/dmitrijs2005/handlewatch/internal/session"
)

// Config holds the application credentials and the session file location.
type Config struct {
	AppID       int
	AppHash     string
	SessionPath string
}

// Client is a session.Client backed by a gotd telegram.Client. The
// underlying connection runs in a background goroutine between Connect
// and Close.
type Client struct {
	tg  *telegram.Client
	log logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan error
}

var _ sess.Client = (*Client)(nil)

func New(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.AppID == 0 || cfg.AppHash == "" {
		return nil, errors.New("telegram: app id and app hash are required")
	}
	if cfg.SessionPath != "" {
		if _, err := filex.EnsureDir(filepath.Dir(cfg.SessionPath)); err != nil {
			return nil, err
		}
	}
	opts := telegram.Options{}
	if cfg.SessionPath != "" {
		opts.SessionStorage = &session.FileStorage{Path: cfg.SessionPath}
	}
	return &Client{
		tg:  telegram.NewClient(cfg.AppID, cfg.AppHash, opts),
		log: log.With("module", "telegram"),
	}, nil
}

// Factory returns a session.Factory producing clients for cfg.
func Factory(cfg Config, log logging.Logger) sess.Factory {
	return func() (sess.Client, error) {
		return New(cfg, log)
	}
}

// Connect starts the connection if it is not already up.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case err := <-c.done:
			c.log.Warn(ctx, "connection ended, reconnecting", "error", err)
			c.cancel()
			c.cancel, c.ready, c.done = nil, nil, nil
		default:
			select {
			case <-c.ready:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.tg.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		c.cancel, c.ready, c.done = cancel, ready, done
		c.log.Debug(ctx, "connected")
		return nil
	case err := <-done:
		cancel()
		return fmt.Errorf("telegram connect: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (c *Client) Authorized(ctx context.Context) (bool, error) {
	st, err := c.tg.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("auth status: %w", err)
	}
	return st.Authorized, nil
}

// SignIn runs the phone/code/password login flow with secrets from creds.
func (c *Client) SignIn(ctx context.Context, creds sess.Credentials) error {
	flow := auth.NewFlow(authenticator{creds: creds}, auth.SendCodeOptions{})
	if err := flow.Run(ctx, c.tg.Auth()); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// Resolve maps the outcome of contacts.resolveUsername onto the directory
// error taxonomy.
func (c *Client) Resolve(ctx context.Context, name string) error {
	var out tg.ContactsResolvedPeer
	err := c.tg.Invoke(ctx, &tg.ContactsResolveUsernameRequest{Username: name}, &out)
	return mapResolveError(err)
}

func mapResolveError(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &directory.ThrottleError{Wait: d}
	}
	switch {
	case tgerr.Is(err, "USERNAME_NOT_OCCUPIED"):
		return directory.ErrNotOccupied
	case tgerr.Is(err, "USERNAME_INVALID"):
		return directory.ErrInvalidHandle
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED"):
		return fmt.Errorf("%w: %v", common.ErrNotAuthorized, err)
	}
	return &directory.TransportError{Err: err}
}

// Close stops the background connection.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.ready, c.done = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type authenticator struct {
	creds sess.Credentials
}

func (a authenticator) Phone(ctx context.Context) (string, error) { return a.creds.Phone(ctx) }

func (a authenticator) Password(ctx context.Context) (string, error) { return a.creds.Password(ctx) }

func (a authenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.creds.Code(ctx)
}

func (a authenticator) AcceptTermsOfService(context.Context, tg.HelpTermsOfService) error {
	return errors.New("account requires accepting terms of service in an official client")
}

func (a authenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, use an existing account")
}
