// Package credentials hands interactive secrets (phone number, login code,
// 2FA password) from operators to a login procedure that asks for them
// synchronously.
package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

// Kind identifies a secret the login procedure can ask for.
type Kind string

const (
	KindPhone    Kind = "phone"
	KindCode     Kind = "code"
	KindPassword Kind = "password"
)

// Kinds lists the secret kinds in the order a login asks for them.
var Kinds = []Kind{KindPhone, KindCode, KindPassword}

var (
	// ErrSlotPending is returned when a kind is requested while an earlier
	// request of the same kind is still unanswered.
	ErrSlotPending = errors.New("credential request already pending")
	// ErrAbandoned is returned to a waiting request dropped by Abandon.
	ErrAbandoned = errors.New("credential request abandoned")
)

// Prompter tells an operator that a secret of the given kind is wanted.
type Prompter interface {
	Prompt(ctx context.Context, operatorID int64, kind Kind) error
}

type slot struct {
	ch chan string
}

// Bridge holds at most one pending slot per kind. Request blocks until
// Supply fills the slot; each slot is fulfilled at most once.
type Bridge struct {
	mu       sync.Mutex
	slots    map[Kind]*slot
	source   int64
	prompter Prompter
	log      logging.Logger

	inProgress atomic.Bool
}

func NewBridge(p Prompter, source int64, log logging.Logger) *Bridge {
	return &Bridge{
		slots:    make(map[Kind]*slot),
		source:   source,
		prompter: p,
		log:      log.With("module", "credentials"),
	}
}

// SetSource redirects prompts and accepted answers to operatorID.
func (b *Bridge) SetSource(operatorID int64) {
	b.mu.Lock()
	b.source = operatorID
	b.mu.Unlock()
}

func (b *Bridge) Source() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// Request opens a slot for kind, prompts the current source and waits for
// the answer. The slot is released if ctx ends first.
func (b *Bridge) Request(ctx context.Context, kind Kind) (string, error) {
	b.mu.Lock()
	if _, ok := b.slots[kind]; ok {
		b.mu.Unlock()
		return "", ErrSlotPending
	}
	s := &slot{ch: make(chan string, 1)}
	b.slots[kind] = s
	source := b.source
	b.mu.Unlock()

	b.log.Info(ctx, "credential requested", "kind", kind, "operator", source)
	if b.prompter != nil {
		if err := b.prompter.Prompt(ctx, source, kind); err != nil {
			b.log.Warn(ctx, "prompt delivery failed", "kind", kind, "error", err)
		}
	}

	select {
	case v, ok := <-s.ch:
		if !ok {
			return "", ErrAbandoned
		}
		b.received(ctx, kind, v)
		return v, nil
	case <-ctx.Done():
		if b.release(kind, s) {
			return "", ctx.Err()
		}
		// Supply or Abandon took the slot first; a supplied value is
		// already buffered.
		if v, ok := <-s.ch; ok {
			b.received(ctx, kind, v)
			return v, nil
		}
		return "", ctx.Err()
	}
}

func (b *Bridge) received(ctx context.Context, kind Kind, v string) {
	if kind == KindPhone {
		b.log.Info(ctx, "phone received", "phone", common.MaskPhone(v))
	} else {
		b.log.Info(ctx, "credential received", "kind", kind)
	}
}

// release drops s if it is still registered for kind and reports whether it was.
func (b *Bridge) release(kind Kind, s *slot) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slots[kind] == s {
		delete(b.slots, kind)
		return true
	}
	return false
}

// Supply fulfils the pending slot of kind with value. It reports false and
// does nothing when no such slot is pending or when from is not the current
// source (a zero source accepts anyone).
func (b *Bridge) Supply(from int64, kind Kind, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[kind]
	if !ok {
		return false
	}
	if b.source != 0 && from != b.source {
		return false
	}
	delete(b.slots, kind)
	s.ch <- value
	return true
}

// Route delivers free text to whichever kind is pending. Codes are sent
// without inner whitespace.
func (b *Bridge) Route(from int64, text string) (Kind, bool) {
	kind, ok := b.Pending()
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(text)
	if kind == KindCode {
		value = strings.Join(strings.Fields(value), "")
	}
	if value == "" {
		return kind, false
	}
	return kind, b.Supply(from, kind, value)
}

// Waiting reports whether a request of kind is pending.
func (b *Bridge) Waiting(kind Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.slots[kind]
	return ok
}

// Pending returns the first pending kind in login order.
func (b *Bridge) Pending() (Kind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range Kinds {
		if _, ok := b.slots[k]; ok {
			return k, true
		}
	}
	return "", false
}

// Abandon drops every pending slot; blocked requests return ErrAbandoned.
func (b *Bridge) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, s := range b.slots {
		delete(b.slots, k)
		close(s.ch)
	}
}

// TryBegin sets the authorization-in-progress flag. It returns false if the
// flag was already set.
func (b *Bridge) TryBegin() bool {
	return b.inProgress.CompareAndSwap(false, true)
}

// End clears the authorization-in-progress flag.
func (b *Bridge) End() {
	b.inProgress.Store(false)
}

func (b *Bridge) InProgress() bool {
	return b.inProgress.Load()
}

// Phone, Code and Password let the bridge act as the secret source of a
// login flow.
func (b *Bridge) Phone(ctx context.Context) (string, error) { return b.Request(ctx, KindPhone) }

func (b *Bridge) Code(ctx context.Context) (string, error) { return b.Request(ctx, KindCode) }

func (b *Bridge) Password(ctx context.Context) (string, error) {
	return b.Request(ctx, KindPassword)
}
