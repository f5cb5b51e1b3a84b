// Package notify fans daemon events out to connected operator consoles.
// Events for an operator with no live subscription are kept in a bounded
// backlog and replayed on the next subscribe.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

type Kind string

const (
	KindPrompt Kind = "prompt"
	KindFreed  Kind = "freed"
	KindAuth   Kind = "auth"
	KindInfo   Kind = "info"
)

type Event struct {
	ID         string
	Kind       Kind
	OperatorID int64
	Text       string
	Handle     string
	Credential credentials.Kind
	Time       time.Time
}

const (
	defaultBuffer  = 64
	defaultBacklog = 100
)

type Hub struct {
	mu      sync.Mutex
	subs    map[int64]map[string]chan Event
	backlog map[int64][]Event
	limit   int
	log     logging.Logger
	now     func() time.Time
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{
		subs:    make(map[int64]map[string]chan Event),
		backlog: make(map[int64][]Event),
		limit:   defaultBacklog,
		log:     log.With("module", "notify"),
		now:     time.Now,
	}
}

// Subscribe registers a listener for operatorID. Backlogged events are
// delivered first. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(operatorID int64) (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, defaultBuffer)

	h.mu.Lock()
	if h.subs[operatorID] == nil {
		h.subs[operatorID] = make(map[string]chan Event)
	}
	h.subs[operatorID][id] = ch
	pending := h.backlog[operatorID]
	delete(h.backlog, operatorID)
	for _, ev := range pending {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[operatorID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, operatorID)
				}
			}
			close(ch)
		})
	}
}

// Subscribers reports how many live subscriptions operatorID has.
func (h *Hub) Subscribers(operatorID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[operatorID])
}

// Send delivers ev to operatorID.
func (h *Hub) Send(ctx context.Context, operatorID int64, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}
	ev.OperatorID = operatorID

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[operatorID]
	if len(subs) == 0 {
		q := append(h.backlog[operatorID], ev)
		if len(q) > h.limit {
			q = q[len(q)-h.limit:]
		}
		h.backlog[operatorID] = q
		return
	}
	for id, ch := range subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn(ctx, "subscriber too slow, event dropped", "operator", operatorID, "subscription", id, "kind", ev.Kind)
		}
	}
}

// Broadcast sends a copy of ev to each operator.
func (h *Hub) Broadcast(ctx context.Context, operatorIDs []int64, ev Event) {
	for _, id := range operatorIDs {
		e := ev
		e.ID = ""
		h.Send(ctx, id, e)
	}
}

var promptText = map[credentials.Kind]string{
	credentials.KindPhone:    "Directory authorization: send your phone number in international format, e.g. +15551234567",
	credentials.KindCode:     "Confirmation code: send the login code you just received",
	credentials.KindPassword: "Two-factor authentication: send your 2FA password",
}

// Prompt asks operatorID for a credential.
func (h *Hub) Prompt(ctx context.Context, operatorID int64, kind credentials.Kind) error {
	h.Send(ctx, operatorID, Event{Kind: KindPrompt, Credential: kind, Text: promptText[kind]})
	return nil
}

// Announce sends authorization status text.
func (h *Hub) Announce(ctx context.Context, operatorIDs []int64, text string) {
	h.Broadcast(ctx, operatorIDs, Event{Kind: KindAuth, Text: text})
}

// HandleFreed tells operators that name became available.
func (h *Hub) HandleFreed(ctx context.Context, operatorIDs []int64, t handles.Transition) {
	h.Broadcast(ctx, operatorIDs, Event{
		Kind:   KindFreed,
		Handle: t.Name,
		Text:   "Handle " + handles.Format(t.Name) + " is free (was " + string(t.Old) + ")",
	})
}
