// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/climbus/ide-bridge/internal/ideview"
)

// clientSession narrows server.ClientSession to what the hub needs:
// mcp-go gives no way to push a server-initiated notification to a
// session outside of a request context, so the hub keeps its own
// registry of live handles.
type clientSession interface {
	SessionID() string
	NotificationChannel() chan<- mcp.JSONRPCNotification
	Initialized() bool
}

type entry struct {
	client clientSession
	meta   *Session
	stop   chan struct{}

	mu sync.Mutex
}

// Hub implements the Session Hub: session lifecycle, keep-alive, and
// broadcast fan-out.
type Hub struct {
	mu      sync.RWMutex
	entries map[string]*entry

	keepaliveInterval  time.Duration
	keepaliveMaxMissed int

	contextFn func() ideview.IdeContext
}

// New creates a Hub. contextFn returns the context aggregator's current
// snapshot and is called whenever the hub needs to build an
// ide/contextUpdate notification.
func New(keepaliveInterval time.Duration, keepaliveMaxMissed int, contextFn func() ideview.IdeContext) *Hub {
	return &Hub{
		entries:            make(map[string]*entry),
		keepaliveInterval:  keepaliveInterval,
		keepaliveMaxMissed: keepaliveMaxMissed,
		contextFn:          contextFn,
	}
}

// Hooks builds the mcp-go server.Hooks that drive session Create/Destroy
// via AddBeforeInitialize / AddOnUnregisterSession.
func (h *Hub) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeInitialize(func(ctx context.Context, id any, _ *mcp.InitializeRequest) {
		if sess := server.ClientSessionFromContext(ctx); sess != nil {
			h.create(sess)
		}
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, sess server.ClientSession) {
		h.destroy(sess.SessionID())
	})
	return hooks
}

// create allocates a session record, enqueues the initial ide/contextUpdate
// onto its notification channel, and starts its keep-alive timer.
//
// This runs synchronously from the AddBeforeInitialize hook, i.e. before
// the client's initialize call has even returned and well before it opens
// its GET stream. The send is non-blocking (the channel is buffered), so
// the notification just sits there until the GET stream starts draining
// it — at which point it is the first frame the client ever reads. Firing
// this from the GET handler instead would be too late: that handler blocks
// for the life of the stream, so any code after it only runs once the
// client has already disconnected.
func (h *Hub) create(sess clientSession) {
	id := sess.SessionID()

	h.mu.Lock()
	if _, exists := h.entries[id]; exists {
		h.mu.Unlock()
		return
	}
	e := &entry{
		client: sess,
		meta:   &Session{ID: id},
		stop:   make(chan struct{}),
	}
	h.entries[id] = e
	h.mu.Unlock()

	h.deliverInitialContext(e)
	go h.keepaliveLoop(id, e)
}

// destroy removes a session's record and stops its keep-alive timer.
func (h *Hub) destroy(id string) {
	h.mu.Lock()
	e, ok := h.entries[id]
	if ok {
		delete(h.entries, id)
	}
	h.mu.Unlock()

	if ok {
		e.mu.Lock()
		select {
		case <-e.stop:
		default:
			close(e.stop)
		}
		e.mu.Unlock()
	}
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Has reports whether a session id is currently live.
func (h *Hub) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.entries[id]
	return ok
}

// keepaliveLoop implements the keep-alive state machine: active -> failing (>=1
// missed) -> abandoned (>=3 missed) -> closed. The loop exits once the
// session is abandoned; the transport's own close will fire destroy() via
// the unregister hook.
func (h *Hub) keepaliveLoop(id string, e *entry) {
	ticker := time.NewTicker(h.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.ping(e); err != nil {
				e.mu.Lock()
				e.meta.MissedPings++
				missed := e.meta.MissedPings
				e.mu.Unlock()
				log.Printf("sessionhub: ping failed for session %s (missed=%d): %v", id, missed, err)
				if missed >= h.keepaliveMaxMissed {
					log.Printf("sessionhub: session %s abandoned after %d missed pings", id, missed)
					return
				}
			} else {
				e.mu.Lock()
				e.meta.MissedPings = 0
				e.mu.Unlock()
			}
		case <-e.stop:
			return
		}
	}
}

func (h *Hub) ping(e *entry) error {
	notification := mcp.JSONRPCNotification{
		JSONRPC: "2.0",
		Notification: mcp.Notification{
			Method: NotifyPing,
		},
	}
	return send(e.client, notification)
}

// deliverInitialContext sends exactly one ide/contextUpdate for e, the
// first time it is called; later calls (the duplicate-create guard in
// create already rules most of these out, but the InitialContextSent flag
// keeps this safe against any other caller) are no-ops.
//
// Unlike pushNotification, this does not gate on e.client.Initialized():
// it runs from AddBeforeInitialize, at which point the session is by
// definition not yet initialized.
func (h *Hub) deliverInitialContext(e *entry) {
	e.mu.Lock()
	if e.meta.InitialContextSent {
		e.mu.Unlock()
		return
	}
	e.meta.InitialContextSent = true
	e.mu.Unlock()

	notification, err := buildNotification(NotifyContextUpdate, h.contextFn())
	if err != nil {
		log.Printf("sessionhub: build initial context for %s: %v", e.client.SessionID(), err)
		return
	}
	if err := send(e.client, notification); err != nil {
		log.Printf("sessionhub: deliver initial context for %s: %v", e.client.SessionID(), err)
	}
}

// BroadcastContext sends an ide/contextUpdate built from the aggregator's
// current state to every live session. Dispatch across sessions is
// concurrent (golang.org/x/sync/errgroup); each session's own send still
// happens on its own notification channel in submission order, preserving
// per-session ordering.
func (h *Hub) BroadcastContext(ctx context.Context) error {
	return h.broadcast(ctx, NotifyContextUpdate, h.contextFn())
}

// BroadcastDiff sends the notification produced by the diff coordinator
// to every live session.
func (h *Hub) BroadcastDiff(ctx context.Context, method string, params interface{}) error {
	return h.broadcast(ctx, method, params)
}

func (h *Hub) broadcast(ctx context.Context, method string, params interface{}) error {
	h.mu.RLock()
	entries := make([]*entry, 0, len(h.entries))
	for _, e := range h.entries {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := h.pushNotification(e, method, params); err != nil {
				log.Printf("sessionhub: broadcast %s to %s failed: %v", method, e.meta.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (h *Hub) pushNotification(e *entry, method string, params interface{}) error {
	if !e.client.Initialized() {
		return nil
	}

	notification, err := buildNotification(method, params)
	if err != nil {
		return err
	}
	return send(e.client, notification)
}

// buildNotification marshals params into the flat field map a
// mcp.JSONRPCNotification carries, shared by every notification the hub
// sends (ping excepted, which carries no params).
func buildNotification(method string, params interface{}) (mcp.JSONRPCNotification, error) {
	fields, err := toFieldMap(params)
	if err != nil {
		return mcp.JSONRPCNotification{}, fmt.Errorf("sessionhub: marshal %s params: %w", method, err)
	}
	return mcp.JSONRPCNotification{
		JSONRPC: "2.0",
		Notification: mcp.Notification{
			Method: method,
			Params: mcp.NotificationParams{AdditionalFields: fields},
		},
	}, nil
}

func send(sess clientSession, notification mcp.JSONRPCNotification) error {
	ch := sess.NotificationChannel()
	select {
	case ch <- notification:
		return nil
	default:
		return fmt.Errorf("notification channel full for session %s", sess.SessionID())
	}
}

// toFieldMap converts a typed params struct into the flat field map
// mcp.NotificationParams.AdditionalFields expects, so the wire payload is
// the params object itself rather than nested under an extra key.
func toFieldMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
