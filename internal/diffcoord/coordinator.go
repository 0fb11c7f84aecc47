// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package diffcoord invokes the editor's diff procedures and translates
// editor-emitted diff outcomes into protocol notifications.
package diffcoord

import (
	"context"
	"sync"

	"github.com/climbus/ide-bridge/internal/ideadapter"
)

// Notification method names emitted by the coordinator.
const (
	NotifyDiffAccepted = "ide/diffAccepted"
	NotifyDiffRejected = "ide/diffRejected"
)

// DiffAcceptedParams is the params payload of an ide/diffAccepted notification.
type DiffAcceptedParams struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// DiffRejectedParams is the params payload of an ide/diffRejected notification.
type DiffRejectedParams struct {
	FilePath string `json:"filePath"`
}

// OutcomeFunc receives one translated diff outcome notification. method is
// one of NotifyDiffAccepted/NotifyDiffRejected; params is the corresponding
// *Params struct.
type OutcomeFunc func(method string, params interface{})

// DisposeFunc cancels a subscription.
type DisposeFunc func()

// editorSocket is the subset of *ideadapter.Adapter the coordinator needs,
// narrowed to an interface so tests can supply a fake editor peer.
type editorSocket interface {
	ShowDiff(ctx context.Context, filePath, newContent string) error
	CloseDiff(ctx context.Context, filePath string) (*string, error)
	OnDiffAccepted(cb func(filePath, content string)) ideadapter.DisposeFunc
	OnDiffRejected(cb func(filePath string)) ideadapter.DisposeFunc
}

// Coordinator wraps the editor adapter's diff procedures and re-publishes diff outcomes as
// protocol notifications for the Session Hub to broadcast. Ordering between
// diff_* notifications and ide/contextUpdate is the originating editor
// events' arrival order; the coordinator never reorders.
type Coordinator struct {
	editor editorSocket

	subMu  sync.Mutex
	subs   map[int]OutcomeFunc
	nextID int

	disposeAccepted ideadapter.DisposeFunc
	disposeRejected ideadapter.DisposeFunc
}

// New creates a Coordinator bound to the given editor socket and subscribes
// once to diff_accepted/diff_rejected.
func New(editor editorSocket) *Coordinator {
	c := &Coordinator{
		editor: editor,
		subs:   make(map[int]OutcomeFunc),
	}
	c.disposeAccepted = editor.OnDiffAccepted(func(filePath, content string) {
		c.publish(NotifyDiffAccepted, DiffAcceptedParams{FilePath: filePath, Content: content})
	})
	c.disposeRejected = editor.OnDiffRejected(func(filePath string) {
		c.publish(NotifyDiffRejected, DiffRejectedParams{FilePath: filePath})
	})
	return c
}

// ShowDiff invokes the editor's show_diff remote procedure.
func (c *Coordinator) ShowDiff(ctx context.Context, filePath, newContent string) error {
	return c.editor.ShowDiff(ctx, filePath, newContent)
}

// CloseDiff invokes the editor's close_diff remote procedure, returning the
// edited content or nil if no such diff was open.
func (c *Coordinator) CloseDiff(ctx context.Context, filePath string) (*string, error) {
	return c.editor.CloseDiff(ctx, filePath)
}

// OnOutcome subscribes to translated diff outcome notifications (the
// Session Hub's broadcast-diff consumer, ).
func (c *Coordinator) OnOutcome(cb OutcomeFunc) DisposeFunc {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = cb
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Coordinator) publish(method string, params interface{}) {
	c.subMu.Lock()
	cbs := make([]OutcomeFunc, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.subMu.Unlock()

	for _, cb := range cbs {
		cb(method, params)
	}
}

// Close cancels the coordinator's subscription to the editor socket. It
// does not close the socket itself.
func (c *Coordinator) Close() {
	if c.disposeAccepted != nil {
		c.disposeAccepted()
	}
	if c.disposeRejected != nil {
		c.disposeRejected()
	}
}
