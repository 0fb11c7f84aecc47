// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ideview

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/climbus/ide-bridge/internal/watcher"
)

const debounceKey = "ide-context"

// ChangeFunc is invoked with no arguments; subscribers read State() themselves.
type ChangeFunc func()

// DisposeFunc cancels a subscription. Safe to call from within the callback
// it cancels.
type DisposeFunc func()

// Aggregator maintains the FileList and notifies subscribers after a
// trailing debounce: every mutation re-arms one timer. There is no
// separate throttle, so an unbroken stream of mutations delays the
// notification until the stream pauses for one debounce interval.
//
// The FileList is guarded by mu; subscriber callbacks always run outside
// the lock.
type Aggregator struct {
	mu        sync.Mutex
	files     []OpenFile
	isTrusted bool
	clock     func() int64

	debouncer *watcher.Debouncer

	subMu sync.Mutex
	subs  map[int]ChangeFunc
	nextID int

	// dispatchMu serializes subscriber invocation so subscribers are never
	// called concurrently for this aggregator.
	dispatchMu sync.Mutex
}

// NewAggregator creates an aggregator with the given debounce duration.
func NewAggregator(debounce time.Duration) *Aggregator {
	a := &Aggregator{
		subs:      make(map[int]ChangeFunc),
		isTrusted: true,
		clock:     func() int64 { return time.Now().UnixNano() },
	}
	a.debouncer = watcher.NewDebouncer(debounce)
	return a
}

// SetDebounce changes the debounce duration for future schedules.
func (a *Aggregator) SetDebounce(d time.Duration) {
	a.debouncer.SetDuration(d)
}

// State returns a deep copy of the current IdeContext (copy-on-read, ).
func (a *Aggregator) State() IdeContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Aggregator) stateLocked() IdeContext {
	ctx := IdeContext{WorkspaceState: WorkspaceState{
		OpenFiles: append([]OpenFile(nil), a.files...),
		IsTrusted: a.isTrusted,
	}}
	return ctx.clone()
}

// SetTrusted records the editor's workspace-trust state. There is no ingress
// event for this in the fixed vocabulary; callers that learn of
// it out-of-band (e.g. at attach time) can set it directly.
func (a *Aggregator) SetTrusted(trusted bool) {
	a.mu.Lock()
	a.isTrusted = trusted
	a.mu.Unlock()
	a.scheduleNotify()
}

// OnDidChange registers a subscriber, returning a dispose handle.
func (a *Aggregator) OnDidChange(cb ChangeFunc) DisposeFunc {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = cb
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

// Close cancels any pending debounce timer.
func (a *Aggregator) Close() {
	a.debouncer.Stop()
}

// BufferEnter handles a buffer_enter ingress event.
func (a *Aggregator) BufferEnter(path string) {
	if path == "" || !filepath.IsAbs(path) {
		log.Printf("ideview: dropping buffer_enter with non-absolute path %q", path)
		return
	}

	a.mu.Lock()
	now := a.clock()
	a.removePathLocked(path)
	a.demoteActiveLocked()
	entry := OpenFile{Path: path, Timestamp: now, IsActive: true}
	a.files = append([]OpenFile{entry}, a.files...)
	if len(a.files) > MaxFiles {
		a.files = a.files[:MaxFiles]
	}
	a.mu.Unlock()

	a.scheduleNotify()
}

// CursorMoved handles a cursor_moved ingress event.
func (a *Aggregator) CursorMoved(line, col int) {
	if line < 1 || col < 1 {
		log.Printf("ideview: dropping cursor_moved with invalid position %d:%d", line, col)
		return
	}

	a.mu.Lock()
	if idx := a.activeIndexLocked(); idx >= 0 {
		a.files[idx].Cursor = &Cursor{Line: line, Character: col}
	}
	a.mu.Unlock()

	a.scheduleNotify()
}

// VisualChanged handles a visual_changed ingress event.
func (a *Aggregator) VisualChanged(text string) {
	if len(text) > MaxSelectedTextBytes {
		text = text[:MaxSelectedTextBytes]
	}

	a.mu.Lock()
	if idx := a.activeIndexLocked(); idx >= 0 {
		if text == "" {
			a.files[idx].SelectedText = nil
		} else {
			a.files[idx].SelectedText = &text
		}
	}
	a.mu.Unlock()

	a.scheduleNotify()
}

// BufferClosed handles a buffer_closed ingress event.
func (a *Aggregator) BufferClosed(path string) {
	a.mu.Lock()
	a.removePathLocked(path)
	a.mu.Unlock()

	a.scheduleNotify()
}

func (a *Aggregator) removePathLocked(path string) {
	for i, f := range a.files {
		if f.Path == path {
			a.files = append(a.files[:i], a.files[i+1:]...)
			return
		}
	}
}

func (a *Aggregator) demoteActiveLocked() {
	for i := range a.files {
		if a.files[i].IsActive {
			a.files[i].IsActive = false
			a.files[i].Cursor = nil
			a.files[i].SelectedText = nil
			return
		}
	}
}

func (a *Aggregator) activeIndexLocked() int {
	for i, f := range a.files {
		if f.IsActive {
			return i
		}
	}
	return -1
}

// scheduleNotify (re)arms the debounce timer; when it fires, every
// subscriber observes the post-mutation state.
func (a *Aggregator) scheduleNotify() {
	a.debouncer.Debounce(debounceKey, a.notifySubscribers)
}

func (a *Aggregator) notifySubscribers() {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()

	a.subMu.Lock()
	cbs := make([]ChangeFunc, 0, len(a.subs))
	for _, cb := range a.subs {
		cbs = append(cbs, cb)
	}
	a.subMu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
