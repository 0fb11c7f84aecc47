// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ideadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// DisposeFunc cancels a subscription.
type DisposeFunc func()

// Adapter attaches to the editor's RPC socket. It emits the fixed event
// vocabulary upward via typed subscriptions and exposes show_diff/close_diff
// downward as correlated request/response calls.
type Adapter struct {
	conn   net.Conn
	writer *bufio.Writer

	writeMu sync.Mutex

	subMu sync.Mutex
	subs  map[string]map[int]func(json.RawMessage)
	nextSubID int

	pendingMu sync.Mutex
	pending   map[int64]chan wireMessage
	nextID    int64

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the editor RPC socket at socketPath and starts the read
// loop. The caller is responsible for calling Close.
func Dial(ctx context.Context, socketPath string) (*Adapter, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial editor rpc socket %q: %w", socketPath, err)
	}

	a := &Adapter{
		conn:    conn,
		writer:  bufio.NewWriter(conn),
		subs:    make(map[string]map[int]func(json.RawMessage)),
		pending: make(map[int64]chan wireMessage),
		done:    make(chan struct{}),
	}
	go a.readLoop()
	return a, nil
}

// Close closes the underlying socket and unblocks any in-flight calls.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		err = a.conn.Close()
	})
	return err
}

// readLoop scans newline-delimited JSON-RPC messages, dispatching
// notifications synchronously on this goroutine.
func (a *Adapter) readLoop() {
	scanner := bufio.NewScanner(a.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Printf("ideadapter: dropping malformed line: %v", err)
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			// Response to one of our downward calls.
			a.pendingMu.Lock()
			ch, ok := a.pending[*msg.ID]
			a.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
		case msg.Method != "":
			a.dispatch(msg.Method, msg.Params)
		default:
			log.Printf("ideadapter: dropping unrecognized message: %s", line)
		}
	}
}

func (a *Adapter) dispatch(method string, params json.RawMessage) {
	a.subMu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(a.subs[method]))
	for _, h := range a.subs[method] {
		handlers = append(handlers, h)
	}
	a.subMu.Unlock()

	for _, h := range handlers {
		h(params)
	}
}

func (a *Adapter) subscribe(method string, fn func(json.RawMessage)) DisposeFunc {
	a.subMu.Lock()
	if a.subs[method] == nil {
		a.subs[method] = make(map[int]func(json.RawMessage))
	}
	id := a.nextSubID
	a.nextSubID++
	a.subs[method][id] = fn
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subs[method], id)
		a.subMu.Unlock()
	}
}

// OnBufferEnter subscribes to buffer_enter events. Events with an empty or
// non-absolute path are dropped and logged.
func (a *Adapter) OnBufferEnter(cb func(path string, bufnr int)) DisposeFunc {
	return a.subscribe(MethodBufferEnter, func(raw json.RawMessage) {
		var p BufferEnterParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed buffer_enter: %v", err)
			return
		}
		if p.Path == "" || !filepath.IsAbs(p.Path) {
			log.Printf("ideadapter: dropping buffer_enter with non-absolute path %q", p.Path)
			return
		}
		cb(p.Path, p.Bufnr)
	})
}

// OnCursorMoved subscribes to cursor_moved events.
func (a *Adapter) OnCursorMoved(cb func(line, col int)) DisposeFunc {
	return a.subscribe(MethodCursorMoved, func(raw json.RawMessage) {
		var p CursorMovedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed cursor_moved: %v", err)
			return
		}
		cb(p.Line, p.Col)
	})
}

// OnVisualChanged subscribes to visual_changed events.
func (a *Adapter) OnVisualChanged(cb func(text string)) DisposeFunc {
	return a.subscribe(MethodVisualChanged, func(raw json.RawMessage) {
		var p VisualChangedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed visual_changed: %v", err)
			return
		}
		cb(p.SelectedText)
	})
}

// OnBufferClosed subscribes to buffer_closed events. Events with an empty or
// non-absolute path are dropped and logged.
func (a *Adapter) OnBufferClosed(cb func(path string)) DisposeFunc {
	return a.subscribe(MethodBufferClosed, func(raw json.RawMessage) {
		var p BufferClosedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed buffer_closed: %v", err)
			return
		}
		if p.Path == "" || !filepath.IsAbs(p.Path) {
			log.Printf("ideadapter: dropping buffer_closed with non-absolute path %q", p.Path)
			return
		}
		cb(p.Path)
	})
}

// OnDiffAccepted subscribes to diff_accepted events. Events with an empty or
// non-absolute filePath are dropped and logged.
func (a *Adapter) OnDiffAccepted(cb func(filePath, content string)) DisposeFunc {
	return a.subscribe(MethodDiffAccepted, func(raw json.RawMessage) {
		var p DiffAcceptedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed diff_accepted: %v", err)
			return
		}
		if p.FilePath == "" || !filepath.IsAbs(p.FilePath) {
			log.Printf("ideadapter: dropping diff_accepted with non-absolute filePath %q", p.FilePath)
			return
		}
		cb(p.FilePath, p.Content)
	})
}

// OnDiffRejected subscribes to diff_rejected events.
func (a *Adapter) OnDiffRejected(cb func(filePath string)) DisposeFunc {
	return a.subscribe(MethodDiffRejected, func(raw json.RawMessage) {
		var p DiffRejectedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("ideadapter: dropping malformed diff_rejected: %v", err)
			return
		}
		if p.FilePath == "" || !filepath.IsAbs(p.FilePath) {
			log.Printf("ideadapter: dropping diff_rejected with non-absolute filePath %q", p.FilePath)
			return
		}
		cb(p.FilePath)
	})
}

// ShowDiff invokes the editor's show_diff remote procedure. It resolves when
// the editor confirms the diff view is open; failure is surfaced to the
// caller.
func (a *Adapter) ShowDiff(ctx context.Context, filePath, newContent string) error {
	_, err := a.call(ctx, ProcShowDiff, ShowDiffArgs{FilePath: filePath, NewContent: newContent})
	return err
}

// CloseDiff invokes the editor's close_diff remote procedure, returning the
// edited content or nil if no such diff was open.
func (a *Adapter) CloseDiff(ctx context.Context, filePath string) (*string, error) {
	raw, err := a.call(ctx, ProcCloseDiff, CloseDiffArgs{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	var res CloseDiffResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode close_diff result: %w", err)
		}
	}
	return res.Content, nil
}

// call sends a correlated request and blocks until the matching response
// arrives, ctx is done, or the adapter is closed. There is no
// protocol-level timeout beyond the caller's own context.
func (a *Adapter) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	id := atomic.AddInt64(&a.nextID, 1)
	respCh := make(chan wireMessage, 1)

	a.pendingMu.Lock()
	a.pending[id] = respCh
	a.pendingMu.Unlock()
	defer func() {
		a.pendingMu.Lock()
		delete(a.pending, id)
		a.pendingMu.Unlock()
	}()

	msg := wireMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: paramsData}
	if err := a.writeMessage(msg); err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("editor rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, fmt.Errorf("ideadapter: connection closed")
	}
}

func (a *Adapter) writeMessage(msg wireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if _, err := a.writer.Write(data); err != nil {
		return err
	}
	if err := a.writer.WriteByte('\n'); err != nil {
		return err
	}
	return a.writer.Flush()
}
