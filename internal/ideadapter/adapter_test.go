// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ideadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_NotificationDispatch(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "editor.sock")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			serverConnCh <- conn
		}
	}()

	a, err := Dial(context.Background(), sockPath)
	require.NoError(t, err)
	defer a.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	type bufferEnterCall struct {
		path  string
		bufnr int
	}
	got := make(chan bufferEnterCall, 1)
	dispose := a.OnBufferEnter(func(path string, bufnr int) {
		got <- bufferEnterCall{path, bufnr}
	})
	defer dispose()

	_, err = serverConn.Write([]byte(`{"jsonrpc":"2.0","method":"buffer_enter","params":{"path":"/a/b.go","bufnr":3}}` + "\n"))
	require.NoError(t, err)

	select {
	case call := <-got:
		assert.Equal(t, "/a/b.go", call.path)
		assert.Equal(t, 3, call.bufnr)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for buffer_enter dispatch")
	}
}

func TestDial_DropsNonAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "editor.sock")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		serverConnCh <- conn
	}()

	a, err := Dial(context.Background(), sockPath)
	require.NoError(t, err)
	defer a.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	got := make(chan string, 2)
	dispose := a.OnBufferEnter(func(path string, bufnr int) {
		got <- path
	})
	defer dispose()

	serverConn.Write([]byte(`{"jsonrpc":"2.0","method":"buffer_enter","params":{"path":"relative.go","bufnr":1}}` + "\n"))
	serverConn.Write([]byte(`{"jsonrpc":"2.0","method":"buffer_enter","params":{"path":"/abs.go","bufnr":1}}` + "\n"))

	select {
	case path := <-got:
		assert.Equal(t, "/abs.go", path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestShowDiff_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "editor.sock")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		serverConnCh <- conn
	}()

	a, err := Dial(context.Background(), sockPath)
	require.NoError(t, err)
	defer a.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	// Act as the editor: read the request, respond with a matching id.
	go func() {
		scanner := bufio.NewScanner(serverConn)
		require.True(t, scanner.Scan())
		var req wireMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &req))
		assert.Equal(t, ProcShowDiff, req.Method)

		resp := wireMessage{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{}`)}
		data, _ := json.Marshal(resp)
		serverConn.Write(append(data, '\n'))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = a.ShowDiff(ctx, "/x", "hello")
	assert.NoError(t, err)
}

func TestCloseDiff_ReturnsContent(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "editor.sock")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		serverConnCh <- conn
	}()

	a, err := Dial(context.Background(), sockPath)
	require.NoError(t, err)
	defer a.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	go func() {
		scanner := bufio.NewScanner(serverConn)
		require.True(t, scanner.Scan())
		var req wireMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &req))
		assert.Equal(t, ProcCloseDiff, req.Method)

		resp := wireMessage{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"content":"edited text"}`)}
		data, _ := json.Marshal(resp)
		serverConn.Write(append(data, '\n'))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	content, err := a.CloseDiff(ctx, "/x")
	require.NoError(t, err)
	require.NotNil(t, content)
	assert.Equal(t, "edited text", *content)
}

func TestCall_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "editor.sock")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		serverConnCh <- conn
	}()

	a, err := Dial(context.Background(), sockPath)
	require.NoError(t, err)
	defer a.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = a.CloseDiff(ctx, "/never-answered")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
