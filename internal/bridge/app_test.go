// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEditorPeer accepts one connection on a Unix socket and just keeps
// the line-based reader alive; it never initiates messages, which is
// enough to exercise App.Initialize/Start/Shutdown without a real editor.
func fakeEditorPeer(t *testing.T, socketPath string) (stop func()) {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			// Drain silently; the bridge only writes ShowDiff/CloseDiff
			// calls here, which this test never triggers.
		}
	}()

	return func() { ln.Close() }
}

func TestRun_InitializeFailsOnBadSocket(t *testing.T) {
	app := New(Options{SocketPath: "/nonexistent/path/to.sock"})
	err := app.Initialize(context.Background())
	assert.Error(t, err)
}

func TestApp_InitializeStartShutdown(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "editor.sock")
	stop := fakeEditorPeer(t, socketPath)
	defer stop()

	app := New(Options{SocketPath: socketPath, WorkspacePath: dir})
	require.NoError(t, app.Initialize(context.Background()))
	require.NoError(t, app.Start(context.Background()))

	require.NotEmpty(t, app.publisher.DescriptorPath())

	resp, err := http.Get(healthzURL(t, app))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func healthzURL(t *testing.T, app *App) string {
	t.Helper()
	return "http://" + healthzHost(t, app) + "/healthz"
}

func healthzHost(t *testing.T, app *App) string {
	t.Helper()
	require.NotNil(t, app.httpServer)
	return app.listenerAddr()
}
