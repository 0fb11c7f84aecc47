// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T, name string, mtime time.Time) string {
	t.Helper()
	dir := baseDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestScan_ReapsDeadPidRegardlessOfAge(t *testing.T) {
	path := writeEntry(t, "gemini-ide-server-999999-5000.json", time.Now())
	defer os.Remove(path)

	Scan()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "descriptor for a dead pid should be reaped even when fresh")
}

func TestScan_KeepsLiveProcessFileWithinMaxAge(t *testing.T) {
	pid := os.Getpid()
	name := "gemini-ide-server-" + strconv.Itoa(pid) + "-5001.json"
	path := writeEntry(t, name, time.Now())
	defer os.Remove(path)

	Scan()

	_, err := os.Stat(path)
	assert.NoError(t, err, "descriptor owned by a live process within 24h must survive")
}

func TestScan_ReapsOldFileEvenIfPidLive(t *testing.T) {
	pid := os.Getpid()
	name := "gemini-ide-server-" + strconv.Itoa(pid) + "-5002.json"
	path := writeEntry(t, name, time.Now().Add(-25*time.Hour))
	defer os.Remove(path)

	Scan()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestScan_IgnoresUnrelatedFiles(t *testing.T) {
	path := writeEntry(t, "not-a-bridge-file.txt", time.Now().Add(-48*time.Hour))
	defer os.Remove(path)

	Scan()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestScan_MissingDirectoryIsNotAnError(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir()) // baseDir() now names a directory that does not exist
	assert.NotPanics(t, Scan)
}
