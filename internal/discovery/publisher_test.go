// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_WritesDescriptorAndEnvScriptWithMode0600(t *testing.T) {
	pid := os.Getpid()
	pub, err := Publish(pid, 54321, "neovim", "/workspace", PortDescriptor{
		Port:          54321,
		WorkspacePath: "/workspace",
		AuthToken:     "tok-abc",
	})
	require.NoError(t, err)
	defer pub.Unpublish()

	descInfo, err := os.Stat(pub.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), descInfo.Mode().Perm())
	assert.Equal(t, filepath.Join(baseDir(), "gemini-ide-server-"+strconv.Itoa(pid)+"-54321.json"), pub.DescriptorPath())

	var desc PortDescriptor
	data, err := os.ReadFile(pub.DescriptorPath())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &desc))
	assert.Equal(t, 54321, desc.Port)
	assert.Equal(t, "tok-abc", desc.AuthToken)

	envInfo, err := os.Stat(pub.EnvScriptPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), envInfo.Mode().Perm())

	envData, err := os.ReadFile(pub.EnvScriptPath())
	require.NoError(t, err)
	assert.Contains(t, string(envData), "export IDE_BRIDGE_SERVER_PORT=54321")
	assert.Contains(t, string(envData), "export IDE_BRIDGE_AUTH_TOKEN=tok-abc")
	assert.Contains(t, string(envData), "export IDE_BRIDGE_EDITOR=neovim")
}

func TestUnpublish_RemovesBothFiles(t *testing.T) {
	pid := os.Getpid()
	pub, err := Publish(pid, 54322, "neovim", "/workspace", PortDescriptor{Port: 54322})
	require.NoError(t, err)

	descPath, envPath := pub.DescriptorPath(), pub.EnvScriptPath()
	pub.Unpublish()

	_, err = os.Stat(descPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(envPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUnpublish_NilReceiverIsNoop(t *testing.T) {
	var pub *Publisher
	assert.NotPanics(t, func() { pub.Unpublish() })
}

