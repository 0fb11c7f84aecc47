// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const baseDirName = "gemini/ide"

var envScriptTemplate = template.Must(template.New("env").Parse(
	`export IDE_BRIDGE_SERVER_PORT={{.Port}}
export IDE_BRIDGE_WORKSPACE_PATH={{.WorkspacePath}}
export IDE_BRIDGE_AUTH_TOKEN={{.AuthToken}}
export IDE_BRIDGE_EDITOR={{.Editor}}
`))

type envScriptData struct {
	Port          int
	WorkspacePath string
	AuthToken     string
	Editor        string
}

// Publisher owns the descriptor and env-script files for this bridge
// process and their lifecycle (write on bind, unlink on shutdown).
type Publisher struct {
	dir            string
	descriptorPath string
	envScriptPath  string
}

// baseDir returns <tmp>/gemini/ide/.
func baseDir() string {
	return filepath.Join(os.TempDir(), baseDirName)
}

// Publish ensures the shared directory exists and atomically writes the
// PortDescriptor and EnvScript for pid/port/editor.
func Publish(pid, port int, editor, workspacePath string, desc PortDescriptor) (*Publisher, error) {
	dir := baseDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("discovery: create %s: %w", dir, err)
	}

	descriptorName := fmt.Sprintf("gemini-ide-server-%d-%d.json", pid, port)
	descriptorPath := filepath.Join(dir, descriptorName)
	descBytes, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("discovery: marshal descriptor: %w", err)
	}
	if err := writeThenChmod(descriptorPath, descBytes, 0o600); err != nil {
		return nil, fmt.Errorf("discovery: write descriptor: %w", err)
	}

	envName := fmt.Sprintf("%s-env-%d.sh", editor, pid)
	envPath := filepath.Join(dir, envName)
	var envBuf []byte
	envBuf, err = renderEnvScript(envScriptData{
		Port:          port,
		WorkspacePath: workspacePath,
		AuthToken:     desc.AuthToken,
		Editor:        editor,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: render env script: %w", err)
	}
	if err := writeThenChmod(envPath, envBuf, 0o600); err != nil {
		return nil, fmt.Errorf("discovery: write env script: %w", err)
	}

	return &Publisher{dir: dir, descriptorPath: descriptorPath, envScriptPath: envPath}, nil
}

func renderEnvScript(data envScriptData) ([]byte, error) {
	var buf bytes.Buffer
	if err := envScriptTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeThenChmod writes data to a temp file in the same directory, chmods
// it, then renames it into place — rename is atomic on POSIX so readers
// never observe a partially written descriptor.
func writeThenChmod(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Unpublish unlinks the descriptor and env script written by Publish
//. Safe to call more than once and safe to call
// from a shutdown handler racing process exit; errors are swallowed since
// cleanup is best-effort.
func (p *Publisher) Unpublish() {
	if p == nil {
		return
	}
	os.Remove(p.descriptorPath)
	os.Remove(p.envScriptPath)
}

// DescriptorPath returns the path of the published PortDescriptor.
func (p *Publisher) DescriptorPath() string {
	if p == nil {
		return ""
	}
	return p.descriptorPath
}

// EnvScriptPath returns the path of the published EnvScript.
func (p *Publisher) EnvScriptPath() string {
	if p == nil {
		return ""
	}
	return p.envScriptPath
}
