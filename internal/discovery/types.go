// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package discovery is the Discovery & Env Publisher: atomic
// publication of the port/token descriptor and a shell-sourceable env
// script, plus background reaping of stale descriptors left behind by
// dead bridge processes. Grounded on internal/config.Loader's file
// discovery conventions and a lock-file shape seen elsewhere in the
// ecosystem: a small JSON struct with an embedded pid, rewritten/probed
// rather than trusted blindly.
package discovery

// IdeInfo optionally identifies the editor publishing the descriptor.
type IdeInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// PortDescriptor is the JSON file a client discovers to find this bridge
// instance.
type PortDescriptor struct {
	Port          int      `json:"port"`
	WorkspacePath string   `json:"workspacePath"`
	AuthToken     string   `json:"authToken"`
	IdeInfo       *IdeInfo `json:"ideInfo,omitempty"`
}
