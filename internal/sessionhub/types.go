// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionhub owns the set of live client sessions, fans out context
// and diff notifications, and enforces the keep-alive contract.
package sessionhub

// Notification method names the hub pushes to sessions.
const (
	NotifyContextUpdate = "ide/contextUpdate"
	NotifyPing          = "ping"
)

// Session is the hub's bookkeeping record for one live client, deliberately
// distinct from the mcp-go server.ClientSession it wraps: the hub never
// assumes a particular MCP server implementation beyond the narrow
// clientSession interface in hub.go.
type Session struct {
	ID                 string
	MissedPings        int
	InitialContextSent bool
}
