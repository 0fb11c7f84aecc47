// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridgehttp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// diffCoordinator is the narrow slice of diffcoord.Coordinator the tool
// handlers need; kept as an interface so tests can supply a fake without
// dialing a real editor socket.
type diffCoordinator interface {
	ShowDiff(ctx context.Context, filePath, newContent string) error
	CloseDiff(ctx context.Context, filePath string) (*string, error)
}

// registerTools exposes the openDiff/closeDiff MCP tool surface on every
// session, using the mcp.NewTool/server.AddTool registration pattern.
func registerTools(mcpServer *server.MCPServer, coord diffCoordinator) {
	openDiff := mcp.NewTool("openDiff",
		mcp.WithDescription("Show a diff of a proposed edit to filePath in the editor."),
		mcp.WithString("filePath", mcp.Required(), mcp.Description("Absolute path of the file being edited.")),
		mcp.WithString("newContent", mcp.Required(), mcp.Description("Full proposed file content.")),
	)
	server.AddTool(mcpServer, openDiff, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := req.RequireString("filePath")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		newContent, err := req.RequireString("newContent")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := coord.ShowDiff(ctx, filePath, newContent); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(""), nil
	})

	closeDiff := mcp.NewTool("closeDiff",
		mcp.WithDescription("Close the diff for filePath; returns the edited content if the editor still had one open."),
		mcp.WithString("filePath", mcp.Required(), mcp.Description("Absolute path of the file whose diff should close.")),
	)
	server.AddTool(mcpServer, closeDiff, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := req.RequireString("filePath")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := coord.CloseDiff(ctx, filePath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result := struct {
			Content *string `json:"content,omitempty"`
		}{Content: content}
		body, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	})
}
