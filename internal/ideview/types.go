// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ideview holds the editor-context data model (open files, cursor,
// selection) and the aggregator that maintains it.
package ideview

// MaxFiles is the FileList capacity.
const MaxFiles = 10

// MaxSelectedTextBytes truncates ingress selectedText.
const MaxSelectedTextBytes = 16384

// Cursor is a 1-indexed editor cursor position.
type Cursor struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// OpenFile describes one file the editor has open.
type OpenFile struct {
	Path         string  `json:"path"`
	Timestamp    int64   `json:"timestamp"`
	IsActive     bool    `json:"isActive"`
	Cursor       *Cursor `json:"cursor,omitempty"`
	SelectedText *string `json:"selectedText,omitempty"`
}

// clone returns a deep copy so snapshots handed to readers never alias
// aggregator-internal state.
func (f OpenFile) clone() OpenFile {
	out := f
	if f.Cursor != nil {
		c := *f.Cursor
		out.Cursor = &c
	}
	if f.SelectedText != nil {
		s := *f.SelectedText
		out.SelectedText = &s
	}
	return out
}

// WorkspaceState is the workspace-scoped portion of IdeContext.
type WorkspaceState struct {
	OpenFiles []OpenFile `json:"openFiles"`
	IsTrusted bool       `json:"isTrusted"`
}

// IdeContext is the single externally observable snapshot.
type IdeContext struct {
	WorkspaceState WorkspaceState `json:"workspaceState"`
}

func (s WorkspaceState) clone() WorkspaceState {
	files := make([]OpenFile, len(s.OpenFiles))
	for i, f := range s.OpenFiles {
		files[i] = f.clone()
	}
	return WorkspaceState{OpenFiles: files, IsTrusted: s.IsTrusted}
}

func (c IdeContext) clone() IdeContext {
	return IdeContext{WorkspaceState: c.WorkspaceState.clone()}
}
