// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tools implements the uniform tool contract the agent loop
// dispatches through: registration, JSON-schema validated input,
// permission arbitration, and concurrency-safe execution.
package tools

import (
	"context"
	"encoding/json"
)

// ConcurrencySafety classifies whether a tool's execute can run alongside
// other invocations without violating consistency.
type ConcurrencySafety int

const (
	Unsafe ConcurrencySafety = iota
	Safe
)

// ContextModifierKind tags the side-channel updates a tool hands back to
// the session beyond its textual result.
type ContextModifierKind int

const (
	FileReadModifier ContextModifierKind = iota
)

// ContextModifier is emitted by a tool's execution to update session-level
// tracking state (e.g. the file-read-before-edit map) without the tool
// reaching into SessionState directly.
type ContextModifier struct {
	Kind    ContextModifierKind
	Path    string
	Content string
}

// Output is the result handed back to the agent loop for one execution.
type Output struct {
	Content   string
	IsError   bool
	Modifiers []ContextModifier
	Metadata  any
}

// ExecContext carries everything a tool's execute/check_permission needs
// beyond its typed input: the session's file-read tracker, working
// directory, and the sandbox/plan-mode restrictions in force.
type ExecContext struct {
	SessionID    string
	WorkingDir   string
	SandboxMode  SandboxMode
	PlanModeOn   bool
	PlanFilePath string
	FileTracker  *FileTracker
	Index        RetrievalBackend
}

// SandboxMode mirrors the environment interface's three write postures.
type SandboxMode int

const (
	ReadOnly SandboxMode = iota
	WorkspaceWrite
	FullAccess
)

// RetrievalBackend is the narrow surface C3's retrieval tools call into
// C4 through, keeping internal/tools free of a direct internal/index
// import cycle risk and matching spec.md's "Retrieval tools call into C4"
// contract as an explicit interface (spec.md §6).
type RetrievalBackend interface {
	Search(ctx context.Context, query string, contextLengthHint int) ([]SearchHit, error)
	SymbolSearch(ctx context.Context, query string, contextLengthHint int) ([]SearchHit, error)
}

// SearchHit is one retrieval result surfaced to the model.
type SearchHit struct {
	FilePath string
	StartLine int
	EndLine   int
	Snippet   string
	Score     float64
}

// Tool is the uniform contract every built-in and retrieval tool
// implements (spec.md §4.3 "Tool contract").
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	ConcurrencySafety() ConcurrencySafety
	IsReadOnly() bool
	IsConcurrencySafeFor(input json.RawMessage) bool
	MaxResultSizeChars() int
	CheckPermission(ctx context.Context, input json.RawMessage, ectx *ExecContext) PermissionResult
	Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error)
}

// baseTool supplies the defaults most tools share so concrete tools only
// override what differs.
type baseTool struct {
	name        string
	description string
	schema      json.RawMessage
	safety      ConcurrencySafety
	readOnly    bool
	maxResult   int
}

func (b baseTool) Name() string                    { return b.name }
func (b baseTool) Description() string              { return b.description }
func (b baseTool) InputSchema() json.RawMessage     { return b.schema }
func (b baseTool) ConcurrencySafety() ConcurrencySafety { return b.safety }
func (b baseTool) IsReadOnly() bool                 { return b.readOnly }
func (b baseTool) MaxResultSizeChars() int {
	if b.maxResult <= 0 {
		return 50_000
	}
	return b.maxResult
}
func (b baseTool) IsConcurrencySafeFor(json.RawMessage) bool {
	return b.readOnly || b.safety == Safe
}
