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
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CodeSearchTool dispatches into C4's hybrid search (spec.md §4.3
// "Retrieval tools call into C4").
type CodeSearchTool struct {
	baseTool
}

func NewCodeSearchTool() *CodeSearchTool {
	return &CodeSearchTool{baseTool{
		name: "code_search", description: "Searches the workspace's code index (BM25 + PageRank fusion; no vector leg).",
		schema:    json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"context_length":{"type":"integer"}},"required":["query"]}`),
		safety:    Safe, readOnly: true, maxResult: 50_000,
	}}
}

func (c *CodeSearchTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (c *CodeSearchTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		Query         string `json:"query"`
		ContextLength int    `json:"context_length"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed code_search input"}}
	}
	if ectx.Index == nil {
		return Output{Content: "retrieval index not available", IsError: true}, nil
	}
	hits, err := ectx.Index.Search(ctx, p.Query, p.ContextLength)
	if err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	return Output{Content: formatHits(hits)}, nil
}

// SymbolSearchTool dispatches into C4's PageRank-weighted symbol lookup.
type SymbolSearchTool struct {
	baseTool
}

func NewSymbolSearchTool() *SymbolSearchTool {
	return &SymbolSearchTool{baseTool{
		name: "symbol_search", description: "Searches the workspace's extracted symbol tags.",
		schema:    json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"context_length":{"type":"integer"}},"required":["query"]}`),
		safety:    Safe, readOnly: true, maxResult: 50_000,
	}}
}

func (s *SymbolSearchTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (s *SymbolSearchTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		Query         string `json:"query"`
		ContextLength int    `json:"context_length"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed symbol_search input"}}
	}
	if ectx.Index == nil {
		return Output{Content: "retrieval index not available", IsError: true}, nil
	}
	hits, err := ectx.Index.SymbolSearch(ctx, p.Query, p.ContextLength)
	if err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	return Output{Content: formatHits(hits)}, nil
}

func formatHits(hits []SearchHit) string {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%s:%d-%d (score=%.3f)\n%s\n\n", h.FilePath, h.StartLine, h.EndLine, h.Score, h.Snippet)
	}
	return b.String()
}
