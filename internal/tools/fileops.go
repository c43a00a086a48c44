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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/coderunner/engine/internal/fsext"
)

// ReadTool reads a file's content, recording it in the session's
// file-read tracker so Edit can later verify freshness.
type ReadTool struct{ baseTool }

func NewReadTool() *ReadTool {
	return &ReadTool{baseTool{
		name: "read", description: "Reads a file's contents.",
		schema:    json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string"},"offset":{"type":"integer"},"limit":{"type":"integer"}},"required":["file_path"]}`),
		safety:    Safe, readOnly: true, maxResult: 100_000,
	}}
}

func (r *ReadTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (r *ReadTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed read input"}}
	}
	data, err := os.ReadFile(p.FilePath)
	if err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}
	content := string(data)
	if p.Offset > 0 || p.Limit > 0 {
		lines := strings.Split(content, "\n")
		start := p.Offset
		if start < 0 || start > len(lines) {
			start = 0
		}
		end := len(lines)
		if p.Limit > 0 && start+p.Limit < end {
			end = start + p.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}
	return Output{
		Content:   content,
		Modifiers: []ContextModifier{{Kind: FileReadModifier, Path: p.FilePath, Content: string(data)}},
	}, nil
}

// WriteTool writes a file's full content (distinct from Edit's
// substring-replace contract).
type WriteTool struct{ baseTool }

func NewWriteTool() *WriteTool {
	return &WriteTool{baseTool{
		name: "write", description: "Writes a file's full contents, creating it if absent.",
		schema:    json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string"},"content":{"type":"string"}},"required":["file_path","content"]}`),
		safety:    Unsafe, readOnly: false,
	}}
}

func (w *WriteTool) CheckPermission(ctx context.Context, input json.RawMessage, ectx *ExecContext) PermissionResult {
	var p struct {
		FilePath string `json:"file_path"`
	}
	_ = json.Unmarshal(input, &p)
	if ectx.PlanModeOn && p.FilePath != ectx.PlanFilePath {
		return ResultDenied("plan mode: only the plan file is writable")
	}
	return ResultNeedsApproval(ApprovalRequest{ToolName: w.Name(), Description: "writing " + p.FilePath})
}

func (w *WriteTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed write input"}}
	}
	if err := os.MkdirAll(filepath.Dir(p.FilePath), 0o755); err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	if err := os.WriteFile(p.FilePath, []byte(p.Content), 0o644); err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	return Output{
		Content:   fmt.Sprintf("wrote %s", p.FilePath),
		Modifiers: []ContextModifier{{Kind: FileReadModifier, Path: p.FilePath, Content: p.Content}},
	}, nil
}

// GlobTool finds files matching a glob pattern.
type GlobTool struct{ baseTool }

func NewGlobTool() *GlobTool {
	return &GlobTool{baseTool{
		name: "glob", description: "Finds files matching a glob pattern.",
		schema:    json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"}},"required":["pattern"]}`),
		safety:    Safe, readOnly: true,
	}}
}

func (g *GlobTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (g *GlobTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed glob input"}}
	}
	root := p.Path
	if root == "" {
		root = ectx.WorkingDir
	}
	matches, err := filepath.Glob(filepath.Join(root, p.Pattern))
	if err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	sort.Strings(matches)
	return Output{Content: strings.Join(matches, "\n")}, nil
}

// GrepTool searches file contents by regexp, matching the teacher's
// GrepParams shape (pattern/path/include/literal_text).
type GrepTool struct{ baseTool }

func NewGrepTool() *GrepTool {
	return &GrepTool{baseTool{
		name: "grep", description: "Searches file contents by pattern.",
		schema:    json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"include":{"type":"string"},"literal_text":{"type":"boolean"}},"required":["pattern"]}`),
		safety:    Safe, readOnly: true, maxResult: 50_000,
	}}
}

func (g *GrepTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (g *GrepTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		Pattern     string `json:"pattern"`
		Path        string `json:"path"`
		Include     string `json:"include"`
		LiteralText bool   `json:"literal_text"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed grep input"}}
	}
	root := p.Path
	if root == "" {
		root = ectx.WorkingDir
	}
	pattern := p.Pattern
	if p.LiteralText {
		pattern = regexp.QuoteMeta(pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}

	var hits []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if p.Include != "" {
			if ok, _ := filepath.Match(p.Include, filepath.Base(path)); !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				hits = append(hits, fmt.Sprintf("%s:%d:%s", path, i+1, line))
			}
		}
		return nil
	})
	return Output{Content: strings.Join(hits, "\n")}, nil
}

// LSTool lists directory contents, adapted from the teacher's
// internal/fsext.ListDirectory.
type LSTool struct{ baseTool }

func NewLSTool() *LSTool {
	return &LSTool{baseTool{
		name: "ls", description: "Lists files in a directory.",
		schema:    json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		safety:    Safe, readOnly: true,
	}}
}

func (l *LSTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (l *LSTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed ls input"}}
	}
	files, truncated, err := fsext.ListDirectory(p.Path, nil, 3, 200)
	if err != nil {
		return Output{Content: err.Error(), IsError: true}, nil
	}
	content := strings.Join(files, "\n")
	if truncated {
		content += "\n... (truncated)"
	}
	return Output{Content: content}, nil
}
