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
	"strings"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var editSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "file_path": {"type": "string"},
    "old_string": {"type": "string"},
    "new_string": {"type": "string"},
    "replace_all": {"type": "boolean"}
  },
  "required": ["file_path", "old_string", "new_string"]
}`)

// EditParams is the Edit tool's input.
type EditParams struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// EditTool implements the Edit built-in (spec.md §4.3, SPEC_FULL.md §4.3
// supplement on replace_all strategy ordering).
type EditTool struct {
	baseTool
	LockedDirs     []string
	SensitiveDirs  []string // .git/, .vscode/, .idea/
	SensitiveFiles *regexp.Regexp
}

// NewEditTool constructs the Edit tool with the default sensitive-path
// classification.
func NewEditTool() *EditTool {
	return &EditTool{
		baseTool: baseTool{
			name:        "edit",
			description: "Edits a file by replacing an exact (or near-exact) substring.",
			schema:      editSchema,
			safety:      Unsafe,
			readOnly:    false,
			maxResult:   20_000,
		},
		SensitiveDirs:  []string{".git", ".vscode", ".idea"},
		SensitiveFiles: regexp.MustCompile(`(?i)(\.env$|credentials|secret|\.pem$|\.key$|id_rsa)`),
	}
}

func (e *EditTool) isLocked(path string) bool {
	for _, d := range e.LockedDirs {
		if strings.HasPrefix(path, d) {
			return true
		}
	}
	return false
}

func (e *EditTool) isSensitiveDir(path string) bool {
	for _, d := range e.SensitiveDirs {
		if strings.Contains(path, string(filepath.Separator)+d+string(filepath.Separator)) || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (e *EditTool) CheckPermission(ctx context.Context, input json.RawMessage, ectx *ExecContext) PermissionResult {
	var p EditParams
	if err := json.Unmarshal(input, &p); err != nil {
		return ResultDenied("invalid edit input")
	}

	if ectx.PlanModeOn && p.FilePath != ectx.PlanFilePath {
		return ResultDenied("plan mode: only the plan file is writable")
	}
	if e.isLocked(p.FilePath) {
		return ResultDenied("path is in a locked directory")
	}
	if e.SensitiveFiles.MatchString(p.FilePath) {
		return ResultNeedsApproval(ApprovalRequest{
			RequestID: uuid.NewString(), ToolName: e.Name(), Description: "editing a sensitive file",
			Risks: []Risk{{Description: "sensitive file", Severity: SeverityHigh}},
		})
	}
	if e.isSensitiveDir(p.FilePath) {
		return ResultNeedsApproval(ApprovalRequest{
			RequestID: uuid.NewString(), ToolName: e.Name(), Description: "editing inside a sensitive directory",
			Risks: []Risk{{Description: "sensitive directory", Severity: SeverityMedium}},
		})
	}
	return ResultNeedsApproval(ApprovalRequest{RequestID: uuid.NewString(), ToolName: e.Name(), Description: "editing " + p.FilePath})
}

func (e *EditTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p EditParams
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed edit input"}}
	}
	if p.OldString == p.NewString {
		return Output{}, &InvalidInputError{Messages: []string{"old_string and new_string are identical"}}
	}

	if p.OldString == "" {
		return e.createFile(p, ectx)
	}

	current, err := os.ReadFile(p.FilePath)
	if err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}

	if ectx.FileTracker == nil || !ectx.FileTracker.IsFresh(p.FilePath, string(current)) {
		return Output{Content: p.FilePath + " must be read before editing (no prior read, or the file changed since it was read)", IsError: true}, nil
	}

	newContent, err := applyReplace(string(current), p.OldString, p.NewString, p.ReplaceAll)
	if err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}

	if err := os.WriteFile(p.FilePath, []byte(newContent), 0o644); err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(current), newContent, false)
	stat := dmp.DiffPrettyText(diffs)
	_ = stat

	return Output{
		Content:   fmt.Sprintf("updated %s", p.FilePath),
		Modifiers: []ContextModifier{{Kind: FileReadModifier, Path: p.FilePath, Content: newContent}},
	}, nil
}

func (e *EditTool) createFile(p EditParams, ectx *ExecContext) (Output, error) {
	if _, err := os.Stat(p.FilePath); err == nil {
		return Output{Content: "execution_failed: file already exists; use old_string to target a replacement", IsError: true}, nil
	}
	if err := os.MkdirAll(filepath.Dir(p.FilePath), 0o755); err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}
	content := NormalizeLF(p.NewString)
	if err := os.WriteFile(p.FilePath, []byte(content), 0o644); err != nil {
		return Output{Content: fmt.Sprintf("execution_failed: %v", err), IsError: true}, nil
	}
	return Output{
		Content:   fmt.Sprintf("created %s", p.FilePath),
		Modifiers: []ContextModifier{{Kind: FileReadModifier, Path: p.FilePath, Content: content}},
	}, nil
}

// applyReplace tries the three match strategies, in the fixed order
// Exact → Flexible → Regex, against the original strings; if all three
// fail it retries the same fixed order against a trimmed-whitespace pair.
// Whichever strategy first succeeds governs every replacement within one
// call — strategies are never mixed within a single replace_all
// invocation (SPEC_FULL.md §4.3 supplement).
func applyReplace(content, oldStr, newStr string, replaceAll bool) (string, error) {
	if out, ok := tryStrategies(content, oldStr, newStr, replaceAll); ok {
		return out, nil
	}
	trimmedOld, trimmedNew := strings.TrimSpace(oldStr), strings.TrimSpace(newStr)
	if out, ok := tryStrategies(content, trimmedOld, trimmedNew, replaceAll); ok {
		return out, nil
	}
	return "", fmt.Errorf("old_string not found in %s (tried exact, flexible, and regex matching)", "file")
}

func tryStrategies(content, oldStr, newStr string, replaceAll bool) (string, bool) {
	if out, ok := exactReplace(content, oldStr, newStr, replaceAll); ok {
		return out, true
	}
	if out, ok := flexibleReplace(content, oldStr, newStr, replaceAll); ok {
		return out, true
	}
	if out, ok := regexReplace(content, oldStr, newStr, replaceAll); ok {
		return out, true
	}
	return "", false
}

func exactReplace(content, oldStr, newStr string, replaceAll bool) (string, bool) {
	if !strings.Contains(content, oldStr) {
		return "", false
	}
	if replaceAll {
		return strings.ReplaceAll(content, oldStr, newStr), true
	}
	return strings.Replace(content, oldStr, newStr, 1), true
}

// flexibleReplace tolerates differences in run-length whitespace between
// the needle and the haystack (e.g. tabs vs spaces, reindented blocks).
func flexibleReplace(content, oldStr, newStr string, replaceAll bool) (string, bool) {
	pattern := regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(oldStr), `\s+`)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	if !re.MatchString(content) {
		return "", false
	}
	if replaceAll {
		return re.ReplaceAllLiteralString(content, newStr), true
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return "", false
	}
	return content[:loc[0]] + newStr + content[loc[1]:], true
}

// regexReplace treats alphanumeric runs in oldStr as exact tokens but
// allows arbitrary text between them, matching only the first occurrence
// regardless of replaceAll (spec.md "token-based regex (first-occurrence
// only)").
func regexReplace(content, oldStr, newStr string, replaceAll bool) (string, bool) {
	tokens := regexp.MustCompile(`\w+`).FindAllString(oldStr, -1)
	if len(tokens) == 0 {
		return "", false
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = regexp.QuoteMeta(t)
	}
	pattern := strings.Join(parts, `[\s\S]*?`)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return "", false
	}
	return content[:loc[0]] + newStr + content[loc[1]:], true
}
