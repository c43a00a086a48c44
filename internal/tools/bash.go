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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	bashDefaultTimeout = 120 * time.Second
	bashMaxTimeout     = 600 * time.Second
)

var readOnlyAllowList = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "wc": true,
	"grep": true, "rg": true, "find": true, "which": true, "whoami": true,
	"pwd": true, "echo": true, "date": true, "env": true, "printenv": true,
	"uname": true, "hostname": true, "df": true, "du": true, "file": true,
	"stat": true, "type": true,
}

var readOnlyGitSubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true, "branch": true,
	"tag": true, "remote": true, "rev-parse": true, "describe": true,
	"ls-files": true, "ls-tree": true, "cat-file": true, "config": true,
	"blame": true, "shortlog": true,
}

// bashSchema is the JSON schema for BashParams (spec.md §4.3).
var bashSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {"type": "string"},
    "description": {"type": "string"},
    "timeout": {"type": "integer"},
    "run_in_background": {"type": "boolean"}
  },
  "required": ["command"]
}`)

// BashParams is the Bash tool's input (name kept matching the teacher's
// internal/agent/tools.BashParams shape, now a real consumer of it).
type BashParams struct {
	Command         string `json:"command"`
	Description     string `json:"description,omitempty"`
	Timeout         int    `json:"timeout,omitempty"` // milliseconds
	RunInBackground bool   `json:"run_in_background,omitempty"`
}

// BashResult is the Bash tool's response metadata.
type BashResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ShellID  string `json:"shell_id,omitempty"`
}

// BackgroundTask tracks one running-in-background Bash invocation so
// TaskOutput can retrieve it later.
type BackgroundTask struct {
	ID       string
	Command  string
	cmd      *exec.Cmd
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	mu       sync.Mutex
	done     bool
	exitCode int
}

// TaskRegistry holds backgrounded Bash tasks by shell id.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*BackgroundTask
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]*BackgroundTask)}
}

// BashTool implements the Bash built-in (spec.md §4.3).
type BashTool struct {
	baseTool
	Tasks *TaskRegistry
}

// NewBashTool constructs the Bash tool backed by the given task registry.
func NewBashTool(tasks *TaskRegistry) *BashTool {
	return &BashTool{
		baseTool: baseTool{
			name:        "bash",
			description: "Executes a shell command in the workspace.",
			schema:      bashSchema,
			safety:      Unsafe,
			readOnly:    false,
			maxResult:   30_000,
		},
		Tasks: tasks,
	}
}

func (b *BashTool) IsConcurrencySafeFor(input json.RawMessage) bool {
	var p BashParams
	if err := json.Unmarshal(input, &p); err != nil {
		return false
	}
	return isReadOnlyCommand(p.Command)
}

// isReadOnlyCommand reports whether cmd is free of pipes/redirects/
// separators and its leading word is on the read-only allow-list.
func isReadOnlyCommand(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return false
	}
	if strings.ContainsAny(trimmed, "|><;&`$(") {
		return false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	if fields[0] == "git" && len(fields) > 1 {
		return readOnlyGitSubcommands[fields[1]]
	}
	return readOnlyAllowList[fields[0]]
}

// Risk categories analyzed for non-read-only commands.
const (
	riskNetworkExfil   = "network exfiltration"
	riskPrivEsc        = "privilege escalation"
	riskDestructiveFS  = "destructive filesystem mutation"
	riskSensitiveRedir = "sensitive redirection"
	riskArbitraryCode  = "arbitrary code execution"
)

// analyzeRisk performs a shallow shell-risk analysis, returning either a
// hard Deny (injection-class risk) or the list of risks to surface as a
// NeedsApproval.
func analyzeRisk(cmd string) (deny bool, risks []Risk) {
	lower := strings.ToLower(cmd)

	injectionMarkers := []string{"$(", "`", "&&  rm", "eval "}
	for _, m := range injectionMarkers {
		if strings.Contains(lower, m) && strings.Contains(lower, "curl") {
			return true, nil
		}
	}

	add := func(desc string, sev Severity) { risks = append(risks, Risk{Description: desc, Severity: sev}) }

	switch {
	case strings.Contains(lower, "curl") || strings.Contains(lower, "wget") || strings.Contains(lower, "nc "):
		add(riskNetworkExfil, SeverityMedium)
	}
	switch {
	case strings.Contains(lower, "sudo") || strings.Contains(lower, "chmod 777") || strings.Contains(lower, "chown"):
		add(riskPrivEsc, SeverityHigh)
	}
	switch {
	case strings.Contains(lower, "rm -rf") || strings.Contains(lower, "mkfs") || strings.Contains(lower, "dd if="):
		add(riskDestructiveFS, SeverityCritical)
	}
	switch {
	case strings.Contains(lower, "> /etc/") || strings.Contains(lower, ">> ~/.ssh"):
		add(riskSensitiveRedir, SeverityHigh)
	}
	switch {
	case strings.Contains(lower, "eval ") || strings.Contains(lower, "exec ") || strings.Contains(lower, "python -c") || strings.Contains(lower, "node -e"):
		add(riskArbitraryCode, SeverityMedium)
	}
	return false, risks
}

func (b *BashTool) CheckPermission(ctx context.Context, input json.RawMessage, ectx *ExecContext) PermissionResult {
	var p BashParams
	if err := json.Unmarshal(input, &p); err != nil {
		return ResultDenied("invalid bash input")
	}
	if strings.TrimSpace(p.Command) == "" {
		return ResultDenied("empty command")
	}
	if isReadOnlyCommand(p.Command) {
		return ResultAllowed()
	}
	deny, risks := analyzeRisk(p.Command)
	if deny {
		return ResultDenied("command matches a known injection pattern")
	}
	return ResultNeedsApproval(ApprovalRequest{
		RequestID:   uuid.NewString(),
		ToolName:    b.Name(),
		Description: p.Description,
		Risks:       risks,
	})
}

func (b *BashTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p BashParams
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed bash input"}}
	}
	if strings.TrimSpace(p.Command) == "" {
		return Output{}, &InvalidInputError{Messages: []string{"empty command"}}
	}

	timeout := bashDefaultTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Millisecond
		if timeout > bashMaxTimeout {
			timeout = bashMaxTimeout
		}
	}

	if p.RunInBackground {
		return b.runBackground(ectx, p)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", p.Command)
	cmd.Dir = ectx.WorkingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			return Output{Content: fmt.Sprintf("failed to run command: %v", err), IsError: true}, nil
		}
	}

	content := stdout.String()
	if content == "" {
		content = "(no output)"
	}
	return Output{
		Content: content,
		IsError: exitCode != 0,
		Metadata: BashResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()},
	}, nil
}

func (b *BashTool) runBackground(ectx *ExecContext, p BashParams) (Output, error) {
	id := uuid.NewString()
	cmd := exec.Command("sh", "-c", p.Command)
	cmd.Dir = ectx.WorkingDir
	task := &BackgroundTask{ID: id, Command: p.Command, cmd: cmd}
	cmd.Stdout = &task.stdout
	cmd.Stderr = &task.stderr

	if err := cmd.Start(); err != nil {
		return Output{Content: fmt.Sprintf("failed to start background task: %v", err), IsError: true}, nil
	}

	b.Tasks.mu.Lock()
	b.Tasks.tasks[id] = task
	b.Tasks.mu.Unlock()

	go func() {
		err := cmd.Wait()
		task.mu.Lock()
		task.done = true
		if ee, ok := err.(*exec.ExitError); ok {
			task.exitCode = ee.ExitCode()
		}
		task.mu.Unlock()
	}()

	return Output{
		Content:  fmt.Sprintf("started background task %s", id),
		Metadata: BashResult{ShellID: id},
	}, nil
}

// taskOutputSchema is the JSON schema for TaskOutputParams.
var taskOutputSchema = json.RawMessage(`{"type":"object","properties":{"shell_id":{"type":"string"}},"required":["shell_id"]}`)

// TaskOutputTool retrieves the output of a backgrounded Bash task
// (spec.md §4.3 "separate TaskOutput tool").
type TaskOutputTool struct {
	baseTool
	Tasks *TaskRegistry
}

func NewTaskOutputTool(tasks *TaskRegistry) *TaskOutputTool {
	return &TaskOutputTool{
		baseTool: baseTool{name: "task_output", description: "Retrieves output from a backgrounded bash task.", schema: taskOutputSchema, safety: Safe, readOnly: true},
		Tasks:    tasks,
	}
}

func (t *TaskOutputTool) CheckPermission(context.Context, json.RawMessage, *ExecContext) PermissionResult {
	return ResultAllowed()
}

func (t *TaskOutputTool) Execute(ctx context.Context, input json.RawMessage, ectx *ExecContext) (Output, error) {
	var p struct {
		ShellID string `json:"shell_id"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return Output{}, &InvalidInputError{Messages: []string{"malformed task_output input"}}
	}
	t.Tasks.mu.Lock()
	task, ok := t.Tasks.tasks[p.ShellID]
	t.Tasks.mu.Unlock()
	if !ok {
		return Output{Content: "no such task", IsError: true}, nil
	}
	task.mu.Lock()
	defer task.mu.Unlock()
	status := "running"
	if task.done {
		status = "completed"
	}
	return Output{
		Content:  task.stdout.String(),
		Metadata: map[string]any{"status": status, "exit_code": task.exitCode, "command": task.Command},
	}, nil
}
