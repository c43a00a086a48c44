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
	"sync"

	"github.com/coderunner/engine/internal/obslog"
	"go.uber.org/zap"
)

// Call is one tool invocation requested by the model within a turn.
type Call struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Result is the outcome of running one Call, addressed back to its id so
// the agent loop can build the matching ToolResult content block.
type Result struct {
	CallID string
	Output Output
	Err    error
}

// Executor dispatches Calls through the Registry, enforcing permission
// arbitration, output-size truncation, and the concurrency discipline of
// spec.md §4.3.
type Executor struct {
	Registry  *Registry
	Evaluator *Evaluator
	// Approve, when non-nil, is invoked for every NeedsApproval result and
	// must return the user's Decision; nil means NeedsApproval escalates to
	// Denied (used in headless/batch contexts with no UI attached).
	Approve func(ctx context.Context, req ApprovalRequest) Decision
}

// NewExecutor constructs an executor over the given registry and
// permission evaluator.
func NewExecutor(reg *Registry, ev *Evaluator) *Executor {
	return &Executor{Registry: reg, Evaluator: ev}
}

// Dispatch runs a batch of calls from one assistant turn, executing
// concurrency-safe calls in parallel and everything else serially in
// model order (spec.md §4.3 "Concurrency discipline").
func (x *Executor) Dispatch(ctx context.Context, ectx *ExecContext, calls []Call) []Result {
	results := make([]Result, len(calls))

	var parallel, serial []int
	for i, c := range calls {
		t, ok := x.Registry.Get(c.Name)
		if ok && (t.IsReadOnly() || t.ConcurrencySafety() == Safe) && t.IsConcurrencySafeFor(c.Input) {
			parallel = append(parallel, i)
		} else {
			serial = append(serial, i)
		}
	}

	if len(parallel) > 0 {
		var wg sync.WaitGroup
		for _, i := range parallel {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = x.run(ctx, ectx, calls[i])
			}(i)
		}
		wg.Wait()
	}

	for _, i := range serial {
		results[i] = x.run(ctx, ectx, calls[i])
	}

	return results
}

func (x *Executor) run(ctx context.Context, ectx *ExecContext, call Call) Result {
	t, ok := x.Registry.Get(call.Name)
	if !ok {
		return Result{CallID: call.ID, Err: fmt.Errorf("unknown tool %q", call.Name)}
	}

	if err := ValidateInput(t, call.Input); err != nil {
		return Result{CallID: call.ID, Output: Output{Content: err.Error(), IsError: true}}
	}

	perm := x.authorize(ctx, t, call, ectx)
	switch perm.Kind {
	case Denied:
		obslog.Info("tool denied", zap.String("tool", call.Name), zap.String("reason", perm.Reason))
		return Result{CallID: call.ID, Output: Output{Content: "denied: " + perm.Reason, IsError: true}}
	case NeedsApproval:
		decision := Deny
		if x.Approve != nil {
			decision = x.Approve(ctx, perm.Request)
		}
		if !x.Evaluator.Resolve(call.ID, call.Name, perm.Request.ProposedPrefixPattern, decision) {
			return Result{CallID: call.ID, Output: Output{Content: "denied: approval not granted", IsError: true}}
		}
	}

	out, err := t.Execute(ctx, call.Input, ectx)
	if err != nil {
		return Result{CallID: call.ID, Output: Output{Content: err.Error(), IsError: true}, Err: err}
	}

	out.Content = truncate(out.Content, t.MaxResultSizeChars())

	for _, m := range out.Modifiers {
		if m.Kind == FileReadModifier && ectx.FileTracker != nil {
			ectx.FileTracker.RecordRead(m.Path, m.Content)
		}
	}

	return Result{CallID: call.ID, Output: out}
}

// authorize runs the rule evaluator first (highest priority wins across
// Session/Policy/Project/Local/User), falling back to the tool's own
// check_permission when no rule matches (Passthrough).
func (x *Executor) authorize(ctx context.Context, t Tool, call Call, ectx *ExecContext) PermissionResult {
	path := pathHint(call.Input)
	if action, matched := x.Evaluator.Evaluate(call.Name, path); matched {
		switch action {
		case ActionDeny:
			return ResultDenied("denied by permission rule")
		case ActionAllow:
			return ResultAllowed()
		case ActionAsk:
			// Ask never independently blocks; defer to the tool.
		}
	}

	result := t.CheckPermission(ctx, call.Input, ectx)
	if result.Kind == Passthrough {
		return ResultAllowed()
	}
	if result.Kind == NeedsApproval && x.Evaluator.SkipRequests() {
		return ResultAllowed()
	}
	return result
}

func pathHint(input json.RawMessage) string {
	var v struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
	}
	_ = json.Unmarshal(input, &v)
	if v.FilePath != "" {
		return v.FilePath
	}
	return v.Path
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n... [truncated, %d characters omitted]", len(s)-max)
}
