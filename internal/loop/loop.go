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
package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coderunner/engine/internal/obslog"
	"github.com/coderunner/engine/internal/tools"
	"github.com/coderunner/engine/pkg/llm/aggregation"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// StopReason enumerates the turn loop's exit conditions (spec.md §4.2).
type StopReason string

const (
	StopModelSignal     StopReason = "model_stop_signal"
	StopMaxTurns        StopReason = "max_turns_reached"
	StopUserInterrupted StopReason = "user_interrupted"
	StopHookStopped     StopReason = "hook_stopped"
	StopError           StopReason = "error"
	StopPlanModeExit    StopReason = "plan_mode_exit"
)

// LoopResult is returned when Run exits (spec.md §3 LoopResult).
type LoopResult struct {
	Reason       StopReason
	TurnsRun     int
	FinalMessage llmtypes.Message
	Err          error
}

// Engine drives the conversation turn procedure against an
// llmtypes.StreamingLLMProvider, arbitrating tool calls through C3's
// Executor and publishing protocol events on its Bus (spec.md §4.2).
type Engine struct {
	Provider llmtypes.StreamingLLMProvider
	Executor *tools.Executor
	bus      *Bus

	// Index backs retrieval tools (code_search, symbol_search) through
	// every turn's ExecContext; nil disables them (spec.md §6 "Retrieval
	// tools call into C4").
	Index tools.RetrievalBackend

	MaxTurns int

	// PreToolHook, when non-nil, can veto a batch of tool calls before
	// they are dispatched (e.g. a user-authored pre_tool_use hook). It
	// returns ok=false and a reason to stop the loop with StopHookStopped.
	PreToolHook func(ctx context.Context, calls []tools.Call) (ok bool, reason string)

	// Interrupt is polled before each turn and after each tool-call batch
	// has finished; when it returns true the loop stops with
	// StopUserInterrupted. It does not abort a streaming response or a
	// running tool batch, and queued commands are left in the queue.
	Interrupt func() bool
}

// NewEngine constructs an Engine with its own event bus.
func NewEngine(provider llmtypes.StreamingLLMProvider, executor *tools.Executor) *Engine {
	return &Engine{Provider: provider, Executor: executor, bus: NewBus(), MaxTurns: 0}
}

// Events exposes the engine's protocol-event bus for UI and logging
// subscribers (spec.md §9 "two one-way channels").
func (e *Engine) Events() *Bus { return e.bus }

// buildToolChoice normalizes request-level tool_choice=AllowedTools into
// "Auto over the allowed subset" (SPEC_FULL.md §4.2 Open Question
// resolution): rather than forwarding a provider-specific allowed-list
// mode, the engine filters the tool definitions array down to the allowed
// names and sends plain Auto.
func buildToolChoice(allowed []string, defs []llmtypes.ToolDefinition) ([]llmtypes.ToolDefinition, *llmtypes.ToolChoice) {
	if len(allowed) == 0 {
		return defs, nil
	}
	set := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		set[n] = true
	}
	filtered := make([]llmtypes.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if set[d.Name] {
			filtered = append(filtered, d)
		}
	}
	return filtered, &llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceAuto}
}

// wrapQueuedCommands joins queued user inputs received while the previous
// turn was streaming into a single synthetic user message, per
// SPEC_FULL.md §4.2's resolution of the queued-input wrapping Open
// Question: commands are joined with "\n\n---\n\n", wrapped under a
// "[Queued while responding — N messages]" header, and each command's
// unique id is preserved as an inline "<!-- queued:ID -->" marker ahead
// of its text, all inside one TextBlock, so the UI can still attribute
// output back to the command that produced it.
func wrapQueuedCommands(cmds []QueuedCommand) llmtypes.Message {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		parts = append(parts, fmt.Sprintf("<!-- queued:%s -->\n%s", c.ID, c.Text))
	}
	header := fmt.Sprintf("[Queued while responding — %d messages]", len(cmds))
	text := header + "\n\n" + strings.Join(parts, "\n\n---\n\n")
	return llmtypes.Message{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: text}}}
}

// Run executes the turn procedure until a stop condition is reached
// (spec.md §4.2, steps 1-6), starting from whatever is already in
// s.Messages.
func (e *Engine) Run(ctx context.Context, s *SessionState, defs []llmtypes.ToolDefinition, allowedTools []string) LoopResult {
	turnsRun := 0
	for {
		if e.Interrupt != nil && e.Interrupt() {
			return LoopResult{Reason: StopUserInterrupted, TurnsRun: turnsRun}
		}
		if e.MaxTurns > 0 && s.TurnCount >= e.MaxTurns {
			return LoopResult{Reason: StopMaxTurns, TurnsRun: turnsRun}
		}

		turnID := uuid.NewString()
		turnNum := s.IncrementTurn()
		e.bus.Publish(Event{Kind: EventTurnStarted, TurnID: turnID, TurnNumber: turnNum})

		toolDefs, choice := buildToolChoice(allowedTools, defs)
		req := llmtypes.LLMRequest{
			Messages:   s.Snapshot().Messages,
			Tools:      toolDefs,
			ToolChoice: choice,
		}

		agg := aggregation.NewAggregationState()
		resp, err := e.Provider.ChatStream(ctx, req, func(ev llmtypes.StreamEvent) {
			if applyErr := agg.Apply(ev); applyErr != nil {
				obslog.Error("stream aggregation error", zap.Error(applyErr))
			}
		})
		if err != nil {
			return LoopResult{Reason: StopError, TurnsRun: turnsRun, Err: err}
		}

		assistantMsg := llmtypes.Message{Role: llmtypes.RoleAssistant, Blocks: resp.Blocks}
		s.AppendMessage(assistantMsg)
		s.AddUsage(resp.Usage)
		turnsRun++

		var calls []tools.Call
		for _, b := range resp.Blocks {
			if tu, ok := b.(llmtypes.ToolUseBlock); ok {
				calls = append(calls, tools.Call{ID: tu.ID, Name: tu.Name, Input: tu.Input})
			}
		}

		if resp.FinishReason != llmtypes.FinishToolUse || len(calls) == 0 {
			e.bus.Publish(Event{Kind: EventTurnCompleted, TurnID: turnID, TurnNumber: turnNum, InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens})
			if queued := s.DrainQueue(); len(queued) > 0 {
				s.AppendMessage(wrapQueuedCommands(queued))
				continue
			}
			last, _ := s.LastMessage()
			return LoopResult{Reason: StopModelSignal, TurnsRun: turnsRun, FinalMessage: last}
		}

		if e.PreToolHook != nil {
			if ok, reason := e.PreToolHook(ctx, calls); !ok {
				return LoopResult{Reason: StopHookStopped, TurnsRun: turnsRun, Err: fmt.Errorf("%s", reason)}
			}
		}

		for _, c := range calls {
			s.AddToolExecution(ToolExecution{ID: c.ID, Name: c.Name, Status: StatusRunning})
			e.bus.Publish(Event{Kind: EventToolStart, TurnID: turnID, ToolCallID: c.ID})
		}

		ectx := &tools.ExecContext{SessionID: s.ID, WorkingDir: s.WorkingDir, PlanModeOn: s.PlanMode, PlanFilePath: s.PlanFilePath, Index: e.Index}
		results := e.Executor.Dispatch(ctx, ectx, calls)

		resultBlocks := make([]llmtypes.ContentBlock, 0, len(results))
		for _, r := range results {
			status := StatusCompleted
			if r.Output.IsError || r.Err != nil {
				status = StatusFailed
			}
			s.UpdateToolExecution(r.CallID, func(te *ToolExecution) {
				te.Status = status
				te.Output = r.Output.Content
			})
			e.bus.Publish(Event{Kind: EventToolDone, TurnID: turnID, ToolCallID: r.CallID})
			resultBlocks = append(resultBlocks, llmtypes.ToolResultBlock{
				ToolUseID: r.CallID,
				Content:   r.Output.Content,
				IsError:   r.Output.IsError || r.Err != nil,
			})
		}
		s.AppendMessage(llmtypes.Message{Role: llmtypes.RoleTool, Blocks: resultBlocks})

		e.bus.Publish(Event{Kind: EventTurnCompleted, TurnID: turnID, TurnNumber: turnNum, InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens})

		if e.Interrupt != nil && e.Interrupt() {
			return LoopResult{Reason: StopUserInterrupted, TurnsRun: turnsRun}
		}

		if queued := s.DrainQueue(); len(queued) > 0 {
			s.AppendMessage(wrapQueuedCommands(queued))
		}
	}
}
