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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderunner/engine/internal/tools"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// fakeProvider replays a fixed sequence of per-call stream event batches,
// one batch per ChatStream invocation, matching the literal S1/S2
// scenario inputs in spec.md §8.
type fakeProvider struct {
	batches [][]llmtypes.StreamEvent
	calls   int
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }
func (p *fakeProvider) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	return nil, nil
}

func (p *fakeProvider) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	batch := p.batches[p.calls]
	p.calls++
	var resp llmtypes.LLMResponse
	for _, ev := range batch {
		sink(ev)
		if ev.Kind == llmtypes.EventResponseDone {
			resp = llmtypes.LLMResponse{ID: ev.ResponseID, Model: ev.Model, Usage: ev.Usage, FinishReason: ev.FinishReason}
		}
	}
	// Collect finalized blocks the same way the real aggregator would.
	for _, ev := range batch {
		switch ev.Kind {
		case llmtypes.EventTextDone:
			resp.Blocks = append(resp.Blocks, llmtypes.TextBlock{Text: ev.FinalText})
		case llmtypes.EventToolCallDone:
			resp.Blocks = append(resp.Blocks, llmtypes.ToolUseBlock{ID: ev.ToolCallID, Name: ev.ToolCallName, Input: ev.ArgumentsJSON})
		}
	}
	return &resp, nil
}

// TestScenarioS1SimpleCompletion is the literal S1 scenario from spec.md
// §8: a single turn, no tools, ending in ModelStopSignal.
func TestScenarioS1SimpleCompletion(t *testing.T) {
	provider := &fakeProvider{batches: [][]llmtypes.StreamEvent{
		{
			{Kind: llmtypes.EventResponseCreated, ResponseID: "r1"},
			{Kind: llmtypes.EventTextDelta, Index: 0, Delta: "4"},
			{Kind: llmtypes.EventTextDone, Index: 0, FinalText: "4"},
			{Kind: llmtypes.EventResponseDone, ResponseID: "r1", Model: "m1", Usage: llmtypes.Usage{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}, FinishReason: llmtypes.FinishStop},
		},
	}}
	reg := tools.NewRegistry()
	ev := tools.NewEvaluator(nil)
	ev.SetSkipRequests(true)
	engine := NewEngine(provider, tools.NewExecutor(reg, ev))

	s := NewSessionState("sess-1", t.TempDir(), "fake", "fake-model")
	s.AppendMessage(llmtypes.Message{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "What is 2+2?"}}})

	result := engine.Run(context.Background(), s, nil, nil)

	require.Equal(t, StopModelSignal, result.Reason)
	assert.Equal(t, 1, result.TurnsRun)
	snap := s.Snapshot()
	assert.Equal(t, 3, snap.CumulativeUsage.InputTokens)
	assert.Equal(t, 1, snap.CumulativeUsage.OutputTokens)
	require.Len(t, result.FinalMessage.Blocks, 1)
	text, ok := result.FinalMessage.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "4", text.Text)
}

// TestScenarioS2ToolRoundTrip is the literal S2 scenario from spec.md §8:
// a tool call in turn one, its result fed back, and a final text turn.
func TestScenarioS2ToolRoundTrip(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"path": "."})
	provider := &fakeProvider{batches: [][]llmtypes.StreamEvent{
		{
			{Kind: llmtypes.EventToolCallStart, Index: 0, ToolCallID: "c1", ToolCallName: "ls_tool"},
			{Kind: llmtypes.EventToolCallDelta, Index: 0, ToolCallID: "c1", ToolCallName: "ls_tool", ArgumentsJSON: args},
			{Kind: llmtypes.EventToolCallDone, Index: 0, ToolCallID: "c1", ToolCallName: "ls_tool", ArgumentsJSON: args},
			{Kind: llmtypes.EventResponseDone, FinishReason: llmtypes.FinishToolUse},
		},
		{
			{Kind: llmtypes.EventTextDelta, Index: 0, Delta: "Two files"},
			{Kind: llmtypes.EventTextDone, Index: 0, FinalText: "Two files"},
			{Kind: llmtypes.EventResponseDone, FinishReason: llmtypes.FinishStop},
		},
	}}

	reg := tools.NewRegistry()
	reg.Register(stubListFilesTool{})
	evaluator := tools.NewEvaluator(nil)
	evaluator.SetSkipRequests(true)
	engine := NewEngine(provider, tools.NewExecutor(reg, evaluator))

	s := NewSessionState("sess-2", t.TempDir(), "fake", "fake-model")
	s.AppendMessage(llmtypes.Message{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "list files"}}})

	def := llmtypes.ToolDefinition{Name: "ls_tool"}
	result := engine.Run(context.Background(), s, []llmtypes.ToolDefinition{def}, nil)

	require.Equal(t, StopModelSignal, result.Reason)
	assert.Equal(t, 2, result.TurnsRun)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 4)
	assert.Equal(t, llmtypes.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, llmtypes.RoleAssistant, snap.Messages[1].Role)
	toolUse, ok := snap.Messages[1].Blocks[0].(llmtypes.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", toolUse.ID)
	assert.Equal(t, llmtypes.RoleTool, snap.Messages[2].Role)
	toolResult, ok := snap.Messages[2].Blocks[0].(llmtypes.ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "a.txt\nb.txt", toolResult.Content)
	assert.Equal(t, llmtypes.RoleAssistant, snap.Messages[3].Role)

	text, ok := result.FinalMessage.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Two files", text.Text)
}

type stubListFilesTool struct{}

func (stubListFilesTool) Name() string                                       { return "ls_tool" }
func (stubListFilesTool) Description() string                                { return "lists files" }
func (stubListFilesTool) InputSchema() json.RawMessage                       { return json.RawMessage(`{}`) }
func (stubListFilesTool) ConcurrencySafety() tools.ConcurrencySafety         { return tools.Safe }
func (stubListFilesTool) IsReadOnly() bool                                   { return true }
func (stubListFilesTool) IsConcurrencySafeFor(json.RawMessage) bool          { return true }
func (stubListFilesTool) MaxResultSizeChars() int                            { return 50_000 }
func (stubListFilesTool) CheckPermission(context.Context, json.RawMessage, *tools.ExecContext) tools.PermissionResult {
	return tools.ResultAllowed()
}
func (stubListFilesTool) Execute(context.Context, json.RawMessage, *tools.ExecContext) (tools.Output, error) {
	return tools.Output{Content: "a.txt\nb.txt"}, nil
}

// TestQueuedInputPreservation covers spec.md §8 property 9: a command
// queued while the previous turn was streaming is neither dropped nor
// reordered ahead of the turn in progress, and each command's id survives
// into the wrapped synthetic message as a marker.
func TestQueuedInputPreservation(t *testing.T) {
	provider := &fakeProvider{batches: [][]llmtypes.StreamEvent{
		{
			{Kind: llmtypes.EventTextDelta, Index: 0, Delta: "ok"},
			{Kind: llmtypes.EventTextDone, Index: 0, FinalText: "ok"},
			{Kind: llmtypes.EventResponseDone, FinishReason: llmtypes.FinishStop},
		},
		{
			{Kind: llmtypes.EventTextDelta, Index: 0, Delta: "done"},
			{Kind: llmtypes.EventTextDone, Index: 0, FinalText: "done"},
			{Kind: llmtypes.EventResponseDone, FinishReason: llmtypes.FinishStop},
		},
	}}
	reg := tools.NewRegistry()
	ev := tools.NewEvaluator(nil)
	ev.SetSkipRequests(true)
	engine := NewEngine(provider, tools.NewExecutor(reg, ev))

	s := NewSessionState("sess-3", t.TempDir(), "fake", "fake-model")
	s.AppendMessage(llmtypes.Message{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "first"}}})
	s.Enqueue(QueuedCommand{ID: "q1", Text: "second"})

	result := engine.Run(context.Background(), s, nil, nil)
	require.Equal(t, StopModelSignal, result.Reason)
	assert.Equal(t, 2, result.TurnsRun)
	assert.Equal(t, 0, s.QueuedLen())

	snap := s.Snapshot()
	queuedMsg := snap.Messages[2]
	text, ok := queuedMsg.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Contains(t, text.Text, "[Queued while responding — 1 messages]")
	assert.Contains(t, text.Text, "queued:q1")
	assert.Contains(t, text.Text, "second")
}
