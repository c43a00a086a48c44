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
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "test-key"})
	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, DefaultAnthropicModel, client.Model())
}

func TestBuildMessageParamsSeparatesSystemMessages(t *testing.T) {
	cfg := Config{Model: "claude-sonnet-4-5-20250929", MaxTokens: 2048}.resolved()
	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleSystem, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "be terse"}}},
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
	}}

	params := BuildMessageParams(cfg, req)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be terse", params.System[0].Text)
	require.Len(t, params.Messages, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	assert.EqualValues(t, 2048, params.MaxTokens)
}

func TestToAnthropicToolChoiceAllowedNormalizesToAuto(t *testing.T) {
	choice := toAnthropicToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceAllowed, AllowedNames: []string{"read_file"}})
	assert.NotNil(t, choice.OfAuto)
}

func TestToAnthropicToolChoiceNamed(t *testing.T) {
	choice := toAnthropicToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceNamed, Name: "read_file"})
	require.NotNil(t, choice.OfTool)
	assert.Equal(t, "read_file", choice.OfTool.Name)
}

func TestMapStopReasonKnownValues(t *testing.T) {
	assert.Equal(t, llmtypes.FinishStop, MapStopReason("end_turn"))
	assert.Equal(t, llmtypes.FinishLength, MapStopReason("max_tokens"))
	assert.Equal(t, llmtypes.FinishToolUse, MapStopReason("tool_use"))
}

func TestFromMessageExtractsTextAndToolUse(t *testing.T) {
	raw := []byte(`{
		"id": "msg_1",
		"model": "claude-sonnet-4-5-20250929",
		"role": "assistant",
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5},
		"content": [
			{"type": "text", "text": "let me check"},
			{"type": "tool_use", "id": "call_1", "name": "read_file", "input": {"path": "a.go"}}
		]
	}`)
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	resp := FromMessage(&msg)
	require.Len(t, resp.Blocks, 2)
	text, ok := resp.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "let me check", text.Text)

	call, ok := resp.Blocks[1].(llmtypes.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "read_file", call.Name)
	assert.JSONEq(t, `{"path":"a.go"}`, string(call.Input))
	assert.Equal(t, llmtypes.FinishToolUse, resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestChatSimpleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-5-20250929", "stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2},
			"content": [{"type": "text", "text": "hello there"}]
		}`))
	}))
	defer server.Close()

	client := &Client{
		cfg:         Config{APIKey: "test-key", Model: "claude-sonnet-4-5-20250929"}.resolved(),
		sdk:         anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(server.URL)),
		rateLimiter: sharedRateLimiter(),
	}

	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
	}}

	resp, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Blocks, 1)
	text, ok := resp.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "hello there", text.Text)
	assert.Equal(t, llmtypes.FinishStop, resp.FinishReason)
}

func TestClassifyAndWrapNonAPIErrorPassesThrough(t *testing.T) {
	plain := context.DeadlineExceeded
	assert.Equal(t, plain, ClassifyAndWrap(plain))
}
