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
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

func TestConfigResolvedAppliesDefaults(t *testing.T) {
	cfg := Config{}.resolved()
	assert.Equal(t, DefaultOpenAIModel, cfg.Model)
	assert.Equal(t, DefaultOpenAIEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultOpenAITimeout, cfg.Timeout)
	assert.Equal(t, DefaultOpenAIMaxTokens, cfg.MaxTokens)
}

func TestClientNameAndModel(t *testing.T) {
	client := NewClient(Config{Model: "gpt-4o-mini"})
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "gpt-4o-mini", client.Model())
}

func TestToChatMessagesRoundTripsRoles(t *testing.T) {
	messages := []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
		{Role: llmtypes.RoleAssistant, Blocks: []llmtypes.ContentBlock{
			llmtypes.TextBlock{Text: "sure"},
			llmtypes.ToolUseBlock{ID: "call_1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)},
		}},
		{Role: llmtypes.RoleTool, Blocks: []llmtypes.ContentBlock{llmtypes.ToolResultBlock{ToolUseID: "call_1", Content: "package a"}}},
	}

	out := toChatMessages(messages)
	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "hi", out[0].Content)

	assert.Equal(t, "assistant", out[1].Role)
	assert.Equal(t, "sure", out[1].Content)
	require.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, "read_file", out[1].ToolCalls[0].Function.Name)

	assert.Equal(t, "tool", out[2].Role)
	assert.Equal(t, "call_1", out[2].ToolCallID)
	assert.Equal(t, "package a", out[2].Content)
}

func TestToOpenAIToolChoiceModes(t *testing.T) {
	assert.Equal(t, "auto", toOpenAIToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceAuto}))
	assert.Equal(t, "none", toOpenAIToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceNone}))
	assert.Equal(t, "required", toOpenAIToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceRequired}))

	named := toOpenAIToolChoice(llmtypes.ToolChoice{Mode: llmtypes.ToolChoiceNamed, Name: "read_file"})
	m, ok := named.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "function", m["type"])
}

func TestChatSimpleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		resp := ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []ChatCompletionChoice{{
				Message:      ChatMessage{Role: "assistant", Content: "hello there"},
				FinishReason: "stop",
			}},
			Usage: ChatCompletionUsage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"})
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
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestChatPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{Error: &OpenAIError{Message: "rate limited", Type: "rate_limit_error"}})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "test-key"})
	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
	}}

	_, err := client.Chat(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

// writeSSELine formats a chat-completion stream chunk the way OpenAI's
// endpoint frames it: a "data: <json>" line followed by a blank line.
func writeSSELine(t *testing.T, w http.ResponseWriter, chunk ChatCompletionStreamChunk) {
	t.Helper()
	raw, err := json.Marshal(chunk)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func TestChatStreamAggregatesTextDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSELine(t, w, ChatCompletionStreamChunk{Model: "gpt-4o-mini", Choices: []ChatCompletionStreamChoice{{Delta: ChatMessageDelta{Content: "Hel"}}}})
		writeSSELine(t, w, ChatCompletionStreamChunk{Model: "gpt-4o-mini", Choices: []ChatCompletionStreamChoice{{Delta: ChatMessageDelta{Content: "lo!"}, FinishReason: "stop"}}})
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"})
	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
	}}

	var deltas []string
	resp, err := client.ChatStream(context.Background(), req, func(ev llmtypes.StreamEvent) {
		if ev.Kind == llmtypes.EventTextDelta {
			deltas = append(deltas, ev.Delta)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo!"}, deltas)
	require.Len(t, resp.Blocks, 1)
	text, ok := resp.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Hello!", text.Text)
}

func TestMapFinishReasonKnownValues(t *testing.T) {
	assert.Equal(t, llmtypes.FinishStop, mapFinishReason("stop"))
	assert.Equal(t, llmtypes.FinishLength, mapFinishReason("length"))
	assert.Equal(t, llmtypes.FinishToolUse, mapFinishReason("tool_calls"))
	assert.Equal(t, llmtypes.FinishContentFilter, mapFinishReason("content_filter"))
}
