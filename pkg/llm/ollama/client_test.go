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
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

func TestConfigResolvedAppliesDefaults(t *testing.T) {
	cfg := Config{}.resolved()
	assert.Equal(t, "http://localhost:11434", cfg.Endpoint)
	assert.Equal(t, 0.8, cfg.Temperature)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, ToolModeAuto, cfg.ToolMode)
}

func TestDefaultMaxTokensScalesWithModelSize(t *testing.T) {
	assert.Equal(t, 4096, defaultMaxTokens("llama3.2:8b"))
	assert.Equal(t, 6144, defaultMaxTokens("qwen2.5:32b"))
	assert.Equal(t, 8192, defaultMaxTokens("llama3.1:70b"))
}

func TestSupportsNativeToolsRespectsExplicitMode(t *testing.T) {
	auto := Config{Model: "llama3.1", ToolMode: ToolModeAuto}.resolved()
	assert.True(t, auto.supportsNativeTools())

	unknown := Config{Model: "tinyllama", ToolMode: ToolModeAuto}.resolved()
	assert.False(t, unknown.supportsNativeTools())

	forced := Config{Model: "tinyllama", ToolMode: ToolModeNative}.resolved()
	assert.True(t, forced.supportsNativeTools())

	suppressed := Config{Model: "llama3.1", ToolMode: ToolModePrompt}.resolved()
	assert.False(t, suppressed.supportsNativeTools())
}

func TestClientNameAndModel(t *testing.T) {
	client := NewClient(Config{Model: "qwen2.5-coder"})
	assert.Equal(t, "ollama", client.Name())
	assert.Equal(t, "qwen2.5-coder", client.Model())
}

func TestChatSimpleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "Hello!", req.Messages[0].Content)

		chunk := ollamaChatChunk{
			Model:           "llama3.1",
			Message:         ollamaMessage{Role: "assistant", Content: "Hello! How can I help you today?"},
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       15,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chunk)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "llama3.1"})
	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "Hello!"}}},
	}}

	resp, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Blocks, 1)
	text, ok := resp.Blocks[0].(llmtypes.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Hello! How can I help you today?", text.Text)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 15, resp.Usage.OutputTokens)
	assert.Equal(t, llmtypes.FinishStop, resp.FinishReason)
}

func TestChatNativeToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "read_file", req.Tools[0].Function.Name)

		chunk := ollamaChatChunk{
			Model: "llama3.1",
			Message: ollamaMessage{
				Role: "assistant",
				ToolCalls: []ollamaToolCall{{Function: struct {
					Name      string         `json:"name"`
					Arguments map[string]any `json:"arguments"`
				}{Name: "read_file", Arguments: map[string]any{"path": "main.go"}}}},
			},
			Done: true,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chunk)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "llama3.1"})
	req := llmtypes.LLMRequest{
		Messages: []llmtypes.Message{{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "read main.go"}}}},
		Tools:    []llmtypes.ToolDefinition{{Name: "read_file", Description: "reads a file", Parameters: json.RawMessage(`{"type":"object"}`)}},
	}

	resp, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Blocks, 1)
	call, ok := resp.Blocks[0].(llmtypes.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "read_file", call.Name)
	assert.JSONEq(t, `{"path":"main.go"}`, string(call.Input))
}

func TestChatStreamAggregatesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		writeChunk := func(c ollamaChatChunk) {
			var buf bytes.Buffer
			require.NoError(t, json.NewEncoder(&buf).Encode(c))
			_, _ = w.Write(buf.Bytes())
			flusher.Flush()
		}

		writeChunk(ollamaChatChunk{Model: "llama3.1", Message: ollamaMessage{Role: "assistant", Content: "Hel"}})
		writeChunk(ollamaChatChunk{Model: "llama3.1", Message: ollamaMessage{Role: "assistant", Content: "lo!"}})
		writeChunk(ollamaChatChunk{Model: "llama3.1", Done: true, PromptEvalCount: 3, EvalCount: 4})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "llama3.1"})
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
	assert.Equal(t, 3, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)
}

func TestChatStreamPropagatesNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "llama3.1"})
	req := llmtypes.LLMRequest{Messages: []llmtypes.Message{
		{Role: llmtypes.RoleUser, Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "hi"}}},
	}}

	_, err := client.ChatStream(context.Background(), req, func(llmtypes.StreamEvent) {})
	assert.Error(t, err)
}

// sanity check that ollamaChatChunk round-trips through a bufio.Scanner line
// the way the streaming reader consumes it.
func TestChatChunkNDJSONLineDecodes(t *testing.T) {
	chunk := ollamaChatChunk{Model: "llama3.1", Message: ollamaMessage{Content: "hi"}, Done: true}
	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(append(raw, '\n')))
	require.True(t, scanner.Scan())
	var decoded ollamaChatChunk
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
	assert.Equal(t, "hi", decoded.Message.Content)
	assert.True(t, decoded.Done)
}
