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

// Package ollama adapts a local Ollama daemon to the engine's
// provider-agnostic contract. Ollama's streaming endpoint emits
// newline-delimited JSON objects rather than SSE frames, so unlike
// pkg/llm/anthropic this client decodes the wire format by hand — no
// library in the dependency set models Ollama's NDJSON chat protocol.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coderunner/engine/pkg/llm"
	"github.com/coderunner/engine/pkg/llm/aggregation"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// toolSupportedModels lists model families known to support Ollama's native
// tool-calling API (v0.12.3+). Other models are sent no tool definitions
// when ToolMode is Auto; no prompt-based tool simulation is performed.
var toolSupportedModels = map[string]bool{
	"llama3.3": true, "llama3.2": true, "llama3.1": true,
	"qwen2.5": true, "qwen2.5-coder": true, "mistral": true,
	"mixtral": true, "deepseek-r1": true, "functionary": true,
}

// ToolMode controls how tool definitions are conveyed to the model.
type ToolMode string

const (
	ToolModeAuto   ToolMode = "auto"
	ToolModeNative ToolMode = "native"
	ToolModePrompt ToolMode = "prompt"
)

// Config configures a Client.
type Config struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	ToolMode    ToolMode
}

func (c Config) resolved() Config {
	if c.Endpoint == "" {
		c.Endpoint = "http://localhost:11434"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens(c.Model)
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.ToolMode == "" {
		c.ToolMode = ToolModeAuto
	}
	return c
}

// defaultMaxTokens scales the default generation budget with apparent model
// size, inferred from the name: 7B/8B-class models get a tighter budget
// than 70B+-class models.
func defaultMaxTokens(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "70b") || strings.Contains(m, "72b"):
		return 8192
	case strings.Contains(m, "13b") || strings.Contains(m, "14b") || strings.Contains(m, "30b") || strings.Contains(m, "32b"):
		return 6144
	default:
		return 4096
	}
}

func (c Config) supportsNativeTools() bool {
	if c.ToolMode == ToolModeNative {
		return true
	}
	if c.ToolMode == ToolModePrompt {
		return false
	}
	base := strings.SplitN(strings.ToLower(c.Model), ":", 2)[0]
	return toolSupportedModels[base]
}

// Client implements llmtypes.StreamingLLMProvider against a local Ollama
// daemon.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	cfg = cfg.resolved()
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Name() string  { return "ollama" }
func (c *Client) Model() string { return c.cfg.Model }

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Tools    []ollamaTool     `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
	Options  map[string]any   `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Model     string        `json:"model"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	DoneReason string       `json:"done_reason"`
	EvalCount        int `json:"eval_count"`
	PromptEvalCount  int `json:"prompt_eval_count"`
}

func (c *Client) buildRequest(req llmtypes.LLMRequest, stream bool) ollamaChatRequest {
	sanitized := llm.SanitizeForTarget(req.Messages, "ollama", c.cfg.Model)

	messages := make([]ollamaMessage, 0, len(sanitized))
	for _, m := range sanitized {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: blocksToText(m.Blocks)})
	}

	body := ollamaChatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
		Options:  map[string]any{"temperature": c.cfg.Temperature, "num_predict": c.cfg.MaxTokens},
	}
	if len(req.Tools) > 0 && c.cfg.supportsNativeTools() {
		body.Tools = toOllamaTools(req.Tools)
	}
	return body
}

func blocksToText(blocks []llmtypes.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch v := b.(type) {
		case llmtypes.TextBlock:
			sb.WriteString(v.Text)
		case llmtypes.ToolResultBlock:
			sb.WriteString(v.Content)
		}
	}
	return sb.String()
}

func toOllamaTools(defs []llmtypes.ToolDefinition) []ollamaTool {
	out := make([]ollamaTool, 0, len(defs))
	for _, d := range defs {
		var params any
		_ = json.Unmarshal(d.Parameters, &params)
		t := ollamaTool{Type: "function"}
		t.Function.Name = d.Name
		t.Function.Description = d.Description
		t.Function.Parameters = params
		out = append(out, t)
	}
	return out
}

// Chat performs a single non-streaming request.
func (c *Client) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	body := c.buildRequest(req, false)
	chunk, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	return chunkToResponse(chunk), nil
}

func (c *Client) post(ctx context.Context, body ollamaChatRequest) (*ollamaChatChunk, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var chunk ollamaChatChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return &chunk, nil
}

func chunkToResponse(chunk *ollamaChatChunk) *llmtypes.LLMResponse {
	blocks := messageToBlocks(chunk.Message)
	return &llmtypes.LLMResponse{
		Model:  chunk.Model,
		Blocks: blocks,
		Usage: llmtypes.Usage{
			InputTokens:  chunk.PromptEvalCount,
			OutputTokens: chunk.EvalCount,
			TotalTokens:  chunk.PromptEvalCount + chunk.EvalCount,
		},
		FinishReason: llmtypes.FinishStop,
	}
}

func messageToBlocks(m ollamaMessage) []llmtypes.ContentBlock {
	var blocks []llmtypes.ContentBlock
	if m.Content != "" {
		blocks = append(blocks, llmtypes.TextBlock{Text: m.Content})
	}
	for i, tc := range m.ToolCalls {
		input, _ := json.Marshal(tc.Function.Arguments)
		blocks = append(blocks, llmtypes.ToolUseBlock{
			ID:    fmt.Sprintf("ollama-call-%d", i),
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return blocks
}

// ChatStream performs a streaming request, reading Ollama's
// newline-delimited JSON chunks and translating each into normalized
// transport events fed through the shared aggregator.
func (c *Client) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	body := c.buildRequest(req, true)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	agg := aggregation.NewAggregationState()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	apply := func(ev llmtypes.StreamEvent) error {
		if err := agg.Apply(ev); err != nil {
			return err
		}
		sink(ev)
		return nil
	}

	toolIndex := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Message.Content != "" {
			if err := apply(llmtypes.StreamEvent{Kind: llmtypes.EventTextDelta, Delta: chunk.Message.Content}); err != nil {
				return nil, err
			}
		}
		for _, tc := range chunk.Message.ToolCalls {
			input, _ := json.Marshal(tc.Function.Arguments)
			id := fmt.Sprintf("ollama-call-%d", toolIndex)
			if err := apply(llmtypes.StreamEvent{Kind: llmtypes.EventToolCallStart, Index: toolIndex, ToolCallID: id, ToolCallName: tc.Function.Name}); err != nil {
				return nil, err
			}
			if err := apply(llmtypes.StreamEvent{Kind: llmtypes.EventToolCallDone, Index: toolIndex, ToolCallID: id, ToolCallName: tc.Function.Name, ArgumentsJSON: input}); err != nil {
				return nil, err
			}
			toolIndex++
		}

		if chunk.Done {
			if err := apply(llmtypes.StreamEvent{Kind: llmtypes.EventTextDone}); err != nil {
				return nil, err
			}
			if err := apply(llmtypes.StreamEvent{
				Kind: llmtypes.EventResponseDone, Model: chunk.Model,
				Usage:        llmtypes.Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount, TotalTokens: chunk.PromptEvalCount + chunk.EvalCount},
				FinishReason: llmtypes.FinishStop,
			}); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading ollama stream: %w", err)
	}

	resp2 := agg.Snapshot()
	return &resp2, nil
}
