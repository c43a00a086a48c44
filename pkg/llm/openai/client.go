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

// Package openai adapts any OpenAI-chat-completions-compatible endpoint
// (OpenAI itself, and the many local/hosted servers that mirror its wire
// format) to the engine's provider-agnostic contract. Its streaming
// transport is genuine Server-Sent Events, so unlike pkg/llm/ollama this
// client decodes frames with github.com/r3labs/sse/v2 instead of a
// hand-rolled line scanner.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"

	"github.com/coderunner/engine/pkg/llm"
	"github.com/coderunner/engine/pkg/llm/aggregation"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

var (
	globalRateLimiter     *llm.RateLimiter
	globalRateLimiterOnce sync.Once
)

func sharedRateLimiter() *llm.RateLimiter {
	globalRateLimiterOnce.Do(func() {
		globalRateLimiter = llm.NewRateLimiter(llm.DefaultRateLimiterConfig())
	})
	return globalRateLimiter
}

// Client implements llmtypes.StreamingLLMProvider for OpenAI's chat
// completions API and compatible endpoints.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *llm.RateLimiter
}

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	IdleTimeout time.Duration
}

const (
	DefaultOpenAIModel       = "gpt-4.1"
	DefaultOpenAIEndpoint    = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAITimeout     = 60 * time.Second
	DefaultOpenAIMaxTokens   = 4096
	DefaultOpenAITemperature = 1.0
	DefaultIdleTimeout       = 30 * time.Second
)

func (c Config) resolved() Config {
	if c.Model == "" {
		c.Model = firstNonEmpty(os.Getenv("OPENAI_DEFAULT_MODEL"), DefaultOpenAIModel)
	}
	if c.Endpoint == "" {
		c.Endpoint = firstNonEmpty(os.Getenv("OPENAI_API_ENDPOINT"), DefaultOpenAIEndpoint)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultOpenAITimeout
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultOpenAIMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultOpenAITemperature
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	cfg = cfg.resolved()
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: sharedRateLimiter(),
	}
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) buildRequest(req llmtypes.LLMRequest, stream bool) *ChatCompletionRequest {
	sanitized := llm.SanitizeForTarget(req.Messages, "openai", c.cfg.Model)

	out := &ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(sanitized),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      stream,
	}
	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
		if req.ToolChoice != nil {
			out.ToolChoice = toOpenAIToolChoice(*req.ToolChoice)
		}
	}
	return out
}

func toChatMessages(messages []llmtypes.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llmtypes.RoleTool:
			for _, b := range msg.Blocks {
				if tr, ok := b.(llmtypes.ToolResultBlock); ok {
					out = append(out, ChatMessage{Role: "tool", Content: tr.Content, ToolCallID: tr.ToolUseID})
				}
			}
		case llmtypes.RoleAssistant:
			apiMsg := ChatMessage{Role: "assistant"}
			var text string
			var calls []ToolCall
			for _, b := range msg.Blocks {
				switch v := b.(type) {
				case llmtypes.TextBlock:
					text += v.Text
				case llmtypes.ToolUseBlock:
					calls = append(calls, ToolCall{ID: v.ID, Type: "function", Function: FunctionCall{Name: v.Name, Arguments: string(v.Input)}})
				}
			}
			if text != "" {
				apiMsg.Content = text
			}
			apiMsg.ToolCalls = calls
			out = append(out, apiMsg)
		default:
			out = append(out, ChatMessage{Role: string(msg.Role), Content: blocksToContent(msg.Blocks)})
		}
	}
	return out
}

// blocksToContent builds OpenAI's multi-part content array when images are
// present, falling back to a plain string for text-only messages.
func blocksToContent(blocks []llmtypes.ContentBlock) interface{} {
	hasImage := false
	for _, b := range blocks {
		if _, ok := b.(llmtypes.ImageBlock); ok {
			hasImage = true
			break
		}
	}
	if !hasImage {
		var sb bytes.Buffer
		for _, b := range blocks {
			if t, ok := b.(llmtypes.TextBlock); ok {
				sb.WriteString(t.Text)
			}
		}
		return sb.String()
	}

	var parts []map[string]interface{}
	for _, b := range blocks {
		switch v := b.(type) {
		case llmtypes.TextBlock:
			parts = append(parts, map[string]interface{}{"type": "text", "text": v.Text})
		case llmtypes.ImageBlock:
			url := v.URL
			if url == "" {
				url = fmt.Sprintf("data:%s;base64,%s", v.MIMEType, v.Base64)
			}
			parts = append(parts, map[string]interface{}{"type": "image_url", "image_url": map[string]interface{}{"url": url}})
		}
	}
	return parts
}

func toOpenAITools(defs []llmtypes.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		var params map[string]interface{}
		_ = json.Unmarshal(d.Parameters, &params)
		out = append(out, Tool{Type: "function", Function: FunctionDef{Name: d.Name, Description: d.Description, Parameters: params}})
	}
	return out
}

func toOpenAIToolChoice(tc llmtypes.ToolChoice) interface{} {
	switch tc.Mode {
	case llmtypes.ToolChoiceNone:
		return "none"
	case llmtypes.ToolChoiceRequired:
		return "required"
	case llmtypes.ToolChoiceNamed:
		return map[string]interface{}{"type": "function", "function": map[string]string{"name": tc.Name}}
	default:
		return "auto"
	}
}

// Chat performs a single non-streaming request.
func (c *Client) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	body := c.buildRequest(req, false)
	resp, err := c.callAPI(ctx, body)
	if err != nil {
		return nil, err
	}
	return fromChatCompletion(resp), nil
}

func (c *Client) callAPI(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading openai response: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding openai response: %w", err)
	}
	if resp.Error != nil {
		return nil, classifyAPIError(httpResp.StatusCode, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(httpResp.StatusCode, string(respBody))
	}
	return &resp, nil
}

// classifyAPIError maps HTTP status codes to the engine's retry-classifiable
// error taxonomy (§4.1 failure semantics), mirroring anthropic.ClassifyAndWrap.
func classifyAPIError(status int, message string) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited (status %d): %s", status, message)
	case 529:
		return fmt.Errorf("overloaded (status %d): %s", status, message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("authentication failed (status %d): %s", status, message)
	case http.StatusBadRequest:
		return fmt.Errorf("invalid request (status %d): %s", status, message)
	default:
		if status >= 500 {
			return fmt.Errorf("server error (status %d): %s", status, message)
		}
		return fmt.Errorf("openai API error (status %d): %s", status, message)
	}
}

func fromChatCompletion(resp *ChatCompletionResponse) *llmtypes.LLMResponse {
	out := &llmtypes.LLMResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: llmtypes.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.FinishReason = mapFinishReason(choice.FinishReason)

	if str, ok := choice.Message.Content.(string); ok && str != "" {
		out.Blocks = append(out.Blocks, llmtypes.TextBlock{Text: str})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Blocks = append(out.Blocks, llmtypes.ToolUseBlock{ID: tc.ID, Name: tc.Function.Name, Input: json.RawMessage(tc.Function.Arguments)})
	}
	return out
}

func mapFinishReason(reason string) llmtypes.FinishReason {
	switch reason {
	case "stop":
		return llmtypes.FinishStop
	case "length":
		return llmtypes.FinishLength
	case "tool_calls", "function_call":
		return llmtypes.FinishToolUse
	case "content_filter":
		return llmtypes.FinishContentFilter
	default:
		return llmtypes.FinishStop
	}
}

// ChatStream performs a streaming request, decoding the SSE frames with
// r3labs/sse/v2 and feeding translated events through the shared
// aggregator.
func (c *Client) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := c.buildRequest(req, true)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	sseClient := sse.NewClient(c.cfg.Endpoint)
	sseClient.Method = http.MethodPost
	sseClient.Body = bytes.NewReader(raw)
	sseClient.Headers["Content-Type"] = "application/json"
	sseClient.Headers["Authorization"] = "Bearer " + c.cfg.APIKey
	sseClient.Connection = c.httpClient

	agg := aggregation.NewAggregationState()
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	idleTimer := time.NewTimer(c.cfg.IdleTimeout)
	defer idleTimer.Stop()

	var applyErr error
	toolIndex := make(map[int]string)
	toolNames := make(map[int]string)
	toolArgs := make(map[int]string)
	nextTool := 0

	handler := func(msg *sse.Event) {
		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(c.cfg.IdleTimeout)

		data := bytes.TrimSpace(msg.Data)
		if len(data) == 0 {
			return
		}
		if string(data) == "[DONE]" {
			cancel()
			return
		}

		var chunk ChatCompletionStreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return
		}

		apply := func(ev llmtypes.StreamEvent) {
			if applyErr != nil {
				return
			}
			if err := agg.Apply(ev); err != nil {
				applyErr = err
				cancel()
				return
			}
			sink(ev)
		}

		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				apply(llmtypes.StreamEvent{Kind: llmtypes.EventResponseDone, Model: chunk.Model, Usage: llmtypes.Usage{
					InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens, TotalTokens: chunk.Usage.TotalTokens,
				}})
			}
			return
		}

		choice := chunk.Choices[0]
		if str, ok := choice.Delta.Content.(string); ok && str != "" {
			apply(llmtypes.StreamEvent{Kind: llmtypes.EventTextDelta, Delta: str})
		}
		for _, tcDelta := range choice.Delta.ToolCalls {
			id, seen := toolIndex[tcDelta.Index]
			if !seen {
				id = tcDelta.ID
				if id == "" {
					id = fmt.Sprintf("openai-call-%d", nextTool)
				}
				toolIndex[tcDelta.Index] = id
				toolNames[tcDelta.Index] = tcDelta.Function.Name
				nextTool++
				apply(llmtypes.StreamEvent{Kind: llmtypes.EventToolCallStart, Index: tcDelta.Index, ToolCallID: id, ToolCallName: tcDelta.Function.Name})
			}
			if tcDelta.Function.Arguments != "" {
				toolArgs[tcDelta.Index] += tcDelta.Function.Arguments
				apply(llmtypes.StreamEvent{Kind: llmtypes.EventToolCallDelta, Index: tcDelta.Index, ToolCallID: id, ArgumentsJSON: json.RawMessage(tcDelta.Function.Arguments)})
			}
		}
		if choice.FinishReason != "" {
			for idx, id := range toolIndex {
				apply(llmtypes.StreamEvent{Kind: llmtypes.EventToolCallDone, Index: idx, ToolCallID: id, ToolCallName: toolNames[idx], ArgumentsJSON: json.RawMessage(toolArgs[idx])})
			}
			apply(llmtypes.StreamEvent{Kind: llmtypes.EventTextDone})
			apply(llmtypes.StreamEvent{Kind: llmtypes.EventResponseDone, Model: chunk.Model, FinishReason: mapFinishReason(choice.FinishReason)})
		}
	}

	if err := sseClient.SubscribeWithContext(streamCtx, "", handler); err != nil && streamCtx.Err() == nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	if applyErr != nil {
		return nil, applyErr
	}

	resp := agg.Snapshot()
	return &resp, nil
}

var (
	_ llmtypes.LLMProvider          = (*Client)(nil)
	_ llmtypes.StreamingLLMProvider = (*Client)(nil)
)
