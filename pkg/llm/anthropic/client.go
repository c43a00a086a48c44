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

// Package anthropic adapts Anthropic's Claude API to the engine's
// provider-agnostic pkg/llm/types contract, using the vendor SDK for
// request construction and event-stream decoding rather than a hand-rolled
// HTTP client.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/coderunner/engine/pkg/llm"
	"github.com/coderunner/engine/pkg/llm/aggregation"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

const (
	// DefaultAnthropicModel is the default Claude model.
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTemperature is the default LLM temperature.
	DefaultTemperature = 1.0
	// DefaultIdleTimeout is how long ChatStream waits between events before
	// failing with StreamIdleTimeout.
	DefaultIdleTimeout = 30 * time.Second
)

// Global singleton rate limiter shared across all Anthropic clients, same
// discipline the rest of pkg/llm uses to keep a process-wide request budget
// regardless of how many Client instances exist.
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

// Config configures a Client. Zero values fall back to environment
// variables and then package defaults.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	IdleTimeout time.Duration
	RetryConfig llm.RetryConfig
	Logger      *zap.Logger
}

func (c Config) resolved() Config {
	if c.Model == "" {
		c.Model = os.Getenv("ANTHROPIC_DEFAULT_MODEL")
	}
	if c.Model == "" {
		c.Model = DefaultAnthropicModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.RetryConfig.MaxAttempts == 0 {
		c.RetryConfig = llm.DefaultRetryConfig()
	}
	return c
}

// Client implements llmtypes.StreamingLLMProvider for Anthropic's Claude
// API.
type Client struct {
	cfg         Config
	sdk         anthropic.Client
	rateLimiter *llm.RateLimiter
}

// NewClient constructs a Client. apiKey falls back to ANTHROPIC_API_KEY when
// empty.
func NewClient(cfg Config) *Client {
	cfg = cfg.resolved()
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &Client{
		cfg:         cfg,
		sdk:         anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		rateLimiter: sharedRateLimiter(),
	}
}

// Name identifies this provider to the factory and to message provenance
// metadata.
func (c *Client) Name() string { return "anthropic" }

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }

// Chat performs a single non-streaming request.
func (c *Client) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := BuildMessageParams(c.cfg, req)
	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, ClassifyAndWrap(err)
	}
	return FromMessage(msg), nil
}

// ChatStream performs a streaming request, feeding normalized events to
// sink as they are decoded off the SDK's event stream, and returns the
// fully aggregated response once the stream completes (or fails).
func (c *Client) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := BuildMessageParams(c.cfg, req)
	stream := c.sdk.Messages.NewStreaming(ctx, params)

	agg := aggregation.NewAggregationState()
	idleTimer := time.NewTimer(c.cfg.IdleTimeout)
	defer idleTimer.Stop()

	events := make(chan anthropic.MessageStreamEventUnion)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for stream.Next() {
			events <- stream.Current()
		}
		errs <- stream.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-idleTimer.C:
			return nil, llm.ErrStreamIdleTimeout
		case raw, ok := <-events:
			if !ok {
				if err := <-errs; err != nil {
					return nil, ClassifyAndWrap(err)
				}
				resp := agg.Snapshot()
				return &resp, nil
			}
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(c.cfg.IdleTimeout)

			for _, ev := range TranslateEvent(raw) {
				if err := agg.Apply(ev); err != nil {
					return nil, err
				}
				sink(ev)
			}
		}
	}
}

// BuildMessageParams builds the SDK request from the provider-agnostic shape,
// applying the cross-provider sanitization pass first since prior messages
// may have been produced by a different provider or model.
func BuildMessageParams(cfg Config, req llmtypes.LLMRequest) anthropic.MessageNewParams {
	sanitized := llm.SanitizeForTarget(req.Messages, "anthropic", cfg.Model)

	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(sanitized))
	for _, m := range sanitized {
		if m.Role == llmtypes.RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: blocksToPlainText(m.Blocks)})
			continue
		}
		messages = append(messages, toAnthropicMessage(m))
	}

	maxTokens := int64(cfg.MaxTokens)
	if req.Params.MaxTokens > 0 {
		maxTokens = int64(req.Params.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Params.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		params.TopP = anthropic.Float(*req.Params.TopP)
	}
	if len(req.Tools) > 0 {
		tools := req.Tools
		if req.ToolChoice != nil && req.ToolChoice.Mode == llmtypes.ToolChoiceAllowed {
			allowed := make(map[string]bool, len(req.ToolChoice.AllowedNames))
			for _, n := range req.ToolChoice.AllowedNames {
				allowed[n] = true
			}
			tools = nil
			for _, t := range req.Tools {
				if allowed[t.Name] {
					tools = append(tools, t)
				}
			}
		}
		params.Tools = toAnthropicTools(tools)
	}
	if req.ToolChoice != nil {
		params.ToolChoice = toAnthropicToolChoice(*req.ToolChoice)
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.Thinking.BudgetTokens))
	}
	return params
}

func blocksToPlainText(blocks []llmtypes.ContentBlock) string {
	var out string
	for _, b := range blocks {
		if t, ok := b.(llmtypes.TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

func toAnthropicMessage(m llmtypes.Message) anthropic.MessageParam {
	role := anthropic.MessageParamRoleUser
	if m.Role == llmtypes.RoleAssistant {
		role = anthropic.MessageParamRoleAssistant
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case llmtypes.TextBlock:
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case llmtypes.ImageBlock:
			if v.URL != "" {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: v.URL}))
			} else {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{Data: v.Base64, MediaType: anthropic.Base64ImageSourceMediaType(v.MIMEType)}))
			}
		case llmtypes.ToolUseBlock:
			var input any
			_ = json.Unmarshal(v.Input, &input)
			blocks = append(blocks, anthropic.NewToolUseBlock(v.ID, input, v.Name))
		case llmtypes.ToolResultBlock:
			blocks = append(blocks, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		case llmtypes.ThinkingBlock:
			blocks = append(blocks, anthropic.NewThinkingBlock(v.Signature, v.Content))
		}
	}
	return anthropic.MessageParam{Role: role, Content: blocks}
}

func toAnthropicTools(tools []llmtypes.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   toStringSlice(schema["required"]),
		}, t.Name))
	}
	return out
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnthropicToolChoice(tc llmtypes.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch tc.Mode {
	case llmtypes.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case llmtypes.ToolChoiceRequired:
		return anthropic.ToolChoiceParamOfAny()
	case llmtypes.ToolChoiceNamed:
		return anthropic.ToolChoiceParamOfTool(tc.Name)
	case llmtypes.ToolChoiceAllowed:
		// Normalized cross-provider semantics (§4.1 Open Question): AllowedTools
		// is translated to Auto-over-the-subset. Anthropic has no first-class
		// allowed-subset primitive, so the subset is enforced by only sending
		// those tool definitions in the request rather than at ToolChoice level.
		return anthropic.ToolChoiceParamOfAuto()
	default:
		return anthropic.ToolChoiceParamOfAuto()
	}
}

// TranslateEvent maps one Anthropic SSE event onto zero or more normalized
// transport events. A single Anthropic event sometimes yields nothing (e.g.
// ping) and ContentBlockStart for a tool_use block yields a ToolCallStart.
func TranslateEvent(raw anthropic.MessageStreamEventUnion) []llmtypes.StreamEvent {
	switch variant := raw.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return []llmtypes.StreamEvent{{Kind: llmtypes.EventResponseCreated, ResponseID: variant.Message.ID}}

	case anthropic.ContentBlockStartEvent:
		switch b := variant.ContentBlock.AsAny().(type) {
		case anthropic.ToolUseBlock:
			return []llmtypes.StreamEvent{{Kind: llmtypes.EventToolCallStart, Index: int(variant.Index), ToolCallID: b.ID, ToolCallName: b.Name}}
		}
		return nil

	case anthropic.ContentBlockDeltaEvent:
		switch d := variant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return []llmtypes.StreamEvent{{Kind: llmtypes.EventTextDelta, Index: int(variant.Index), Delta: d.Text}}
		case anthropic.ThinkingDelta:
			return []llmtypes.StreamEvent{{Kind: llmtypes.EventThinkingDelta, Index: int(variant.Index), Delta: d.Thinking}}
		case anthropic.InputJSONDelta:
			return []llmtypes.StreamEvent{{Kind: llmtypes.EventToolCallDelta, Index: int(variant.Index), ArgumentsJSON: json.RawMessage(d.PartialJSON)}}
		case anthropic.SignatureDelta:
			return []llmtypes.StreamEvent{{Kind: llmtypes.EventThinkingDone, Index: int(variant.Index), Signature: d.Signature}}
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		// The concrete finalization (text vs thinking vs tool) is decided by
		// which partial kind is installed at this index; the aggregator itself
		// only needs a Done event per kind, so emit both TextDone and
		// ToolCallDone shapes and let Apply no-op on whichever didn't apply.
		return []llmtypes.StreamEvent{
			{Kind: llmtypes.EventTextDone, Index: int(variant.Index)},
			{Kind: llmtypes.EventToolCallDone, Index: int(variant.Index)},
		}

	case anthropic.MessageDeltaEvent:
		return []llmtypes.StreamEvent{{
			Kind:         llmtypes.EventResponseDone,
			FinishReason: MapStopReason(string(variant.Delta.StopReason)),
			Usage: llmtypes.Usage{
				OutputTokens: int(variant.Usage.OutputTokens),
			},
		}}

	case anthropic.MessageStopEvent:
		return nil

	default:
		return []llmtypes.StreamEvent{{Kind: llmtypes.EventIgnored}}
	}
}

func MapStopReason(reason string) llmtypes.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return llmtypes.FinishStop
	case "max_tokens":
		return llmtypes.FinishLength
	case "tool_use":
		return llmtypes.FinishToolUse
	default:
		return llmtypes.FinishStop
	}
}

func FromMessage(msg *anthropic.Message) *llmtypes.LLMResponse {
	blocks := make([]llmtypes.ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		switch v := b.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, llmtypes.TextBlock{Text: v.Text})
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(v.Input)
			blocks = append(blocks, llmtypes.ToolUseBlock{ID: v.ID, Name: v.Name, Input: input})
		case anthropic.ThinkingBlock:
			blocks = append(blocks, llmtypes.ThinkingBlock{Content: v.Thinking, Signature: v.Signature})
		}
	}
	return &llmtypes.LLMResponse{
		ID:    msg.ID,
		Model: string(msg.Model),
		Blocks: blocks,
		Usage: llmtypes.Usage{
			InputTokens:              int(msg.Usage.InputTokens),
			OutputTokens:             int(msg.Usage.OutputTokens),
			TotalTokens:              int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			CacheCreationInputTokens: int(msg.Usage.CacheCreationInputTokens),
			CacheReadInputTokens:     int(msg.Usage.CacheReadInputTokens),
		},
		FinishReason: MapStopReason(string(msg.StopReason)),
	}
}

// ClassifyAndWrap maps SDK errors to the engine's retry-classifiable error
// taxonomy (§4.1 failure semantics) by wrapping them with a message prefix
// naming the class ("rate limited", "overloaded", ...). No ErrorClass value
// is attached; errors that are not SDK errors are returned unchanged.
func ClassifyAndWrap(err error) error {
	apiErr, ok := err.(*anthropic.Error)
	if !ok {
		return err
	}
	switch apiErr.StatusCode {
	case 429:
		return fmt.Errorf("rate limited: %w", err)
	case 529:
		return fmt.Errorf("overloaded: %w", err)
	case 401, 403:
		return fmt.Errorf("authentication failed: %w", err)
	case 400:
		return fmt.Errorf("invalid request: %w", err)
	}
	if apiErr.StatusCode >= 500 {
		return fmt.Errorf("server error: %w", err)
	}
	return err
}
