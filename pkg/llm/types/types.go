// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types defines the provider-agnostic request/response model shared
// by every backend under pkg/llm. Nothing here knows about a specific wire
// format; per-provider packages translate to and from these shapes.
package types

import (
	"context"
	"encoding/json"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FinishReason is the normalized reason a model stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength         FinishReason = "length"
	FinishToolUse        FinishReason = "tool_use"
	FinishContentFilter  FinishReason = "content_filter"
	FinishStopSequence   FinishReason = "stop_sequence"
)

// ContentBlock is the tagged-variant union described for the assistant
// message model: Text, Image, ToolUse, ToolResult, Thinking. Each concrete
// type below implements the marker method so callers can type-switch.
type ContentBlock interface {
	isContentBlock()
}

// TextBlock is plain text content.
type TextBlock struct {
	Text string
}

func (TextBlock) isContentBlock() {}

// ImageDetail controls how much of an image a provider should attend to.
type ImageDetail string

const (
	ImageDetailAuto ImageDetail = "auto"
	ImageDetailLow  ImageDetail = "low"
	ImageDetailHigh ImageDetail = "high"
)

// ImageBlock carries either inline base64 data or a URL, never both.
type ImageBlock struct {
	Base64   string
	URL      string
	MIMEType string
	Detail   ImageDetail
}

func (ImageBlock) isContentBlock() {}

// ToolUseBlock is a completed tool invocation requested by the model. Input
// is the complete arguments object: the final arguments the provider reports
// when the call completes, or, when it reports none, the concatenation of the
// streamed argument deltas.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUseBlock) isContentBlock() {}

// ToolResultBlock carries the outcome of executing a ToolUseBlock back to
// the model.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
	IsCustom  bool
}

func (ToolResultBlock) isContentBlock() {}

// ThinkingBlock is extended-reasoning content. Signature is opaque,
// provider-and-model scoped, and must be stripped when a message crosses
// into a different provider or model (see sanitize.go).
type ThinkingBlock struct {
	Content   string
	Signature string
}

func (ThinkingBlock) isContentBlock() {}

// ProviderMetadata records where a message came from so cross-provider
// sanitization knows when thinking signatures must be stripped, and carries
// opaque per-provider extensions (e.g. Anthropic cache-control hints).
type ProviderMetadata struct {
	Provider   string
	Model      string
	Extensions map[string]any
}

// Message is one turn of conversation content.
type Message struct {
	Role     Role
	Blocks   []ContentBlock
	Metadata ProviderMetadata
}

// Usage totals token consumption for one request/response.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	TotalTokens              int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}

// ToolChoiceMode selects how strongly the model must invoke tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto         ToolChoiceMode = "auto"
	ToolChoiceNone         ToolChoiceMode = "none"
	ToolChoiceRequired     ToolChoiceMode = "required"
	ToolChoiceNamed        ToolChoiceMode = "named"
	ToolChoiceAllowed      ToolChoiceMode = "allowed"
	ToolChoiceBuiltIn      ToolChoiceMode = "builtin"
)

// ToolChoice is request-level guidance on tool invocation. AllowedNames and
// AllowedMode are only meaningful when Mode == ToolChoiceAllowed.
type ToolChoice struct {
	Mode         ToolChoiceMode
	Name         string
	AllowedNames []string
	AllowedMode  string
	BuiltInKind  string
}

// ToolDefinition describes one callable tool in the request's tool list.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Strict      bool
}

// ThinkingConfig requests extended reasoning from providers that support it.
type ThinkingConfig struct {
	Enabled      bool
	BudgetTokens int
}

// ModelParams carries the common sampling knobs across providers.
type ModelParams struct {
	Temperature      *float64
	TopP             *float64
	TopK             *int
	MaxTokens        int
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// LLMRequest is the provider-agnostic request shape.
type LLMRequest struct {
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice *ToolChoice
	Thinking   *ThinkingConfig
	Params     ModelParams
}

// LLMResponse is the provider-agnostic non-streaming response shape.
type LLMResponse struct {
	ID           string
	Model        string
	Blocks       []ContentBlock
	Usage        Usage
	FinishReason FinishReason
}

// ToolCall mirrors a finalized ToolUseBlock for call sites that only care
// about the invocation, not the surrounding message.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// TokenCallback is invoked as non-streaming providers become aware of
// incremental usage (used by instrumentation wrappers); streaming providers
// report usage through StreamEvent instead.
type TokenCallback func(usage Usage)

// LLMProvider is the minimal non-streaming contract every backend
// implements.
type LLMProvider interface {
	Name() string
	Model() string
	Chat(ctx context.Context, req LLMRequest) (*LLMResponse, error)
}

// StreamingLLMProvider additionally exposes event-based streaming.
type StreamingLLMProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, req LLMRequest, sink func(StreamEvent)) (*LLMResponse, error)
}
