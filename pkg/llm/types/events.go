// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import "encoding/json"

// StreamEventKind tags the normalized transport-layer events every provider
// adapter translates its wire format into before handing them to the
// aggregator.
type StreamEventKind string

const (
	EventTextDelta       StreamEventKind = "text_delta"
	EventTextDone        StreamEventKind = "text_done"
	EventThinkingDelta   StreamEventKind = "thinking_delta"
	EventThinkingDone    StreamEventKind = "thinking_done"
	EventToolCallStart   StreamEventKind = "tool_call_start"
	EventToolCallDelta   StreamEventKind = "tool_call_delta"
	EventToolCallDone    StreamEventKind = "tool_call_done"
	EventResponseCreated StreamEventKind = "response_created"
	EventResponseDone    StreamEventKind = "response_done"
	EventError           StreamEventKind = "error"
	EventIgnored         StreamEventKind = "ignored"
)

// StreamEvent is a single normalized transport event. Only the fields
// relevant to Kind are populated; the rest are zero.
type StreamEvent struct {
	Kind StreamEventKind

	Index int

	// Text/Thinking delta and done fields.
	Delta         string
	FinalText     string
	Signature     string

	// Tool call fields.
	ToolCallID    string
	ToolCallName  string
	ArgumentsJSON json.RawMessage // fragment on EventToolCallDelta; final input on EventToolCallDone when the provider reports one

	// Response lifecycle fields.
	ResponseID   string
	Model        string
	Usage        Usage
	FinishReason FinishReason

	// Error fields.
	ErrorCode    string
	ErrorMessage string
}
