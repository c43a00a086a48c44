// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package aggregation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderunner/engine/pkg/llm/types"
)

func TestTextDeltaThenDoneFallsBackToBuffer(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventResponseCreated, ResponseID: "r1"}))
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDelta, Index: 0, Delta: "4"}))
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDone, Index: 0, FinalText: "4"}))
	require.NoError(t, s.Apply(types.StreamEvent{
		Kind: types.EventResponseDone, ResponseID: "r1", Model: "m1",
		Usage: types.Usage{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}, FinishReason: types.FinishStop,
	}))

	assert.True(t, s.Complete())
	require.Len(t, s.Blocks(), 1)
	text, ok := s.Blocks()[0].(types.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "4", text.Text)
}

func TestTextDoneEmptyBufferFallsBackToFinalTextField(t *testing.T) {
	s := NewAggregationState()
	// No TextDelta at all arrived for this index; only the done payload.
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDone, Index: 0, FinalText: "hello"}))
	require.Len(t, s.Blocks(), 1)
	assert.Equal(t, types.TextBlock{Text: "hello"}, s.Blocks()[0])
}

func TestTextDoneEmptyEverythingEmitsNoBlock(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDone, Index: 0}))
	assert.Empty(t, s.Blocks())
}

func TestToolCallIdempotentOnFinalInputRegardlessOfDeltaCount(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventToolCallStart, Index: 0, ToolCallID: "c1", ToolCallName: "ls_tool"}))
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventToolCallDelta, Index: 0, ToolCallID: "c1", ArgumentsJSON: json.RawMessage(`{"pa`)}))
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventToolCallDelta, Index: 0, ToolCallID: "c1", ArgumentsJSON: json.RawMessage(`th":"."}`)}))

	final := json.RawMessage(`{"path":"."}`)
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventToolCallDone, Index: 0, ToolCallID: "c1", ToolCallName: "ls_tool", ArgumentsJSON: final}))

	require.Len(t, s.Blocks(), 1)
	tc, ok := s.Blocks()[0].(types.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", tc.ID)
	assert.JSONEq(t, string(final), string(tc.Input))

	views := s.ToolCallViews()
	require.Contains(t, views, 0)
	assert.True(t, views[0].Finished)
}

func TestThinkingDoneCarriesSignatureOntoConcreteBlock(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventThinkingDelta, Index: 0, Delta: "pondering"}))
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventThinkingDone, Index: 0, Signature: "sig-1"}))
	require.Len(t, s.Blocks(), 1)
	assert.Equal(t, types.ThinkingBlock{Content: "pondering", Signature: "sig-1"}, s.Blocks()[0])
}

func TestErrorEventTerminatesAndReturnsError(t *testing.T) {
	s := NewAggregationState()
	err := s.Apply(types.StreamEvent{Kind: types.EventError, ErrorCode: "overloaded", ErrorMessage: "try later"})
	require.Error(t, err)
	assert.True(t, s.Complete())
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "overloaded", streamErr.Code)
}

func TestIgnoredEventIsANoOp(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventIgnored}))
	assert.Empty(t, s.Blocks())
	assert.False(t, s.Complete())
}

func TestTelemetryRecordsFirstChunkOnce(t *testing.T) {
	s := NewAggregationState()
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDelta, Index: 0, Delta: "a"}))
	first := s.Telemetry().TimeToFirstChunk
	require.NotNil(t, first)
	require.NoError(t, s.Apply(types.StreamEvent{Kind: types.EventTextDelta, Index: 0, Delta: "b"}))
	assert.Equal(t, *first, *s.Telemetry().TimeToFirstChunk)
	assert.Equal(t, 2, s.Telemetry().ChunkCount)
}
