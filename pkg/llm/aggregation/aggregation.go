// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package aggregation turns the per-index delta/done events a provider
// transport emits into the monotonically-updated StreamSnapshot the rest of
// the engine consumes. It is pure domain logic: it has no knowledge of HTTP,
// SSE framing, or any particular provider's wire format.
package aggregation

import (
	"encoding/json"
	"time"

	"github.com/coderunner/engine/pkg/llm/types"
)

// partialKind distinguishes the two kinds of streamed content that
// accumulate in a buffer before finalizing (text and thinking); tool calls
// get their own partial shape since they track id/name alongside the
// buffer.
type partialKind int

const (
	partialText partialKind = iota
	partialThinking
)

type textPartial struct {
	kind   partialKind
	buffer string
}

type toolPartial struct {
	id             string
	name           string
	argumentsBuf   string
}

// ToolCallView is the in-flight or finalized view of one tool call in the
// current assistant message, exposed to callers that need to show progress
// before ToolCallDone arrives.
type ToolCallView struct {
	ID       string
	Name     string
	Input    json.RawMessage
	Finished bool
}

// StreamTelemetry records timing signals an idle-timeout and retry
// controller can use to explain a stall: time to the first content delta,
// how many stream events arrived, how many times IsStalled was observed
// true between events, and when the last event landed.
type StreamTelemetry struct {
	TimeToFirstChunk *time.Duration
	StallCount       int
	ChunkCount       int
	LastEventTime    time.Time

	startedAt time.Time
}

// IsStalled reports whether more than threshold has elapsed since the last
// event. It does not mutate state; callers that poll it on a timer are
// expected to also call NoteStallCheck if they want StallCount to reflect
// observed stalls.
func (t *StreamTelemetry) IsStalled(threshold time.Duration) bool {
	if t.LastEventTime.IsZero() {
		return time.Since(t.startedAt) > threshold
	}
	return time.Since(t.LastEventTime) > threshold
}

// NoteStallCheck increments StallCount when a poller observes a stall; kept
// separate from IsStalled so read-only callers (logging, metrics) don't
// perturb the counter.
func (t *StreamTelemetry) NoteStallCheck(threshold time.Duration) bool {
	stalled := t.IsStalled(threshold)
	if stalled {
		t.StallCount++
	}
	return stalled
}

// AggregationState accumulates deltas keyed by block index and exposes the
// finished content blocks plus a live Snapshot of everything seen so far.
// It is not safe for concurrent use; one instance serves one in-flight
// response.
type AggregationState struct {
	textPartials []*textPartial // sparse, indexed by block index; nil until created
	toolPartials []*toolPartial

	blocks []types.ContentBlock // finalized blocks, in completion order

	toolViews map[int]*ToolCallView // live view per index, kept after completion

	responseID   string
	model        string
	usage        types.Usage
	finishReason types.FinishReason
	complete     bool

	telemetry StreamTelemetry
}

// NewAggregationState returns a fresh aggregator ready to consume events for
// one streaming response.
func NewAggregationState() *AggregationState {
	return &AggregationState{
		toolViews: make(map[int]*ToolCallView),
		telemetry: StreamTelemetry{startedAt: time.Now()},
	}
}

func (s *AggregationState) ensureTextLen(index int) {
	for len(s.textPartials) <= index {
		s.textPartials = append(s.textPartials, nil)
	}
}

func (s *AggregationState) ensureToolLen(index int) {
	for len(s.toolPartials) <= index {
		s.toolPartials = append(s.toolPartials, nil)
	}
}

// Apply feeds one normalized transport event into the state machine,
// updating telemetry and, when the event finalizes content, appending to
// Blocks(). It returns an error only for EventError, after recording it as
// terminal.
func (s *AggregationState) Apply(ev types.StreamEvent) error {
	now := time.Now()
	if s.telemetry.ChunkCount == 0 {
		s.telemetry.startedAt = now
	}
	s.telemetry.ChunkCount++
	defer func() { s.telemetry.LastEventTime = now }()

	switch ev.Kind {
	case types.EventTextDelta:
		s.noteFirstChunk(now)
		s.ensureTextLen(ev.Index)
		p := s.textPartials[ev.Index]
		if p == nil {
			p = &textPartial{kind: partialText}
			s.textPartials[ev.Index] = p
		}
		p.buffer += ev.Delta

	case types.EventTextDone:
		var buffer string
		if ev.Index < len(s.textPartials) && s.textPartials[ev.Index] != nil {
			buffer = s.textPartials[ev.Index].buffer
			s.textPartials[ev.Index] = nil
		}
		final := buffer
		if final == "" {
			final = ev.FinalText
		}
		if final != "" {
			s.blocks = append(s.blocks, types.TextBlock{Text: final})
		}

	case types.EventThinkingDelta:
		s.noteFirstChunk(now)
		s.ensureTextLen(ev.Index)
		p := s.textPartials[ev.Index]
		if p == nil {
			p = &textPartial{kind: partialThinking}
			s.textPartials[ev.Index] = p
		}
		p.buffer += ev.Delta

	case types.EventThinkingDone:
		var buffer string
		if ev.Index < len(s.textPartials) && s.textPartials[ev.Index] != nil {
			buffer = s.textPartials[ev.Index].buffer
			s.textPartials[ev.Index] = nil
		}
		content := buffer
		if content == "" {
			content = ev.FinalText
		}
		if content != "" {
			s.blocks = append(s.blocks, types.ThinkingBlock{Content: content, Signature: ev.Signature})
		}

	case types.EventToolCallStart:
		s.ensureToolLen(ev.Index)
		p := &toolPartial{id: ev.ToolCallID, name: ev.ToolCallName}
		s.toolPartials[ev.Index] = p
		s.toolViews[ev.Index] = &ToolCallView{ID: ev.ToolCallID, Name: ev.ToolCallName}

	case types.EventToolCallDelta:
		s.ensureToolLen(ev.Index)
		p := s.toolPartials[ev.Index]
		if p == nil {
			p = &toolPartial{id: ev.ToolCallID, name: ev.ToolCallName}
			s.toolPartials[ev.Index] = p
			s.toolViews[ev.Index] = &ToolCallView{ID: ev.ToolCallID, Name: ev.ToolCallName}
		}
		p.argumentsBuf += string(ev.ArgumentsJSON)
		if v, ok := s.toolViews[ev.Index]; ok {
			v.Input = json.RawMessage(p.argumentsBuf)
		}

	case types.EventToolCallDone:
		var p *toolPartial
		if ev.Index < len(s.toolPartials) {
			p, s.toolPartials[ev.Index] = s.toolPartials[ev.Index], nil
		}
		id, name, args := ev.ToolCallID, ev.ToolCallName, ev.ArgumentsJSON
		if p != nil && id == "" {
			id, name = p.id, p.name
		}
		if p != nil && len(args) == 0 {
			args = json.RawMessage(p.argumentsBuf)
		}
		if id == "" {
			break // no tool call at this index
		}
		block := types.ToolUseBlock{ID: id, Name: name, Input: args}
		s.blocks = append(s.blocks, block)
		s.toolViews[ev.Index] = &ToolCallView{ID: id, Name: name, Input: args, Finished: true}

	case types.EventResponseCreated:
		s.responseID = ev.ResponseID

	case types.EventResponseDone:
		s.responseID = cmpOr(s.responseID, ev.ResponseID)
		s.model = ev.Model
		s.usage = ev.Usage
		s.finishReason = ev.FinishReason
		s.complete = true

	case types.EventError:
		s.complete = true
		return &StreamError{Code: ev.ErrorCode, Message: ev.ErrorMessage}

	case types.EventIgnored:
		// transport-level keepalive; nothing to do.
	}

	return nil
}

func (s *AggregationState) noteFirstChunk(at time.Time) {
	if s.telemetry.TimeToFirstChunk != nil {
		return
	}
	d := at.Sub(s.telemetry.startedAt)
	s.telemetry.TimeToFirstChunk = &d
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// StreamError is returned by Apply when the transport reports a terminal
// error.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string { return e.Code + ": " + e.Message }

// Blocks returns the finalized content blocks in completion order.
func (s *AggregationState) Blocks() []types.ContentBlock { return s.blocks }

// ToolCallViews returns the live per-index tool call views, including ones
// still accumulating arguments.
func (s *AggregationState) ToolCallViews() map[int]*ToolCallView { return s.toolViews }

// Complete reports whether ResponseDone (or a terminal error) has been
// observed.
func (s *AggregationState) Complete() bool { return s.complete }

// Telemetry exposes the timing signals collected so far.
func (s *AggregationState) Telemetry() StreamTelemetry { return s.telemetry }

// Snapshot materializes the Response view of everything aggregated so far.
// It is safe to call before Complete(): FinishReason will be the zero value
// and Usage will be whatever the provider has reported to date.
func (s *AggregationState) Snapshot() types.LLMResponse {
	return types.LLMResponse{
		ID:           s.responseID,
		Model:        s.model,
		Blocks:       append([]types.ContentBlock(nil), s.blocks...),
		Usage:        s.usage,
		FinishReason: s.finishReason,
	}
}
