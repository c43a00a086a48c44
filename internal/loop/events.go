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
package loop

import (
	"sync"

	"github.com/coderunner/engine/internal/obslog"
	"github.com/coderunner/engine/internal/pubsub"
	"go.uber.org/zap"
)

// EventKind tags the protocol-event payload published on the engine →
// UI channel (spec.md §6 "Protocol events surfaced to the UI").
type EventKind string

const (
	EventTurnStarted             EventKind = "turn_started"
	EventTurnCompleted           EventKind = "turn_completed"
	EventToolStart               EventKind = "tool_start"
	EventToolProgress            EventKind = "tool_progress"
	EventToolDone                EventKind = "tool_done"
	EventApprovalRequest         EventKind = "approval_request"
	EventCompactionStarted       EventKind = "compaction_started"
	EventCompactionRetry         EventKind = "compaction_retry"
	EventCompactionCompleted     EventKind = "compaction_completed"
	EventCompactionFailed        EventKind = "compaction_failed"
	EventCompactionSkippedByHook EventKind = "compaction_skipped_by_hook"
	EventContextUsageWarning     EventKind = "context_usage_warning"
)

// Progress is the optional progress payload on ToolProgress.
type Progress struct {
	Message        string
	Percentage     *float64
	BytesProcessed *int64
	TotalBytes     *int64
}

// Event is the tagged-union protocol event the loop publishes; only the
// field matching Kind is meaningful.
type Event struct {
	Kind EventKind

	TurnID     string
	TurnNumber int
	InputTokens, OutputTokens int

	ToolCallID string
	Progress   Progress

	CompactionAttempt, CompactionMaxAttempts int
	CompactionDelayMS                        int
	CompactionReason                         string
	RemovedMessages, SummaryTokens           int
	HookName                                 string

	EstimatedTokens, WarningThreshold int
	PercentLeft                       float64
}

// Bus is the engine → UI one-way channel (spec.md §9 "Cyclic UI ↔ engine
// updates ... replace ownership cycles with two one-way channels"),
// built on the teacher's generic pubsub.Event[T] envelope.
type Bus struct {
	mu   sync.Mutex
	subs []chan pubsub.Event[Event]
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new listener; the returned channel is buffered so
// a slow UI never blocks the loop goroutine for long (spec.md §5
// "Backpressure ... Tool result channels to the UI are bounded").
func (b *Bus) Subscribe() <-chan pubsub.Event[Event] {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan pubsub.Event[Event], 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish fans evt out to every subscriber and logs it, matching
// SPEC_FULL.md's ambient-logging rule ("the log is the durable trail, the
// pubsub event is the live signal to the UI"). A full subscriber channel
// drops the event rather than blocking the loop.
func (b *Bus) Publish(evt Event) {
	obslog.Debug("engine event", zap.String("kind", string(evt.Kind)), zap.String("turn_id", evt.TurnID))
	b.mu.Lock()
	defer b.mu.Unlock()
	wrapped := pubsub.NewCreatedEvent(evt)
	for _, ch := range b.subs {
		select {
		case ch <- wrapped:
		default:
		}
	}
}
