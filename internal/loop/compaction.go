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
	"context"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"

	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// Summarizer is the external compaction collaborator the loop calls into
// when context-window pressure is detected (spec.md §4.2 "Compaction
// interface").
type Summarizer interface {
	Summarize(ctx context.Context, messages []llmtypes.Message) (summary string, tokensUsed int, err error)
}

// compactionRiskThreshold is the engine's own heuristic: compaction is
// considered once estimated usage exceeds this fraction of the context
// window, matching the ContextUsageWarning threshold semantics of §6.
const compactionRiskThreshold = 0.85

const compactionMaxAttempts = 3

// estimateTokens sums a cheap, tiktoken-backed estimate over message text
// content, used both for the compaction heuristic and
// ContextUsageWarning's estimated_tokens field.
func estimateTokens(messages []llmtypes.Message) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Fall back to a 4-chars-per-token heuristic if the encoding table
		// can't be loaded (e.g. offline with no cached vocab file).
		total := 0
		for _, m := range messages {
			for _, b := range m.Blocks {
				if t, ok := b.(llmtypes.TextBlock); ok {
					total += len(t.Text) / 4
				}
			}
		}
		return total
	}
	total := 0
	for _, m := range messages {
		for _, b := range m.Blocks {
			if t, ok := b.(llmtypes.TextBlock); ok {
				total += len(enc.Encode(t.Text, nil, nil))
			}
		}
	}
	return total
}

// shouldCompact reports whether the session is at risk of exceeding its
// context window, either because C1 signaled it explicitly or because
// the engine's own heuristic crosses compactionRiskThreshold.
func shouldCompact(s *SessionState, explicitSignal bool) bool {
	if explicitSignal {
		return true
	}
	if s.ContextWindowTotal <= 0 {
		return false
	}
	used := estimateTokens(s.Snapshot().Messages)
	return float64(used) >= compactionRiskThreshold*float64(s.ContextWindowTotal)
}

// Compact runs the compaction interface's event sequence around a
// Summarizer call, never dropping the most recent turn boundary (spec.md
// §4.2 "The engine never loses the most recent turn boundary when
// compacting").
func (e *Engine) Compact(ctx context.Context, s *SessionState, summarizer Summarizer, hookAllows func() (bool, string)) error {
	if allow, reason := hookAllows(); !allow {
		e.bus.Publish(Event{Kind: EventCompactionSkippedByHook, HookName: "pre_compaction", CompactionReason: reason})
		return nil
	}

	e.bus.Publish(Event{Kind: EventCompactionStarted})
	s.mu.Lock()
	s.Compacting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.Compacting = false
		s.mu.Unlock()
	}()

	snap := s.Snapshot()
	if len(snap.Messages) < 2 {
		return nil
	}
	// Keep the most recent turn boundary: never summarize the final
	// message (and its immediate predecessor, the turn's user input).
	keepFrom := len(snap.Messages) - 2
	toCompact := snap.Messages[:keepFrom]
	kept := snap.Messages[keepFrom:]

	var lastErr error
	for attempt := 1; attempt <= compactionMaxAttempts; attempt++ {
		summary, tokensUsed, err := summarizer.Summarize(ctx, toCompact)
		if err == nil {
			s.mu.Lock()
			s.Messages = append([]llmtypes.Message{{
				Role:   llmtypes.RoleSystem,
				Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: summary}},
			}}, kept...)
			s.mu.Unlock()
			e.bus.Publish(Event{Kind: EventCompactionCompleted, RemovedMessages: len(toCompact), SummaryTokens: tokensUsed})
			return nil
		}
		lastErr = err
		if attempt < compactionMaxAttempts {
			delayMS := 500 * attempt
			e.bus.Publish(Event{Kind: EventCompactionRetry, CompactionAttempt: attempt, CompactionMaxAttempts: compactionMaxAttempts, CompactionDelayMS: delayMS, CompactionReason: err.Error()})
			select {
			case <-time.After(time.Duration(delayMS) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	e.bus.Publish(Event{Kind: EventCompactionFailed, CompactionAttempt: compactionMaxAttempts, CompactionReason: lastErr.Error()})
	return fmt.Errorf("compaction failed after %d attempts: %w", compactionMaxAttempts, lastErr)
}
