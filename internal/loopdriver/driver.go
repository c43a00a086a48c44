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
package loopdriver

import (
	"context"
	"time"

	"github.com/coderunner/engine/internal/loop"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// StopReason enumerates why a loop run ended (spec.md §4.6 "Terminal
// result").
type StopReason string

const (
	Completed       StopReason = "completed"
	DurationElapsed StopReason = "duration_elapsed"
	Cancelled       StopReason = "cancelled"
	TaskAborted     StopReason = "task_aborted"
)

// Progress is emitted to an optional callback after every iteration.
type Progress struct {
	Iteration      int
	Succeeded      int
	Failed         int
	ElapsedSeconds float64
}

// ProgressFunc receives one Progress update per completed iteration.
type ProgressFunc func(Progress)

// IterationRecord is kept for each attempted iteration, for callers that
// want per-iteration detail beyond the aggregate LoopResult.
type IterationRecord struct {
	Iteration     int
	Succeeded     bool
	Summary       string
	CommitMessage string
	Err           error
}

// LoopResult is returned when Run exits (spec.md §4.6).
type LoopResult struct {
	Attempted      int
	Succeeded      int
	Failed         int
	StopReason     StopReason
	ElapsedSeconds float64
	Iterations     []IterationRecord
}

// Driver repeatedly invokes a loop.Engine turn procedure under a fixed
// iteration count or elapsed-time budget, continuing past individual
// iteration failures (spec.md §4.6 "Behavior: continue on error").
type Driver struct {
	Engine     *loop.Engine
	WorkingDir string

	// MaxIterations stops the run after this many attempts; 0 means no
	// iteration-count bound (duration must then be set).
	MaxIterations int
	// MaxDuration stops the run once this much wall-clock time has
	// elapsed; 0 means no duration bound.
	MaxDuration time.Duration

	// Cancelled is polled before each iteration; when it returns true the
	// run stops with Cancelled.
	Cancelled func() bool

	// CustomPrompt, if non-empty, replaces the default "Iteration {n}.
	// Continue..." line verbatim (with "{n}" substituted) for iterations
	// after the first. The original-query prefix and diff section are
	// always included regardless.
	CustomPrompt string

	Summarize     SummarizeFunc
	CommitMessage CommitMessageFunc
	OnProgress    ProgressFunc

	Defs         []llmtypes.ToolDefinition
	AllowedTools []string

	now func() time.Time
}

// Run drives session through repeated agent-loop invocations of
// originalQuery until a stop condition is reached (spec.md §4.6
// "Per-iteration protocol").
func (d *Driver) Run(ctx context.Context, session *loop.SessionState, originalQuery string) LoopResult {
	nowFn := d.now
	if nowFn == nil {
		nowFn = time.Now
	}
	start := nowFn()

	var result LoopResult
	lastCommit := currentCommit(ctx, d.WorkingDir)

	for iteration := 0; ; iteration++ {
		elapsed := nowFn().Sub(start)

		if d.Cancelled != nil && d.Cancelled() {
			result.StopReason = Cancelled
			break
		}
		if d.MaxIterations > 0 && iteration >= d.MaxIterations {
			result.StopReason = Completed
			break
		}
		if d.MaxDuration > 0 && elapsed >= d.MaxDuration {
			result.StopReason = DurationElapsed
			break
		}

		query := buildQuery(ctx, d.WorkingDir, originalQuery, iteration, lastCommit, d.CustomPrompt)
		session.AppendMessage(llmtypes.Message{
			Role:   llmtypes.RoleUser,
			Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: query}},
		})

		runResult := d.Engine.Run(ctx, session, d.Defs, d.AllowedTools)
		result.Attempted++

		changed := changedFileList(ctx, d.WorkingDir, lastCommit)
		lastCommit = currentCommit(ctx, d.WorkingDir)

		rec := IterationRecord{Iteration: iteration}
		if runResult.Reason == loop.StopModelSignal {
			rec.Succeeded = true
			result.Succeeded++
		} else {
			rec.Err = runResult.Err
			result.Failed++
		}
		rec.Summary = summarizeIteration(ctx, d.Summarize, iteration, changed)
		rec.CommitMessage = commitMessage(ctx, d.CommitMessage, iteration, changed)
		result.Iterations = append(result.Iterations, rec)

		if d.OnProgress != nil {
			d.OnProgress(Progress{
				Iteration:      iteration,
				Succeeded:      result.Succeeded,
				Failed:         result.Failed,
				ElapsedSeconds: nowFn().Sub(start).Seconds(),
			})
		}

		if ctx.Err() != nil {
			result.StopReason = TaskAborted
			break
		}
	}

	result.ElapsedSeconds = nowFn().Sub(start).Seconds()
	return result
}
