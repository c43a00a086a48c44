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
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SummarizeFunc is a caller-supplied LLM summarization callback. When nil,
// Driver falls back to groupByExtension (spec.md §4.6 "Summarization").
type SummarizeFunc func(ctx context.Context, iteration int, changedFiles []string) (string, error)

// CommitMessageFunc is a caller-supplied LLM commit-message callback.
// When nil, Driver falls back to standardCommitMessage.
type CommitMessageFunc func(ctx context.Context, iteration int, changedFiles []string) (string, error)

// summarizeIteration follows the dual-path rule: prefer the supplied LLM
// callback, otherwise group changed files by extension and report counts.
func summarizeIteration(ctx context.Context, fn SummarizeFunc, iteration int, changedFiles []string) string {
	if fn != nil {
		if s, err := fn(ctx, iteration, changedFiles); err == nil {
			return s
		}
	}
	return groupByExtension(changedFiles)
}

// groupByExtension is the fallback summary: counts of changed files per
// extension, sorted by extension for determinism.
func groupByExtension(changedFiles []string) string {
	if len(changedFiles) == 0 {
		return "no files changed"
	}
	counts := make(map[string]int)
	for _, f := range changedFiles {
		ext := filepath.Ext(f)
		if ext == "" {
			ext = "(no extension)"
		}
		counts[ext]++
	}
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	parts := make([]string, 0, len(exts))
	for _, ext := range exts {
		parts = append(parts, fmt.Sprintf("%d %s", counts[ext], ext))
	}
	return strings.Join(parts, ", ")
}

// commitMessage follows the same dual path: an LLM callback if supplied,
// otherwise a standard format carrying the iteration number, the first 5
// changed files, and an elided remainder count.
func commitMessage(ctx context.Context, fn CommitMessageFunc, iteration int, changedFiles []string) string {
	if fn != nil {
		if s, err := fn(ctx, iteration, changedFiles); err == nil {
			return s
		}
	}
	return standardCommitMessage(iteration, changedFiles)
}

func standardCommitMessage(iteration int, changedFiles []string) string {
	if len(changedFiles) == 0 {
		return fmt.Sprintf("iteration %d: no files changed", iteration)
	}
	shown := changedFiles
	elided := 0
	if len(shown) > 5 {
		elided = len(shown) - 5
		shown = shown[:5]
	}
	msg := fmt.Sprintf("iteration %d: %s", iteration, strings.Join(shown, ", "))
	if elided > 0 {
		msg += fmt.Sprintf(" (+%d more)", elided)
	}
	return msg
}
