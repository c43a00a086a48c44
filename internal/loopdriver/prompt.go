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

// Package loopdriver repeatedly invokes the agent loop (the engine in
// package loop) under a fixed iteration count or elapsed-time budget,
// continuing past individual iteration failures (spec.md §4.6).
package loopdriver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const defaultLoopPromptLine = "Iteration %d. Continue based on the current repository state."

// buildQuery constructs the query submitted for one iteration. Iteration
// 0 is the original query verbatim; later iterations wrap it with a
// templated loop prompt carrying git-diff context (spec.md §4.6 "Build
// the iteration's query").
func buildQuery(ctx context.Context, workdir, original string, iteration int, lastCommit string, customPrompt string) string {
	if iteration == 0 {
		return original
	}

	loopLine := fmt.Sprintf(defaultLoopPromptLine, iteration)
	if customPrompt != "" {
		loopLine = strings.ReplaceAll(customPrompt, "{n}", fmt.Sprintf("%d", iteration))
	}

	changed := changedFilesSince(ctx, workdir, lastCommit)

	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\n---\n")
	b.WriteString(loopLine)
	b.WriteString("\nRecent changes:\n")
	b.WriteString(changed)
	return b.String()
}

// changedFilesSince runs `git diff --name-only <lastCommit> HEAD` against
// the system git binary (matching the bash tool's own os/exec idiom: no
// Go git library is pulled in for a single read-only invocation). Returns
// the literal placeholder when no prior commit was recorded.
func changedFilesSince(ctx context.Context, workdir, lastCommit string) string {
	if lastCommit == "" {
		return "(no prior commit recorded)"
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", lastCommit, "HEAD")
	cmd.Dir = workdir
	out, err := cmd.Output()
	if err != nil {
		return "(no prior commit recorded)"
	}
	return strings.TrimSpace(string(out))
}

// currentCommit returns the workdir's HEAD commit hash, or "" if the
// directory is not a git repository or has no commits yet.
func currentCommit(ctx context.Context, workdir string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = workdir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// changedFileList returns the files changed since lastCommit as a slice,
// used by summarization (spec.md §4.6 "Summarization").
func changedFileList(ctx context.Context, workdir, lastCommit string) []string {
	s := changedFilesSince(ctx, workdir, lastCommit)
	if s == "" || s == "(no prior commit recorded)" {
		return nil
	}
	return strings.Split(s, "\n")
}
