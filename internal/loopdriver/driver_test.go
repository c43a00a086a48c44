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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderunner/engine/internal/loop"
	"github.com/coderunner/engine/internal/tools"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// scriptedProvider returns one scripted outcome per ChatStream call, in
// order, looping on the final entry once exhausted.
type scriptedProvider struct {
	outcomes []func() (*llmtypes.LLMResponse, error)
	calls    int
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func (p *scriptedProvider) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	return p.next()()
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	return p.next()()
}

func (p *scriptedProvider) next() func() (*llmtypes.LLMResponse, error) {
	i := p.calls
	if i >= len(p.outcomes) {
		i = len(p.outcomes) - 1
	}
	p.calls++
	return p.outcomes[i]
}

func okResponse() (*llmtypes.LLMResponse, error) {
	return &llmtypes.LLMResponse{
		Blocks:       []llmtypes.ContentBlock{llmtypes.TextBlock{Text: "done"}},
		FinishReason: llmtypes.FinishStop,
	}, nil
}

func errResponse() (*llmtypes.LLMResponse, error) {
	return nil, errors.New("provider unavailable")
}

// TestScenarioS6IterativeContinueOnError covers the literal S6 scenario:
// across 3 iterations where the second fails, the driver still attempts
// all 3, reports 2 succeeded / 1 failed, and stops with Completed (the
// fixed iteration count was reached, not a hard abort).
func TestScenarioS6IterativeContinueOnError(t *testing.T) {
	provider := &scriptedProvider{outcomes: []func() (*llmtypes.LLMResponse, error){
		okResponse,
		errResponse,
		okResponse,
	}}
	engine := loop.NewEngine(provider, tools.NewExecutor(tools.NewRegistry(), tools.NewEvaluator(nil)))
	session := loop.NewSessionState("s1", t.TempDir(), "scripted", "scripted-model")

	d := &Driver{
		Engine:        engine,
		WorkingDir:    session.WorkingDir,
		MaxIterations: 3,
	}

	var progress []Progress
	d.OnProgress = func(p Progress) { progress = append(progress, p) }

	result := d.Run(context.Background(), session, "fix the failing tests")

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, Completed, result.StopReason)
	require.Len(t, progress, 3)
	assert.Greater(t, progress[1].Failed, progress[0].Failed, "the failed iteration must bump the failure counter")
	assert.Equal(t, progress[1].Succeeded, progress[0].Succeeded, "a failed iteration must not bump the succeeded counter")
}

func TestBuildQueryIterationZeroIsVerbatim(t *testing.T) {
	q := buildQuery(context.Background(), t.TempDir(), "original query", 0, "", "")
	assert.Equal(t, "original query", q)
}

func TestBuildQueryWrapsLaterIterations(t *testing.T) {
	q := buildQuery(context.Background(), t.TempDir(), "original query", 2, "", "")
	assert.Contains(t, q, "original query")
	assert.Contains(t, q, "Iteration 2. Continue based on the current repository state.")
	assert.Contains(t, q, "(no prior commit recorded)")
}

func TestBuildQueryHonorsCustomPrompt(t *testing.T) {
	q := buildQuery(context.Background(), t.TempDir(), "original query", 3, "", "custom step {n} prompt")
	assert.Contains(t, q, "custom step 3 prompt")
	assert.NotContains(t, q, "Continue based on the current repository state")
}

func TestStandardCommitMessageElidesRemainder(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "g.go"}
	msg := standardCommitMessage(1, files)
	assert.Contains(t, msg, "a.go")
	assert.Contains(t, msg, "e.go")
	assert.NotContains(t, msg, "f.go")
	assert.Contains(t, msg, "+2 more")
}

func TestGroupByExtensionCountsPerExtension(t *testing.T) {
	s := groupByExtension([]string{"a.go", "b.go", "c.md"})
	assert.Contains(t, s, "2 .go")
	assert.Contains(t, s, "1 .md")
}
