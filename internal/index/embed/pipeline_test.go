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
package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderunner/engine/internal/index/model"
	"github.com/coderunner/engine/internal/index/store"
)

// countingProvider records how many texts it was actually asked to
// embed, so tests can assert the cache suppressed redundant calls.
type countingProvider struct {
	artifactID string
	calls      int
	lastTexts  []string
}

func (p *countingProvider) ArtifactID() string { return p.artifactID }
func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.lastTexts = append([]string{}, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// TestCacheCorrectness covers spec.md §8 property 5: two distinct
// cache misses are embedded in one batch provider call, and a second Run
// against the same chunks hits the cache entirely rather than
// recomputing.
func TestCacheCorrectness(t *testing.T) {
	st := openTestStore(t)
	provider := &countingProvider{artifactID: "test:v1"}
	p := New(st, provider)

	chunks := []model.CodeChunk{
		{Filepath: "a.go", Content: "package a\n\nfunc A() {}\n"},
		{Filepath: "b.go", Content: "package b\n\nfunc B() {}\n"},
	}

	out, err := p.Run(context.Background(), "ws", chunks)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls, "first run should embed both distinct-content misses in a single batch call")
	assert.Len(t, out[0].Embedding, 1)
	assert.Len(t, out[1].Embedding, 1)

	provider.calls = 0
	out2, err := p.Run(context.Background(), "ws", chunks)
	require.NoError(t, err)
	assert.Equal(t, 0, provider.calls, "second run over unchanged content must hit the cache with zero provider calls")
	assert.Equal(t, out[0].Embedding, out2[0].Embedding)
}

// TestCacheIsolation covers spec.md §8 property 6: cache rows are keyed
// by artifact_id, so switching embedding providers (a model change)
// forces recomputation rather than silently reusing a stale vector.
func TestCacheIsolation(t *testing.T) {
	st := openTestStore(t)
	chunks := []model.CodeChunk{
		{Filepath: "a.go", Content: "package a\n\nfunc A() {}\n"},
	}

	p1 := New(st, &countingProvider{artifactID: "model:v1"})
	out1, err := p1.Run(context.Background(), "ws", append([]model.CodeChunk{}, chunks...))
	require.NoError(t, err)
	require.Len(t, out1[0].Embedding, 1)

	providerV2 := &countingProvider{artifactID: "model:v2"}
	p2 := New(st, providerV2)
	out2, err := p2.Run(context.Background(), "ws", append([]model.CodeChunk{}, chunks...))
	require.NoError(t, err)
	assert.Equal(t, 1, providerV2.calls, "a new artifact_id must miss the cache even for identical content")
	assert.Len(t, out2[0].Embedding, 1)
}
