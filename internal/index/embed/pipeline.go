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

// Package embed implements C4's content-hash-cached embedding pipeline
// (spec.md §4.4 "Embedding pipeline").
package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/coderunner/engine/internal/index/model"
	"github.com/coderunner/engine/internal/index/chunk"
	"github.com/coderunner/engine/internal/index/store"
)

// Provider is the out-of-scope embedding backend (spec.md §1 "Deliberately
// OUT of scope ... the specific LLM providers' wire formats", §6
// "Embedding provider interface"). ArtifactID identifies the model so
// cache rows can be invalidated on a model change.
type Provider interface {
	ArtifactID() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline computes embeddings for a batch of chunks, consulting the
// cache first and only calling the provider for misses.
type Pipeline struct {
	Store    *store.Store
	Provider Provider
}

// New constructs a Pipeline.
func New(st *store.Store, p Provider) *Pipeline {
	return &Pipeline{Store: st, Provider: p}
}

// Run computes (or fetches from cache) embeddings for every chunk,
// returning the same chunks with Embedding and ContentHash populated.
// Distinct filepaths with the same content_hash need only one embedding
// computation (spec.md §4.4 "Deduplication").
func (p *Pipeline) Run(ctx context.Context, workspace string, chunks []model.CodeChunk) ([]model.CodeChunk, error) {
	for i := range chunks {
		chunks[i].ContentHash = chunk.ContentHash(chunks[i].Filepath, chunks[i].Content)
	}

	keys := make([]struct{ Filepath, ContentHash string }, len(chunks))
	for i, c := range chunks {
		keys[i] = struct{ Filepath, ContentHash string }{c.Filepath, c.ContentHash}
	}

	hits, _, err := p.Store.BulkGetEmbeddings(ctx, p.Provider.ArtifactID(), keys)
	if err != nil {
		return nil, fmt.Errorf("bulk embedding lookup: %w", err)
	}

	// Dedup misses by content_hash: compute once per unique hash even if
	// multiple filepaths (or multiple chunks of one file) share it.
	uniqueMissTexts := make(map[string]string)
	for _, c := range chunks {
		k := c.Filepath + "\x00" + c.ContentHash
		if _, ok := hits[k]; ok {
			continue
		}
		if _, ok := uniqueMissTexts[c.ContentHash]; !ok {
			uniqueMissTexts[c.ContentHash] = chunk.WrapContentForEmbedding(c.Filepath, c.Content)
		}
	}

	hashOrder := make([]string, 0, len(uniqueMissTexts))
	texts := make([]string, 0, len(uniqueMissTexts))
	for h, t := range uniqueMissTexts {
		hashOrder = append(hashOrder, h)
		texts = append(texts, t)
	}

	var computed map[string][]float32
	if len(texts) > 0 {
		vecs, err := p.Provider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vecs), len(texts))
		}
		computed = make(map[string][]float32, len(hashOrder))
		for i, h := range hashOrder {
			computed[h] = vecs[i]
		}
	}

	now := time.Now()
	var toPersist []model.EmbeddingCacheRow
	for i := range chunks {
		k := chunks[i].Filepath + "\x00" + chunks[i].ContentHash
		if row, ok := hits[k]; ok {
			chunks[i].Embedding = row.Embedding
			continue
		}
		vec, ok := computed[chunks[i].ContentHash]
		if !ok {
			continue // embedding failed for this hash; leave unembedded, caller marks chunk failed
		}
		chunks[i].Embedding = vec
		toPersist = append(toPersist, model.EmbeddingCacheRow{
			Filepath: chunks[i].Filepath, ContentHash: chunks[i].ContentHash,
			ArtifactID: p.Provider.ArtifactID(), Embedding: vec, CreatedAt: now,
		})
	}
	if err := p.Store.PutEmbeddings(ctx, toPersist); err != nil {
		return nil, fmt.Errorf("persist embeddings: %w", err)
	}
	return chunks, nil
}
