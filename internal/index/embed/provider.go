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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// OpenAIProvider calls an OpenAI-embeddings-compatible HTTP endpoint
// (OpenAI itself, or any local/hosted server mirroring its wire format),
// matching the net/http style pkg/llm/openai already uses for its own
// non-streaming requests — no embeddings SDK exists in the pack, so this
// is a deliberately small hand-rolled client rather than a library
// dependency (recorded in DESIGN.md).
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewOpenAIProvider constructs a provider against baseURL (default
// "https://api.openai.com/v1" when empty).
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{BaseURL: baseURL, APIKey: apiKey, Model: model, client: &http.Client{Timeout: 30 * time.Second}}
}

// ArtifactID identifies the embedding model for cache invalidation.
func (p *OpenAIProvider) ArtifactID() string { return "openai:" + p.Model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed calls the /embeddings endpoint for a batch of texts.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, raw)
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

// DeterministicTestProvider is an in-process test double: it derives a
// fixed-width vector from the SHA-256 of each input text, so identical
// text always yields an identical embedding without any network call.
// Used by tests and by offline/dev runs with no embedding credentials.
type DeterministicTestProvider struct {
	Dims int
}

// NewDeterministicTestProvider returns a test double embedding into dims
// dimensions (default 16).
func NewDeterministicTestProvider(dims int) *DeterministicTestProvider {
	if dims <= 0 {
		dims = 16
	}
	return &DeterministicTestProvider{Dims: dims}
}

func (p *DeterministicTestProvider) ArtifactID() string { return "test-double:v1" }

func (p *DeterministicTestProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, p.Dims)
	}
	return out, nil
}

func deterministicVector(text string, dims int) []float32 {
	h := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	var normSq float64
	for i := 0; i < dims; i++ {
		b := h[i%len(h):]
		v := float32(binary.LittleEndian.Uint32(padTo4(b))) / float32(math.MaxUint32)
		vec[i] = v
		normSq += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(normSq))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func padTo4(b []byte) []byte {
	if len(b) >= 4 {
		return b[:4]
	}
	out := make([]byte, 4)
	copy(out, b)
	return out
}
