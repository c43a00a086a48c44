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
package factory

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// ModelInfo describes one selectable model: its provider, pricing, and
// capability set. Unlike the teacher's wire-level representation, this is a
// plain domain struct with no generated-code dependency.
type ModelInfo struct {
	ID              string
	Name            string
	Provider        string
	Capabilities    []string
	ContextWindow   int
	CostPer1MInput  float64
	CostPer1MOutput float64
	Available       bool
}

// Clone returns a deep copy so callers can freely mutate Available without
// corrupting the registry's canonical list.
func (m ModelInfo) Clone() ModelInfo {
	c := m
	c.Capabilities = append([]string(nil), m.Capabilities...)
	return c
}

// ModelRegistry holds information about all supported models across
// providers.
type ModelRegistry struct {
	models map[string][]ModelInfo
}

// NewModelRegistry creates a new model registry with all supported models.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: map[string][]ModelInfo{
			"anthropic": {
				{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", Provider: "anthropic", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 3.0, CostPer1MOutput: 15.0},
				{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "anthropic", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 3.0, CostPer1MOutput: 15.0},
				{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "anthropic", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 15.0, CostPer1MOutput: 75.0},
			},
			"bedrock": {
				{ID: "us.anthropic.claude-sonnet-4-5-20250929-v1:0", Name: "Claude Sonnet 4.5 (Bedrock)", Provider: "bedrock", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 3.0, CostPer1MOutput: 15.0},
				{ID: "us.anthropic.claude-opus-4-5-20251101-v1:0", Name: "Claude Opus 4.5 (Bedrock)", Provider: "bedrock", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 15.0, CostPer1MOutput: 75.0},
				{ID: "us.anthropic.claude-haiku-4-5-20251001-v1:0", Name: "Claude Haiku 4.5 (Bedrock)", Provider: "bedrock", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 200000, CostPer1MInput: 0.8, CostPer1MOutput: 4.0},
			},
			"ollama": {
				{ID: "llama3.1", Name: "Llama 3.1 (Ollama)", Provider: "ollama", Capabilities: []string{"text", "tool-use"}, ContextWindow: 128000},
				{ID: "llama3.2", Name: "Llama 3.2 (Ollama)", Provider: "ollama", Capabilities: []string{"text", "tool-use"}, ContextWindow: 128000},
				{ID: "qwen2.5", Name: "Qwen 2.5 (Ollama)", Provider: "ollama", Capabilities: []string{"text", "tool-use"}, ContextWindow: 128000},
			},
			"openai": {
				{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 128000, CostPer1MInput: 2.5, CostPer1MOutput: 10.0},
				{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "openai", Capabilities: []string{"text", "vision", "tool-use"}, ContextWindow: 128000, CostPer1MInput: 10.0, CostPer1MOutput: 30.0},
				{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", Capabilities: []string{"text", "tool-use"}, ContextWindow: 128000, CostPer1MInput: 0.15, CostPer1MOutput: 0.6},
			},
		},
	}
}

// GetModelsForProvider returns all models for a specific provider.
func (r *ModelRegistry) GetModelsForProvider(provider string) []ModelInfo {
	models := r.models[provider]
	if models == nil {
		return nil
	}
	result := make([]ModelInfo, len(models))
	for i, m := range models {
		result[i] = m.Clone()
	}
	return result
}

// GetAllModels returns all models from all providers.
func (r *ModelRegistry) GetAllModels() []ModelInfo {
	var all []ModelInfo
	for _, models := range r.models {
		for _, m := range models {
			all = append(all, m.Clone())
		}
	}
	return all
}

// GetAvailableModels returns every known model, each annotated with whether
// its provider is currently configured in factory.
func (r *ModelRegistry) GetAvailableModels(factory *ProviderFactory) []ModelInfo {
	var all []ModelInfo
	for provider, models := range r.models {
		available := factory.IsProviderAvailable(provider)
		for _, m := range models {
			cloned := m.Clone()
			cloned.Available = available
			all = append(all, cloned)
		}
	}
	return all
}

// ollamaTagsResponse represents Ollama's /api/tags response.
type ollamaTagsResponse struct {
	Models []ollamaModelEntry `json:"models"`
}

// ollamaModelEntry represents a single model from Ollama's /api/tags.
type ollamaModelEntry struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
}

// DiscoverOllamaModels queries the local Ollama instance's /api/tags
// endpoint and replaces the static Ollama entries with whatever is actually
// installed.
func (r *ModelRegistry) DiscoverOllamaModels(endpoint string) error {
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_BASE_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(endpoint + "/api/tags")
	if err != nil {
		return fmt.Errorf("failed to reach Ollama at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama /api/tags returned status %d", resp.StatusCode)
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("failed to decode Ollama /api/tags response: %w", err)
	}

	if len(tagsResp.Models) == 0 {
		return nil
	}

	discovered := make([]ModelInfo, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		discovered = append(discovered, ModelInfo{
			ID:            m.Name,
			Name:          formatOllamaDisplayName(m.Name),
			Provider:      "ollama",
			Capabilities:  []string{"text", "tool-use"},
			ContextWindow: 128000,
			Available:     true,
		})
	}

	r.models["ollama"] = discovered
	return nil
}

// formatOllamaDisplayName creates a human-readable name from an Ollama
// model tag, e.g. "qwen3-coder:30b" -> "Qwen3 coder 30B (Ollama)".
func formatOllamaDisplayName(modelID string) string {
	parts := strings.SplitN(modelID, ":", 2)
	name := parts[0]
	tag := ""
	if len(parts) > 1 {
		tag = strings.ToUpper(parts[1])
	}

	if len(name) > 0 {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	name = strings.ReplaceAll(name, "-", " ")

	if tag != "" && tag != "LATEST" {
		return fmt.Sprintf("%s %s (Ollama)", name, tag)
	}
	return fmt.Sprintf("%s (Ollama)", name)
}
