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
	"fmt"
	"os"
	"time"

	"github.com/coderunner/engine/pkg/llm/anthropic"
	"github.com/coderunner/engine/pkg/llm/bedrock"
	"github.com/coderunner/engine/pkg/llm/ollama"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// ProviderFactory creates LLM providers dynamically based on configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	DefaultProvider string
	DefaultModel    string

	AnthropicAPIKey string
	AnthropicModel  string

	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockProfile         string
	BedrockModelID         string

	OllamaEndpoint string
	OllamaModel    string

	FallbackProvider string
	FallbackModel    string

	MaxTokens   int
	Temperature float64
	Timeout     int // seconds
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 1.0
	}
	if config.Timeout == 0 {
		config.Timeout = 60
	}
	return &ProviderFactory{config: config}
}

// CreateProvider creates a streaming LLM provider for the given provider
// name and model, falling back to the factory's configured defaults for
// either argument left empty.
func (f *ProviderFactory) CreateProvider(provider, model string) (llmtypes.StreamingLLMProvider, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}
	if model == "" {
		model = f.config.DefaultModel
	}

	switch provider {
	case "anthropic":
		return f.createAnthropicProvider(model)
	case "bedrock":
		return f.createBedrockProvider(model)
	case "ollama":
		return f.createOllamaProvider(model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (f *ProviderFactory) createAnthropicProvider(model string) (llmtypes.StreamingLLMProvider, error) {
	apiKey := f.config.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured (set llm.anthropic_api_key or ANTHROPIC_API_KEY)")
	}

	if model == "" {
		model = f.config.AnthropicModel
	}
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	return anthropic.NewClient(anthropic.Config{
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   f.config.MaxTokens,
		Temperature: f.config.Temperature,
	}), nil
}

func (f *ProviderFactory) createBedrockProvider(model string) (llmtypes.StreamingLLMProvider, error) {
	if model == "" {
		model = f.config.BedrockModelID
	}
	if model == "" {
		model = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	}

	region := f.config.BedrockRegion
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return bedrock.NewClient(bedrock.Config{
		Region:          region,
		AccessKeyID:     f.config.BedrockAccessKeyID,
		SecretAccessKey: f.config.BedrockSecretAccessKey,
		SessionToken:    f.config.BedrockSessionToken,
		Profile:         f.config.BedrockProfile,
		ModelID:         model,
		MaxTokens:       f.config.MaxTokens,
		Temperature:     f.config.Temperature,
	})
}

func (f *ProviderFactory) createOllamaProvider(model string) (llmtypes.StreamingLLMProvider, error) {
	endpoint := f.config.OllamaEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	if model == "" {
		model = f.config.OllamaModel
	}
	if model == "" {
		model = "llama3.2"
	}

	return ollama.NewClient(ollama.Config{
		Endpoint:    endpoint,
		Model:       model,
		MaxTokens:   f.config.MaxTokens,
		Temperature: f.config.Temperature,
		Timeout:     time.Duration(f.config.Timeout) * time.Second,
	}), nil
}

// IsProviderAvailable checks if a provider is available (credentials/config
// present) without constructing a long-lived client.
func (f *ProviderFactory) IsProviderAvailable(provider string) bool {
	_, err := f.CreateProvider(provider, "")
	return err == nil
}

// RetryConfigFor builds the retry controller configuration for a request
// against provider/model, wiring in the factory-level fallback if one is
// configured and distinct from the primary.
func (f *ProviderFactory) RetryConfigFor(provider string) FallbackPlan {
	if f.config.FallbackProvider == "" || f.config.FallbackProvider == provider {
		return FallbackPlan{}
	}
	return FallbackPlan{Provider: f.config.FallbackProvider, Model: f.config.FallbackModel}
}

// FallbackPlan names the provider/model C1's retry controller should switch
// to on overload/quota escalation, if any.
type FallbackPlan struct {
	Provider string
	Model    string
}
