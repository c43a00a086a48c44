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
// Package runtimeconfig loads the engine's layered configuration:
// environment variables > config file > defaults, with keyring secrets
// filling provider credentials still empty after that.
package runtimeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service under which provider secrets are stored.
	ServiceName = "coderunner"
	// DefaultConfigFileName is the config file base name (coderunner.yaml).
	DefaultConfigFileName = "coderunner"
	envPrefix              = "CODERUNNER"
)

// Config holds the settings C1 through C6 consume. Priority, highest
// to lowest: environment variables, config file, defaults; Load binds
// no CLI flags.
type Config struct {
	// DataDir is computed from CODERUNNER_DATA_DIR or ~/.coderunner and
	// is not itself loaded from the config file.
	DataDir string `mapstructure:"-"`

	Workspace WorkspaceConfig `mapstructure:"workspace"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WorkspaceConfig holds filesystem scoping for the current session.
type WorkspaceConfig struct {
	Root        string `mapstructure:"root"`
	SandboxMode string `mapstructure:"sandbox_mode"` // read-only, workspace-write, full-access
}

// LLMConfig holds provider selection and per-provider credentials.
type LLMConfig struct {
	Provider        string `mapstructure:"provider"` // anthropic, bedrock, ollama, openai
	FallbackProvider string `mapstructure:"fallback_provider"`
	FallbackModel    string `mapstructure:"fallback_model"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"` // CLI/env/keyring only
	AnthropicModel  string `mapstructure:"anthropic_model"`

	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"`
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`
	BedrockProfile         string `mapstructure:"bedrock_profile"`
	BedrockModelID         string `mapstructure:"bedrock_model_id"`

	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	OllamaModel    string `mapstructure:"ollama_model"`

	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`

	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

// RetrievalConfig holds indexing/search worker tuning.
type RetrievalConfig struct {
	WorkerCount     int    `mapstructure:"worker_count"`
	DBPath          string `mapstructure:"db_path"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
	MaxChunkTokens  int    `mapstructure:"max_chunk_tokens"`
	WatchEnabled    bool   `mapstructure:"watch_enabled"`
}

// ToolsConfig holds builtin-tool permission defaults.
type ToolsConfig struct {
	RequireApproval bool     `mapstructure:"require_approval"`
	YOLO            bool     `mapstructure:"yolo"`
	AllowedTools    []string `mapstructure:"allowed_tools"`
	DisabledTools   []string `mapstructure:"disabled_tools"`
	DefaultAction   string   `mapstructure:"default_action"` // allow, deny
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
}

// LoopConfig holds iterative-loop-driver defaults.
type LoopConfig struct {
	PlanModeDefault   bool `mapstructure:"plan_mode_default"`
	MaxTurns          int  `mapstructure:"max_turns"`
	MaxToolExecutions int  `mapstructure:"max_tool_executions"`
}

// LoggingConfig holds structured-log output settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`
}

// Load reads configuration from the given file (or standard search
// paths when empty), environment variables, and defaults, then applies
// keyring-backed secrets for anything still unset.
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(DataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/coderunner/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, m := range secretMappings() {
		_ = viper.BindEnv("llm." + m.keyringKey)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = DataDir()

	_ = loadSecretsFromKeyring(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("workspace.root", ".")
	viper.SetDefault("workspace.sandbox_mode", "workspace-write")

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.bedrock_region", "us-west-2")
	viper.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	viper.SetDefault("llm.ollama_endpoint", "http://localhost:11434")
	viper.SetDefault("llm.ollama_model", "llama3.1:8b")
	viper.SetDefault("llm.openai_model", "gpt-4.1")
	viper.SetDefault("llm.temperature", 1.0)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout_seconds", 60)
	viper.SetDefault("llm.idle_timeout_seconds", 30)

	defaultDBPath := filepath.Join(DataDir(), "index.db")
	viper.SetDefault("retrieval.worker_count", 4)
	viper.SetDefault("retrieval.db_path", defaultDBPath)
	viper.SetDefault("retrieval.max_chunk_tokens", 800)
	viper.SetDefault("retrieval.watch_enabled", true)

	viper.SetDefault("tools.require_approval", true)
	viper.SetDefault("tools.yolo", false)
	viper.SetDefault("tools.default_action", "deny")
	viper.SetDefault("tools.timeout_seconds", 120)

	viper.SetDefault("loop.plan_mode_default", false)
	viper.SetDefault("loop.max_turns", 0)
	viper.SetDefault("loop.max_tool_executions", 0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	if os.Getenv("CODERUNNER_YOLO") == "true" || os.Getenv("CODERUNNER_YOLO") == "1" {
		viper.Set("tools.yolo", true)
	}
}

// DataDir returns the engine's data directory, honoring
// CODERUNNER_DATA_DIR before falling back to ~/.coderunner.
func DataDir() string {
	if dir := os.Getenv("CODERUNNER_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coderunner"
	}
	return filepath.Join(home, ".coderunner")
}

type secretMapping struct {
	keyringKey string
	setter     func(*Config, string)
	isSet      func(*Config) bool
}

func secretMappings() []secretMapping {
	return []secretMapping{
		{
			keyringKey: "anthropic_api_key",
			setter:     func(c *Config, v string) { c.LLM.AnthropicAPIKey = v },
			isSet:      func(c *Config) bool { return c.LLM.AnthropicAPIKey != "" },
		},
		{
			keyringKey: "bedrock_access_key_id",
			setter:     func(c *Config, v string) { c.LLM.BedrockAccessKeyID = v },
			isSet:      func(c *Config) bool { return c.LLM.BedrockAccessKeyID != "" },
		},
		{
			keyringKey: "bedrock_secret_access_key",
			setter:     func(c *Config, v string) { c.LLM.BedrockSecretAccessKey = v },
			isSet:      func(c *Config) bool { return c.LLM.BedrockSecretAccessKey != "" },
		},
		{
			keyringKey: "bedrock_session_token",
			setter:     func(c *Config, v string) { c.LLM.BedrockSessionToken = v },
			isSet:      func(c *Config) bool { return c.LLM.BedrockSessionToken != "" },
		},
		{
			keyringKey: "openai_api_key",
			setter:     func(c *Config, v string) { c.LLM.OpenAIAPIKey = v },
			isSet:      func(c *Config) bool { return c.LLM.OpenAIAPIKey != "" },
		},
	}
}

func loadSecretsFromKeyring(cfg *Config) error {
	for _, m := range secretMappings() {
		if m.isSet(cfg) {
			continue
		}
		if value, err := keyring.Get(ServiceName, m.keyringKey); err == nil && value != "" {
			m.setter(cfg, value)
		}
	}
	return nil
}

// SaveSecret persists a provider credential to the system keyring.
func SaveSecret(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecret removes a provider credential from the system keyring.
func DeleteSecret(key string) error {
	return keyring.Delete(ServiceName, key)
}

// Validate checks that the selected LLM provider has what it needs to
// construct a client.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic API key is required (set CODERUNNER_LLM_ANTHROPIC_API_KEY or save it to the keyring)")
		}
	case "bedrock":
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("bedrock region is required (set llm.bedrock_region or CODERUNNER_LLM_BEDROCK_REGION)")
		}
	case "ollama":
		if c.LLM.OllamaEndpoint == "" {
			return fmt.Errorf("ollama endpoint is required (set llm.ollama_endpoint)")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("openai API key is required (set CODERUNNER_LLM_OPENAI_API_KEY or save it to the keyring)")
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s (must be anthropic, bedrock, ollama, or openai)", c.LLM.Provider)
	}
	return nil
}
