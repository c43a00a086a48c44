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

// Package wiring is the composition root shared by cmd/coderunner and
// cmd/coderunner-loop: it loads runtimeconfig, builds the LLM provider,
// opens C4's index, and assembles C3's registry/executor into the pieces
// C2's engine needs.
package wiring

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coderunner/engine/internal/index"
	"github.com/coderunner/engine/internal/loop"
	"github.com/coderunner/engine/internal/obslog"
	"github.com/coderunner/engine/internal/runtimeconfig"
	"github.com/coderunner/engine/internal/tools"
	"github.com/coderunner/engine/pkg/llm/factory"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// App bundles everything a cmd entry point drives the engine through.
type App struct {
	Config  *runtimeconfig.Config
	Engine  *loop.Engine
	Session *loop.SessionState
	Index   *index.Index
	Defs    []llmtypes.ToolDefinition
}

// Build loads configuration, wires logging, and assembles the engine.
// sessionID/branch/workspace override config defaults when non-empty.
func Build(cfgFile, workspace, branch, sessionID string) (*App, error) {
	cfg, err := runtimeconfig.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg.Logging)

	if workspace == "" {
		workspace = cfg.Workspace.Root
	}
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		workspace = wd
	}
	if branch == "" {
		branch = "main"
	}

	idx, err := index.Open(cfg.Retrieval, cfg.LLM.OpenAIAPIKey, workspace, branch)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	pf := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider:        cfg.LLM.Provider,
		AnthropicAPIKey:        cfg.LLM.AnthropicAPIKey,
		AnthropicModel:         cfg.LLM.AnthropicModel,
		BedrockRegion:          cfg.LLM.BedrockRegion,
		BedrockAccessKeyID:     cfg.LLM.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
		BedrockSessionToken:    cfg.LLM.BedrockSessionToken,
		BedrockProfile:         cfg.LLM.BedrockProfile,
		BedrockModelID:         cfg.LLM.BedrockModelID,
		OllamaEndpoint:         cfg.LLM.OllamaEndpoint,
		OllamaModel:            cfg.LLM.OllamaModel,
		FallbackProvider:       cfg.LLM.FallbackProvider,
		FallbackModel:          cfg.LLM.FallbackModel,
		MaxTokens:              cfg.LLM.MaxTokens,
		Temperature:            cfg.LLM.Temperature,
		Timeout:                cfg.LLM.TimeoutSeconds,
	})
	provider, err := pf.CreateProvider(cfg.LLM.Provider, "")
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	reg := tools.NewRegistry()
	tools.RegisterBuiltins(reg)
	evaluator := tools.NewEvaluator(defaultRules(cfg.Tools))
	executor := tools.NewExecutor(reg, evaluator)

	engine := loop.NewEngine(provider, executor)
	engine.MaxTurns = cfg.Loop.MaxTurns
	engine.Index = idx

	if sessionID == "" {
		sessionID = newSessionID()
	}
	session := loop.NewSessionState(sessionID, workspace, provider.Name(), provider.Model())
	session.SetPlanMode(cfg.Loop.PlanModeDefault, "")

	defs := toolDefinitions(reg)

	return &App{Config: cfg, Engine: engine, Session: session, Index: idx, Defs: defs}, nil
}

// toolDefinitions adapts C3's Tool catalog into the provider-agnostic
// request shape loop.Engine.Run expects (spec.md §4.2 "tool definitions
// array").
func toolDefinitions(reg *tools.Registry) []llmtypes.ToolDefinition {
	all := reg.All()
	defs := make([]llmtypes.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, llmtypes.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return defs
}

// defaultRules seeds the permission evaluator from config: YOLO mode
// allows everything, otherwise allowed tools become User-source Allow rules,
// disabled tools become Policy-source Deny rules, and everything else falls
// through to each tool's own check_permission.
func defaultRules(cfg runtimeconfig.ToolsConfig) []tools.Rule {
	if cfg.YOLO {
		return []tools.Rule{{Source: tools.SourceSession, ToolPattern: "*", Action: tools.ActionAllow}}
	}
	var rules []tools.Rule
	for _, name := range cfg.AllowedTools {
		rules = append(rules, tools.Rule{Source: tools.SourceUser, ToolPattern: name, Action: tools.ActionAllow})
	}
	for _, name := range cfg.DisabledTools {
		rules = append(rules, tools.Rule{Source: tools.SourcePolicy, ToolPattern: name, Action: tools.ActionDeny})
	}
	return rules
}

func configureLogging(cfg runtimeconfig.LoggingConfig) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "text" {
		zcfg.Encoding = "console"
	}
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
	}
	logger, err := zcfg.Build()
	if err != nil {
		return
	}
	obslog.SetLogger(logger)
}

func newSessionID() string {
	return uuid.NewString()
}
