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

// Package bedrock adapts AWS Bedrock's Claude-on-Bedrock models to the
// engine's provider-agnostic contract. It rides the same Anthropic SDK as
// pkg/llm/anthropic, just pointed at Bedrock's signing transport, so the
// message/tool/event translation logic is shared rather than duplicated.
package bedrock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	bedrockoption "github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/coderunner/engine/pkg/llm"
	"github.com/coderunner/engine/pkg/llm/aggregation"
	anthropicprovider "github.com/coderunner/engine/pkg/llm/anthropic"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

const (
	DefaultBedrockModelID     = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultBedrockRegion      = "us-east-1"
	DefaultBedrockMaxTokens   = 4096
	DefaultBedrockTemperature = 1.0
	DefaultIdleTimeout        = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	ModelID         string
	MaxTokens       int
	Temperature     float64
	IdleTimeout     time.Duration
}

func (c Config) resolved() Config {
	if c.ModelID == "" {
		c.ModelID = firstNonEmpty(os.Getenv("AWS_BEDROCK_MODEL_ID"), os.Getenv("CODERUNNER_BEDROCK_MODEL_ID"), DefaultBedrockModelID)
	}
	if c.Region == "" {
		c.Region = firstNonEmpty(os.Getenv("AWS_DEFAULT_REGION"), os.Getenv("AWS_REGION"), DefaultBedrockRegion)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultBedrockMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultBedrockTemperature
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Client implements llmtypes.StreamingLLMProvider against Bedrock-hosted
// Anthropic models.
type Client struct {
	cfg         Config
	sdk         anthropic.Client
	rateLimiter *llm.RateLimiter
}

// NewClient resolves AWS credentials (explicit keys, then a named profile,
// then the default provider chain) and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.resolved()

	var awsCfg aws.Config
	var err error
	ctx := context.Background()
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
		)
	case cfg.Profile != "":
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region), awsconfig.WithSharedConfigProfile(cfg.Profile))
	default:
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for bedrock: %w", err)
	}

	return &Client{
		cfg:         cfg,
		sdk:         anthropic.NewClient(bedrockoption.WithConfig(awsCfg)),
		rateLimiter: llm.NewRateLimiter(llm.DefaultRateLimiterConfig()),
	}, nil
}

func (c *Client) Name() string  { return "bedrock" }
func (c *Client) Model() string { return c.cfg.ModelID }

func (c *Client) asAnthropicConfig() anthropicprovider.Config {
	return anthropicprovider.Config{Model: c.cfg.ModelID, MaxTokens: c.cfg.MaxTokens, Temperature: c.cfg.Temperature}
}

// Chat performs a single non-streaming request.
func (c *Client) Chat(ctx context.Context, req llmtypes.LLMRequest) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := anthropicprovider.BuildMessageParams(c.asAnthropicConfig(), req)
	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, anthropicprovider.ClassifyAndWrap(err)
	}
	return anthropicprovider.FromMessage(msg), nil
}

// ChatStream performs a streaming request, translating Bedrock's Anthropic
// event stream the same way the direct Anthropic client does.
func (c *Client) ChatStream(ctx context.Context, req llmtypes.LLMRequest, sink func(llmtypes.StreamEvent)) (*llmtypes.LLMResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := anthropicprovider.BuildMessageParams(c.asAnthropicConfig(), req)
	stream := c.sdk.Messages.NewStreaming(ctx, params)

	agg := aggregation.NewAggregationState()
	idleTimer := time.NewTimer(c.cfg.IdleTimeout)
	defer idleTimer.Stop()

	events := make(chan anthropic.MessageStreamEventUnion)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for stream.Next() {
			events <- stream.Current()
		}
		errs <- stream.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-idleTimer.C:
			return nil, llm.ErrStreamIdleTimeout
		case raw, ok := <-events:
			if !ok {
				if err := <-errs; err != nil {
					return nil, anthropicprovider.ClassifyAndWrap(err)
				}
				resp := agg.Snapshot()
				return &resp, nil
			}
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(c.cfg.IdleTimeout)

			for _, ev := range anthropicprovider.TranslateEvent(raw) {
				if err := agg.Apply(ev); err != nil {
					return nil, err
				}
				sink(ev)
			}
		}
	}
}
