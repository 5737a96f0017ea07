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

// Package factory creates chat providers from configuration.
package factory

import (
	"fmt"
	"os"
	"time"

	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/llm/anthropic"
	"github.com/teradata-labs/spool/pkg/llm/bedrock"
	"github.com/teradata-labs/spool/pkg/llm/ollama"
	llmtypes "github.com/teradata-labs/spool/pkg/llm/types"
)

// Config holds credentials and endpoints for every supported provider.
// Only the fields for the selected provider are consulted.
type Config struct {
	// Provider selects the backend: ollama, anthropic, or bedrock.
	// Default: ollama.
	Provider string

	// Model overrides the provider's default model.
	Model string

	// Ollama configuration.
	OllamaEndpoint string

	// Anthropic configuration.
	AnthropicAPIKey string

	// Bedrock configuration.
	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockProfile         string

	// Timeout applies to HTTP providers. Default: 150s.
	Timeout time.Duration

	// RateLimiter applies to hosted providers (Anthropic, Bedrock).
	RateLimiter llm.RateLimiterConfig
}

// NewProvider creates the chat provider named by cfg.Provider.
func NewProvider(cfg Config) (llmtypes.ChatProvider, error) {
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}

	switch cfg.Provider {
	case "ollama":
		return ollama.NewClient(ollama.Config{
			Endpoint: cfg.OllamaEndpoint,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
		}), nil

	case "anthropic":
		apiKey := cfg.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key (config or ANTHROPIC_API_KEY)")
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:            apiKey,
			Model:             cfg.Model,
			Timeout:           cfg.Timeout,
			RateLimiterConfig: cfg.RateLimiter,
		}), nil

	case "bedrock":
		return bedrock.NewClient(bedrock.Config{
			Region:            cfg.BedrockRegion,
			AccessKeyID:       cfg.BedrockAccessKeyID,
			SecretAccessKey:   cfg.BedrockSecretAccessKey,
			SessionToken:      cfg.BedrockSessionToken,
			Profile:           cfg.BedrockProfile,
			ModelID:           cfg.Model,
			RateLimiterConfig: cfg.RateLimiter,
		})

	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: ollama, anthropic, bedrock)", cfg.Provider)
	}
}
