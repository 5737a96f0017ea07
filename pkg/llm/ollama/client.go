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

// Package ollama implements the ChatProvider interface against a local
// Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	llmtypes "github.com/teradata-labs/spool/pkg/llm/types"
)

// Client talks to Ollama's /api/chat endpoint.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama client.
type Config struct {
	Endpoint string        // Default: http://localhost:11434
	Model    string        // Default: llama3.1
	Timeout  time.Duration // Default: 150s; the analysis layer aborts earlier
}

// NewClient creates a new Ollama client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "ollama"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Ollama and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llmtypes.Message, opts *llmtypes.Options) (*llmtypes.Response, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]ollamaMessage, 0, len(messages)),
		Stream:   false,
		Options:  buildOptions(opts),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama API call failed: %w", err)
	}

	return &llmtypes.Response{
		Content:    resp.Message.Content,
		Model:      resp.Model,
		StopReason: "stop",
		Usage: llmtypes.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
		},
		Metadata: map[string]interface{}{
			"total_duration": resp.TotalDuration,
			"eval_duration":  resp.EvalDuration,
		},
	}, nil
}

// IsAvailable reports whether the configured model is present on the
// server. Implements llmtypes.ModelManager.
func (c *Client) IsAvailable(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return true
		}
	}
	return false
}

// Pull downloads the configured model. Implements llmtypes.ModelManager.
// This blocks until the pull completes, which can take minutes for a cold
// model.
func (c *Client) Pull(ctx context.Context) error {
	body, err := json.Marshal(pullRequest{Name: c.model, Stream: false})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Pulls exceed the chat timeout; rely on ctx for cancellation.
	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama pull returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildOptions(opts *llmtypes.Options) map[string]interface{} {
	if opts == nil {
		return nil
	}
	options := make(map[string]interface{})
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

// callAPI makes the HTTP request to Ollama.
func (c *Client) callAPI(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

// Ollama API types

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration"`
	EvalDuration    int64         `json:"eval_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// Ensure Client implements the provider interfaces.
var _ llmtypes.ChatProvider = (*Client)(nil)
var _ llmtypes.ModelManager = (*Client)(nil)
