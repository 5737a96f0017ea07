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

// Package llm runs analysis prompts against a chat provider. The Client
// adds what raw providers lack: per-analysis-type system prompts, a hard
// call timeout, an in-memory result LRU, an optional durable cache, and a
// heuristic confidence score over the response text.
package llm

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	llmtypes "github.com/teradata-labs/spool/pkg/llm/types"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// AnalysisType selects the system prompt and labels cached results.
type AnalysisType string

const (
	AnalysisPatterns AnalysisType = "pattern_analysis"
	AnalysisInsights AnalysisType = "insight_generation"
	AnalysisOutcomes AnalysisType = "outcome_correlation"
	AnalysisGeneral  AnalysisType = "general"
)

const (
	// DefaultTimeout is the hard deadline for one analysis call.
	DefaultTimeout = 120 * time.Second

	// DefaultCacheSize bounds the in-memory result LRU.
	DefaultCacheSize = 500

	// DurableCacheTTL is how long durable cache entries stay valid.
	DurableCacheTTL = 30 * 24 * time.Hour

	// durableMinContentLen gates durable writes; shorter responses are
	// not worth a row.
	durableMinContentLen = 100
)

// AnalysisResult is a completed analysis.
type AnalysisResult struct {
	// Content is the model's response text.
	Content string

	// Model is the model that produced the response.
	Model string

	// Tokens is the total token count of the exchange.
	Tokens int

	// TotalDuration is the wall-clock time of the call.
	TotalDuration time.Duration

	// Confidence is a heuristic quality score in [0, 1].
	Confidence float64

	// Metadata carries provider and cache details.
	Metadata map[string]interface{}
}

// DurableCache persists analysis results across restarts. Implemented by
// the postgres analysis cache store.
type DurableCache interface {
	Put(ctx context.Context, entry *memory.AnalysisCacheEntry) error
	Get(ctx context.Context, contentHash string) (*memory.AnalysisCacheEntry, error)
}

// Client is the analysis front door over a single chat provider.
type Client struct {
	provider llmtypes.ChatProvider
	memCache *lru.Cache[string, *AnalysisResult]
	durable  DurableCache
	timeout  time.Duration
	logger   *zap.Logger
	tracer   observability.Tracer

	modelReady atomic.Bool
}

// Config configures an analysis client.
type Config struct {
	// Provider is required.
	Provider llmtypes.ChatProvider

	// DurableCache persists responses; nil disables durable caching.
	DurableCache DurableCache

	// CacheSize bounds the in-memory LRU. Default: 500.
	CacheSize int

	// Timeout is the hard per-call deadline. Default: 120s.
	Timeout time.Duration

	Logger *zap.Logger
	Tracer observability.Tracer
}

// NewClient creates an analysis client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm client requires a provider")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}

	cache, err := lru.New[string, *AnalysisResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}

	return &Client{
		provider: cfg.Provider,
		memCache: cache,
		durable:  cfg.DurableCache,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
	}, nil
}

// Provider exposes the underlying chat provider.
func (c *Client) Provider() llmtypes.ChatProvider { return c.provider }

// Analyze runs one analysis prompt. contextText, when non-empty, is
// appended to the user prompt. Hot repeats are served from the in-memory
// LRU; responses over 100 chars are also persisted to the durable cache.
func (c *Client) Analyze(ctx context.Context, prompt, contextText string, analysisType AnalysisType) (*AnalysisResult, error) {
	ctx, span := c.tracer.StartSpan(ctx, "llm.analyze")
	defer c.tracer.EndSpan(span)
	span.SetAttribute("analysis_type", string(analysisType))

	model := c.provider.Model()
	key := analysisCacheKey(prompt, model, analysisType)
	if cached, ok := c.memCache.Get(key); ok {
		span.SetAttribute("cache_hit", true)
		return cached, nil
	}

	if err := c.ensureModel(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	userContent := prompt
	if contextText != "" {
		userContent = prompt + "\n\nAdditional context:\n" + contextText
	}
	messages := []llmtypes.Message{
		{Role: "system", Content: systemPromptFor(analysisType)},
		{Role: "user", Content: userContent},
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Chat(callCtx, messages, defaultAnalysisOptions())
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			timeoutErr := memory.NewLLMTimeout(model, int(c.timeout.Seconds()))
			span.RecordError(timeoutErr)
			return nil, timeoutErr
		}
		provErr := memory.NewLLMProviderError("analysis call failed", err).
			WithDetail("model", model).
			WithDetail("analysis_type", string(analysisType))
		span.RecordError(provErr)
		return nil, provErr
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = GetTokenCounter().CountTokensMultiple(userContent, resp.Content)
	}

	result := &AnalysisResult{
		Content:       resp.Content,
		Model:         model,
		Tokens:        tokens,
		TotalDuration: time.Since(start),
		Confidence:    scoreConfidence(resp.Content),
		Metadata: map[string]interface{}{
			"provider":      c.provider.Name(),
			"analysis_type": string(analysisType),
			"stop_reason":   resp.StopReason,
		},
	}

	c.memCache.Add(key, result)
	c.persistResult(ctx, prompt, analysisType, result)
	return result, nil
}

// CachedAnalysis looks up a prior result in the durable cache by prompt.
// Expired entries are never returned.
func (c *Client) CachedAnalysis(ctx context.Context, prompt string) (*AnalysisResult, bool) {
	if c.durable == nil {
		return nil, false
	}
	entry, err := c.durable.Get(ctx, promptHash(prompt))
	if err != nil {
		if !memory.IsKind(err, memory.KindNotFound) {
			c.logger.Warn("durable cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return &AnalysisResult{
		Content:    entry.AnalysisResult,
		Model:      entry.ModelUsed,
		Confidence: entry.ConfidenceScore,
		Metadata: map[string]interface{}{
			"cached":    true,
			"cached_at": entry.CreatedAt,
		},
	}, true
}

// ensureModel verifies the provider can serve its model, pulling it when
// the provider manages models locally. Verified once per process.
func (c *Client) ensureModel(ctx context.Context) error {
	if c.modelReady.Load() {
		return nil
	}
	mm, ok := llmtypes.SupportsModelManagement(c.provider)
	if !ok {
		c.modelReady.Store(true)
		return nil
	}
	if !mm.IsAvailable(ctx) {
		c.logger.Info("model not available, pulling",
			zap.String("provider", c.provider.Name()),
			zap.String("model", c.provider.Model()),
		)
		if err := mm.Pull(ctx); err != nil {
			return memory.NewLLMProviderError(
				fmt.Sprintf("model %s is unavailable and pull failed", c.provider.Model()), err)
		}
	}
	c.modelReady.Store(true)
	return nil
}

func (c *Client) persistResult(ctx context.Context, prompt string, analysisType AnalysisType, result *AnalysisResult) {
	if c.durable == nil || len(result.Content) <= durableMinContentLen {
		return
	}
	entry := &memory.AnalysisCacheEntry{
		ContentHash:     promptHash(prompt),
		AnalysisType:    string(analysisType),
		ModelUsed:       result.Model,
		InputData:       []byte(prompt),
		AnalysisResult:  result.Content,
		ConfidenceScore: result.Confidence,
		ExpiresAt:       time.Now().Add(DurableCacheTTL),
	}
	if err := c.durable.Put(ctx, entry); err != nil {
		c.logger.Warn("durable cache write failed",
			zap.String("analysis_type", string(analysisType)),
			zap.Error(err),
		)
	}
}

func defaultAnalysisOptions() *llmtypes.Options {
	return &llmtypes.Options{
		Temperature: 0.1,
		MaxTokens:   4000,
		TopP:        0.9,
		TopK:        40,
	}
}

func analysisCacheKey(prompt, model string, analysisType AnalysisType) string {
	sum := md5.Sum([]byte(prompt + ":" + model + ":" + string(analysisType)))
	return hex.EncodeToString(sum[:])
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// scoreConfidence estimates response quality from length, structure
// markers, and hedging language.
func scoreConfidence(content string) float64 {
	if content == "" {
		return 0
	}
	score := 0.5
	if len(content) > 200 {
		score += 0.1
	}
	if len(content) > 1000 {
		score += 0.1
	}
	lower := strings.ToLower(content)
	for _, marker := range []string{"##", "1.", "confidence"} {
		if strings.Contains(lower, marker) {
			score += 0.05
		}
	}
	for _, marker := range []string{"might", "possibly", "unclear"} {
		if strings.Contains(lower, marker) {
			score -= 0.1
		}
	}
	return memory.Clamp01(score)
}
