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

// Package embedding turns text into vectors. A Client resolves the model
// through a Registry, serves repeats from a bounded LRU keyed by content
// hash, dispatches to a provider adapter (Ollama or Bedrock Titan), and
// validates the returned dimensions.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// DefaultCacheSize bounds the in-memory embedding LRU.
const DefaultCacheSize = 1000

// Provider generates raw embedding vectors for one backend.
type Provider interface {
	// Embed returns the raw vector for text under the given model.
	Embed(ctx context.Context, model, text string) ([]float32, error)
	// Name identifies the provider in the registry ("ollama", "bedrock").
	Name() string
}

// Client is the embedding front door: model resolution, caching, provider
// dispatch, and dimension validation.
type Client struct {
	registry  *Registry
	providers map[string]Provider
	cache     *lru.Cache[string, []float32]
	tracer    observability.Tracer
}

// Options configures a Client.
type Options struct {
	Registry  *Registry
	Providers []Provider
	CacheSize int
	Tracer    observability.Tracer
}

// NewClient creates an embedding client. A nil registry takes the built-in
// default; cache size defaults to DefaultCacheSize.
func NewClient(opts Options) (*Client, error) {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NewNoOpTracer()
	}

	cache, err := lru.New[string, []float32](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	providers := make(map[string]Provider, len(opts.Providers))
	for _, p := range opts.Providers {
		providers[p.Name()] = p
	}

	return &Client{
		registry:  opts.Registry,
		providers: providers,
		cache:     cache,
		tracer:    opts.Tracer,
	}, nil
}

// Registry exposes the model registry.
func (c *Client) Registry() *Registry { return c.registry }

// ResolveModel resolves modelName the way Embed would.
func (c *Client) ResolveModel(modelName string) (ModelConfig, error) {
	return c.registry.Resolve(modelName)
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + ":" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding of text under the resolved model. Vectors are
// cached by sha256(model:text); providers are only consulted on miss. The
// returned vector's length always equals the model's configured dimensions.
func (c *Client) Embed(ctx context.Context, text, modelName string) ([]float32, error) {
	ctx, span := c.tracer.StartSpan(ctx, "embedding.embed")
	defer c.tracer.EndSpan(span)

	model, err := c.registry.Resolve(modelName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute(observability.AttrModel, model.Name)

	key := cacheKey(model.Name, text)
	if vec, ok := c.cache.Get(key); ok {
		span.SetAttribute("cache_hit", true)
		return vec, nil
	}

	provider, ok := c.providers[model.Provider]
	if !ok {
		err := memory.NewEmbeddingError(
			fmt.Sprintf("no provider registered for %q", model.Provider), nil).
			WithDetail("model", model.Name)
		span.RecordError(err)
		return nil, err
	}

	vec, err := provider.Embed(ctx, model.Name, text)
	if err != nil {
		span.RecordError(err)
		if memory.IsKind(err, memory.KindEmbedding) {
			return nil, err
		}
		return nil, memory.NewEmbeddingError("embedding provider call failed", err).
			WithDetail("model", model.Name)
	}

	if len(vec) != model.Dimensions {
		err := memory.NewEmbeddingError(
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(vec), model.Dimensions), nil).
			WithDetail("model", model.Name)
		err.Retryable = false
		span.RecordError(err)
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// Cosine returns the cosine similarity of two vectors of equal dimension.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, memory.NewValidationError(
			fmt.Sprintf("cosine dimension mismatch: %d vs %d", len(a), len(b)))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
