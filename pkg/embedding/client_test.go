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
package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/memory"
)

// fakeProvider returns canned vectors and counts calls so cache behavior
// is observable.
type fakeProvider struct {
	name    string
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return make([]float32, 768), nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Add(ModelConfig{Name: "test-model", Provider: "fake", Dimensions: 768, Available: true, Default: true})
	return reg
}

func TestClient_Embed_CachesByContent(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	client, err := NewClient(Options{Registry: testRegistry(), Providers: []Provider{provider}})
	require.NoError(t, err)

	ctx := context.Background()

	first, err := client.Embed(ctx, "use context for cancellation", "test-model")
	require.NoError(t, err)
	assert.Len(t, first, 768)
	assert.Equal(t, 1, provider.calls)

	second, err := client.Embed(ctx, "use context for cancellation", "test-model")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "repeat text should be served from cache")

	_, err = client.Embed(ctx, "different text", "test-model")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestClient_Embed_CacheKeyIncludesModel(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	reg := testRegistry()
	reg.Add(ModelConfig{Name: "other-model", Provider: "fake", Dimensions: 768, Available: true})

	client, err := NewClient(Options{Registry: reg, Providers: []Provider{provider}})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Embed(ctx, "same text", "test-model")
	require.NoError(t, err)
	_, err = client.Embed(ctx, "same text", "other-model")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls, "same text under a different model is a distinct cache entry")
}

func TestClient_Embed_LRUEviction(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	client, err := NewClient(Options{Registry: testRegistry(), Providers: []Provider{provider}, CacheSize: 1})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Embed(ctx, "alpha", "test-model")
	require.NoError(t, err)
	_, err = client.Embed(ctx, "beta", "test-model")
	require.NoError(t, err)

	// alpha was evicted by beta; embedding it again hits the provider.
	_, err = client.Embed(ctx, "alpha", "test-model")
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)
}

func TestClient_Embed_DimensionMismatch(t *testing.T) {
	provider := &fakeProvider{
		name:    "fake",
		vectors: map[string][]float32{"short": make([]float32, 42)},
	}
	client, err := NewClient(Options{Registry: testRegistry(), Providers: []Provider{provider}})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "short", "test-model")
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindEmbedding))

	typed, ok := memory.AsError(err)
	require.True(t, ok)
	assert.False(t, typed.Retryable, "a wrong-size vector will not fix itself on retry")
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestClient_Embed_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{name: "fake", err: errors.New("connection refused")}
	client, err := NewClient(Options{Registry: testRegistry(), Providers: []Provider{provider}})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "anything", "test-model")
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindEmbedding))

	typed, ok := memory.AsError(err)
	require.True(t, ok)
	assert.True(t, typed.Retryable)
}

func TestClient_Embed_NoProviderRegistered(t *testing.T) {
	client, err := NewClient(Options{Registry: testRegistry()})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "anything", "test-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider registered")
}

func TestClient_Embed_ResolvesDefaultModel(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	client, err := NewClient(Options{Registry: testRegistry(), Providers: []Provider{provider}})
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "no model given", "")
	require.NoError(t, err)
	assert.Len(t, vec, 768)
}

func TestCosine(t *testing.T) {
	identical, err := Cosine([]float32{1, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, identical, 1e-9)

	orthogonal, err := Cosine([]float32{1, 0, 0}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-9)

	opposite, err := Cosine([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-9)

	zero, err := Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)

	_, err = Cosine([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindValidation))
}
