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
package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/teradata-labs/spool/pkg/llm/types"
	"github.com/teradata-labs/spool/pkg/memory"
)

// fakeChat is a canned provider that records what it was asked.
type fakeChat struct {
	model        string
	content      string
	err          error
	delay        time.Duration
	calls        int
	lastMessages []llmtypes.Message
	lastOpts     *llmtypes.Options
}

func (f *fakeChat) Name() string  { return "fake" }
func (f *fakeChat) Model() string { return f.model }

func (f *fakeChat) Chat(ctx context.Context, messages []llmtypes.Message, opts *llmtypes.Options) (*llmtypes.Response, error) {
	f.calls++
	f.lastMessages = messages
	f.lastOpts = opts
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llmtypes.Response{
		Content: f.content,
		Model:   f.model,
		Usage:   llmtypes.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}, nil
}

// managedChat adds local model management on top of fakeChat.
type managedChat struct {
	fakeChat
	available bool
	pulls     int
	pullErr   error
}

func (m *managedChat) IsAvailable(_ context.Context) bool { return m.available }

func (m *managedChat) Pull(_ context.Context) error {
	m.pulls++
	if m.pullErr != nil {
		return m.pullErr
	}
	m.available = true
	return nil
}

// fakeDurable is an in-memory DurableCache.
type fakeDurable struct {
	entries  map[string]*memory.AnalysisCacheEntry
	putCalls int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{entries: make(map[string]*memory.AnalysisCacheEntry)}
}

func (f *fakeDurable) Put(_ context.Context, e *memory.AnalysisCacheEntry) error {
	f.putCalls++
	f.entries[e.ContentHash] = e
	return nil
}

func (f *fakeDurable) Get(_ context.Context, contentHash string) (*memory.AnalysisCacheEntry, error) {
	if e, ok := f.entries[contentHash]; ok {
		return e, nil
	}
	return nil, memory.NewNotFound("analysis cache entry", contentHash)
}

func TestClient_Analyze_CachesResults(t *testing.T) {
	provider := &fakeChat{model: "test-model", content: "patterns found"}
	client, err := NewClient(Config{Provider: provider})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := client.Analyze(ctx, "analyze these memories", "", AnalysisPatterns)
	require.NoError(t, err)
	assert.Equal(t, "patterns found", first.Content)
	assert.Equal(t, 1, provider.calls)

	second, err := client.Analyze(ctx, "analyze these memories", "", AnalysisPatterns)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, provider.calls, "repeat prompt should hit the LRU")

	// Same prompt under a different analysis type is a distinct key.
	_, err = client.Analyze(ctx, "analyze these memories", "", AnalysisInsights)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestClient_Analyze_OptionsAndSystemPrompt(t *testing.T) {
	provider := &fakeChat{model: "test-model", content: "ok"}
	client, err := NewClient(Config{Provider: provider})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "what patterns exist?", "memory 1\nmemory 2", AnalysisPatterns)
	require.NoError(t, err)

	require.NotNil(t, provider.lastOpts)
	assert.Equal(t, 0.1, provider.lastOpts.Temperature)
	assert.Equal(t, 4000, provider.lastOpts.MaxTokens)
	assert.Equal(t, 0.9, provider.lastOpts.TopP)
	assert.Equal(t, 40, provider.lastOpts.TopK)

	require.Len(t, provider.lastMessages, 2)
	assert.Equal(t, "system", provider.lastMessages[0].Role)
	assert.Contains(t, provider.lastMessages[0].Content, "coding patterns")
	assert.Equal(t, "user", provider.lastMessages[1].Role)
	assert.Contains(t, provider.lastMessages[1].Content, "what patterns exist?")
	assert.Contains(t, provider.lastMessages[1].Content, "memory 2")
}

func TestClient_Analyze_HardTimeout(t *testing.T) {
	provider := &fakeChat{model: "slow-model", content: "never arrives", delay: time.Second}
	client, err := NewClient(Config{Provider: provider, Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "slow prompt", "", AnalysisGeneral)
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindLLMTimeout))
	assert.Contains(t, err.Error(), "slow-model")
}

func TestClient_Analyze_ProviderErrorWrapped(t *testing.T) {
	provider := &fakeChat{model: "test-model", err: errors.New("upstream 500")}
	client, err := NewClient(Config{Provider: provider})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "prompt", "", AnalysisGeneral)
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindLLMProvider))

	typed, ok := memory.AsError(err)
	require.True(t, ok)
	assert.True(t, typed.Retryable)
}

func TestClient_Analyze_PullsUnavailableModel(t *testing.T) {
	provider := &managedChat{fakeChat: fakeChat{model: "local-model", content: "pulled and ran"}}
	client, err := NewClient(Config{Provider: provider})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Analyze(ctx, "first", "", AnalysisGeneral)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.pulls)

	// Availability is remembered; no second pull or check.
	_, err = client.Analyze(ctx, "second", "", AnalysisGeneral)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.pulls)
}

func TestClient_Analyze_PullFailureFailsCall(t *testing.T) {
	provider := &managedChat{
		fakeChat: fakeChat{model: "local-model", content: "unreachable"},
		pullErr:  errors.New("no disk space"),
	}
	client, err := NewClient(Config{Provider: provider})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "prompt", "", AnalysisGeneral)
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindLLMProvider))
	assert.Equal(t, 0, provider.calls, "chat must not run without the model")
}

func TestClient_Analyze_PersistsLongResponses(t *testing.T) {
	longContent := strings.Repeat("pattern analysis with detail. ", 10)
	provider := &fakeChat{model: "test-model", content: longContent}
	durable := newFakeDurable()
	client, err := NewClient(Config{Provider: provider, DurableCache: durable})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "long prompt", "", AnalysisPatterns)
	require.NoError(t, err)
	require.Equal(t, 1, durable.putCalls)

	entry := durable.entries[promptHash("long prompt")]
	require.NotNil(t, entry)
	assert.Equal(t, string(AnalysisPatterns), entry.AnalysisType)
	assert.Equal(t, "test-model", entry.ModelUsed)
	assert.Equal(t, longContent, entry.AnalysisResult)
	assert.Equal(t, []byte("long prompt"), entry.InputData)
	assert.InDelta(t, time.Until(entry.ExpiresAt).Hours(), DurableCacheTTL.Hours(), 1.0)
}

func TestClient_Analyze_SkipsDurableForShortResponses(t *testing.T) {
	provider := &fakeChat{model: "test-model", content: "short"}
	durable := newFakeDurable()
	client, err := NewClient(Config{Provider: provider, DurableCache: durable})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "prompt", "", AnalysisGeneral)
	require.NoError(t, err)
	assert.Equal(t, 0, durable.putCalls)
}

func TestClient_CachedAnalysis(t *testing.T) {
	provider := &fakeChat{model: "test-model", content: "unused"}
	durable := newFakeDurable()
	client, err := NewClient(Config{Provider: provider, DurableCache: durable})
	require.NoError(t, err)

	ctx := context.Background()
	_, ok := client.CachedAnalysis(ctx, "unknown prompt")
	assert.False(t, ok)

	durable.entries[promptHash("known prompt")] = &memory.AnalysisCacheEntry{
		ContentHash:     promptHash("known prompt"),
		AnalysisType:    string(AnalysisInsights),
		ModelUsed:       "old-model",
		AnalysisResult:  "prior analysis",
		ConfidenceScore: 0.85,
		CreatedAt:       time.Now().Add(-time.Hour),
	}

	result, ok := client.CachedAnalysis(ctx, "known prompt")
	require.True(t, ok)
	assert.Equal(t, "prior analysis", result.Content)
	assert.Equal(t, "old-model", result.Model)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Equal(t, true, result.Metadata["cached"])
	assert.Equal(t, 0, provider.calls)
}

func TestScoreConfidence(t *testing.T) {
	assert.Equal(t, 0.0, scoreConfidence(""))

	structured := "## Analysis\n1. First finding with strong evidence.\nconfidence: 0.9\n" + strings.Repeat("More supporting detail. ", 50)
	assert.Greater(t, scoreConfidence(structured), 0.7)

	hedged := "This might work, possibly, but the data is unclear."
	assert.Less(t, scoreConfidence(hedged), 0.5)

	// Scores stay clamped to [0, 1].
	assert.LessOrEqual(t, scoreConfidence(structured), 1.0)
	assert.GreaterOrEqual(t, scoreConfidence(hedged), 0.0)
}

func TestAnalysisCacheKey(t *testing.T) {
	a := analysisCacheKey("prompt", "model", AnalysisPatterns)
	b := analysisCacheKey("prompt", "model", AnalysisInsights)
	c := analysisCacheKey("prompt", "other-model", AnalysisPatterns)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
