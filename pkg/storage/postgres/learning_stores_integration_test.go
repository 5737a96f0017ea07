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

//go:build integration

package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/memory"
)

func seedMemory(t *testing.T, backend *Backend, projectName string, memoryType memory.MemoryType) (*memory.Project, *memory.Memory) {
	t.Helper()
	ctx := context.Background()

	project, err := backend.Memories().UpsertProject(ctx, projectName, "integration test project")
	require.NoError(t, err)

	m := &memory.Memory{
		ProjectID:       project.ID,
		Content:         "use a retry with backoff around the flaky call",
		MemoryType:      memoryType,
		Embedding:       testEmbedding(0),
		EmbeddingModel:  "nomic-embed-text",
		ImportanceScore: 0.5,
	}
	_, err = backend.Memories().InsertMemory(ctx, m)
	require.NoError(t, err)
	return project, m
}

func TestPatternStore_RecordThenReinforce(t *testing.T) {
	backend := testBackend(t)
	ctx := context.Background()

	projectA, memA := seedMemory(t, backend, uniqueID("proj-a"), memory.TypeCode)
	projectB, memB := seedMemory(t, backend, uniqueID("proj-b"), memory.TypeCode)

	signature := uniqueID("try_catch_pattern")
	pattern := &memory.CodingPattern{
		Signature:       signature,
		Category:        "error_handling",
		Type:            "error_handling",
		Name:            "Try-Catch Usage",
		Description:     "wraps risky calls in structured error handling",
		Languages:       []string{"go"},
		ProjectsSeen:    []string{projectA.Name},
		ConfidenceScore: 0.7,
		Embedding:       testEmbedding(1),
		Metadata: map[string]interface{}{
			"detection_method": "keyword",
			"example_memories": []int64{memA.ID},
		},
	}

	created, inserted, err := backend.Patterns().RecordPattern(ctx, pattern, 0, projectA.ID, memA.ID)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, created.FrequencyCount)
	assert.InDelta(t, 0.7, created.ConfidenceScore, 0.001)
	assert.Equal(t, []string{projectA.Name}, created.ProjectsSeen)

	// Same signature from another project: reinforcement, not a new row.
	again := *pattern
	again.ProjectsSeen = []string{projectB.Name}
	again.Metadata = map[string]interface{}{
		"detection_method": "keyword",
		"example_memories": []int64{memB.ID},
	}
	reinforced, inserted, err := backend.Patterns().RecordPattern(ctx, &again, 0.2, projectB.ID, memB.ID)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, created.ID, reinforced.ID)
	assert.Equal(t, 2, reinforced.FrequencyCount)
	assert.InDelta(t, 0.9, reinforced.ConfidenceScore, 0.001)
	assert.ElementsMatch(t, []string{projectA.Name, projectB.Name}, reinforced.ProjectsSeen)
	assert.True(t, reinforced.LastReinforced.After(created.CreatedAt) ||
		reinforced.LastReinforced.Equal(created.CreatedAt))

	examples, ok := reinforced.Metadata["example_memories"].([]interface{})
	require.True(t, ok, "example_memories should accumulate")
	assert.Len(t, examples, 2)

	n, err := backend.Patterns().OccurrenceCount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "every sighting writes an occurrence row")

	// Confidence clamps at 1.0 no matter the boost.
	clamped, _, err := backend.Patterns().RecordPattern(ctx, &again, 5.0, projectB.ID, memB.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, clamped.ConfidenceScore, 0.001)
	assert.Equal(t, 3, clamped.FrequencyCount)
}

func TestPatternStore_ListPatternsHonorsFilter(t *testing.T) {
	backend := testBackend(t)
	ctx := context.Background()

	project, mem := seedMemory(t, backend, uniqueID("proj-filter"), memory.TypeCode)

	strong := &memory.CodingPattern{
		Signature:       uniqueID("rest_api"),
		Category:        "api_patterns",
		Type:            "api_design",
		Name:            "REST API",
		Description:     "resource-oriented HTTP endpoints",
		Languages:       []string{"go"},
		ProjectsSeen:    []string{project.Name},
		ConfidenceScore: 0.9,
	}
	weak := &memory.CodingPattern{
		Signature:       uniqueID("magic_numbers"),
		Category:        "anti_pattern",
		Type:            "error_handling",
		Name:            "Magic Numbers",
		Description:     "unexplained numeric literals",
		Languages:       []string{"python"},
		ProjectsSeen:    []string{project.Name},
		ConfidenceScore: 0.3,
	}
	_, _, err := backend.Patterns().RecordPattern(ctx, strong, 0, project.ID, mem.ID)
	require.NoError(t, err)
	_, _, err = backend.Patterns().RecordPattern(ctx, weak, 0, project.ID, mem.ID)
	require.NoError(t, err)

	got, err := backend.Patterns().ListPatterns(ctx, memory.PatternFilter{
		Category:      "api_patterns",
		Language:      "go",
		MinConfidence: 0.6,
		MinFrequency:  1,
		Limit:         10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.Equal(t, "api_patterns", p.Category)
		assert.GreaterOrEqual(t, p.ConfidenceScore, 0.6)
	}

	none, err := backend.Patterns().ListPatterns(ctx, memory.PatternFilter{
		Category:      "anti_pattern",
		MinConfidence: 0.95,
		Limit:         10,
	})
	require.NoError(t, err)
	for _, p := range none {
		assert.GreaterOrEqual(t, p.ConfidenceScore, 0.95)
	}
}

func TestInsightStore_UpsertByTitleMergesEvidence(t *testing.T) {
	backend := testBackend(t)
	ctx := context.Background()

	title := uniqueID("Best Practice: Try-Catch Usage")
	first := &memory.MetaInsight{
		InsightType:      memory.InsightBestPractice,
		Category:         "error_handling",
		Title:            title,
		Description:      "consistently seen across projects",
		ConfidenceLevel:  0.8,
		EvidenceStrength: 0.5,
		ProjectsInvolved: []string{"alpha"},
		Actionable:       true,
		Priority:         memory.PriorityMedium,
		Embedding:        testEmbedding(2),
		Metadata:         map[string]interface{}{"source": "rule_based"},
	}
	stored, inserted, err := backend.Insights().UpsertInsight(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := &memory.MetaInsight{
		InsightType:      memory.InsightBestPractice,
		Category:         "error_handling",
		Title:            title,
		Description:      "new narrative",
		ConfidenceLevel:  0.4,
		EvidenceStrength: 0.3,
		ProjectsInvolved: []string{"beta"},
		Priority:         memory.PriorityMedium,
		Metadata:         map[string]interface{}{"run": "second"},
	}
	merged, inserted, err := backend.Insights().UpsertInsight(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, stored.ID, merged.ID)
	assert.InDelta(t, 0.5, merged.EvidenceStrength, 0.001, "evidence keeps the max")
	assert.InDelta(t, 0.6, merged.ConfidenceLevel, 0.001, "confidence becomes the mean")
	assert.Equal(t, "rule_based", merged.Metadata["source"])
	assert.Equal(t, "second", merged.Metadata["run"])
	assert.Equal(t, "consistently seen across projects", merged.Description,
		"collision keeps the original description")

	// Evidence strength never decreases across further upserts.
	third := *second
	third.EvidenceStrength = 0.9
	bumped, _, err := backend.Insights().UpsertInsight(ctx, &third)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, bumped.EvidenceStrength, 0.001)

	counts, err := backend.Insights().CountByType(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[memory.InsightBestPractice], 1)
}

func TestOutcomeStore_RecordAndCorrelate(t *testing.T) {
	backend := testBackend(t)
	ctx := context.Background()

	project, mem := seedMemory(t, backend, uniqueID("proj-outcome"), memory.TypeCode)
	pattern := &memory.CodingPattern{
		Signature:       uniqueID("repository_pattern"),
		Category:        "database",
		Type:            "function_structure",
		Name:            "Repository Pattern",
		Description:     "data access behind an interface",
		ProjectsSeen:    []string{project.Name},
		ConfidenceScore: 0.8,
	}
	stored, _, err := backend.Patterns().RecordPattern(ctx, pattern, 0, project.ID, mem.ID)
	require.NoError(t, err)

	outcomes := []memory.OutcomeType{
		memory.OutcomeSuccess, memory.OutcomeSuccess, memory.OutcomeSuccess,
		memory.OutcomeSuccess, memory.OutcomeFailure,
	}
	for _, ot := range outcomes {
		_, err := backend.Outcomes().InsertOutcome(ctx, &memory.PatternOutcome{
			ProjectID:   project.ID,
			PatternID:   stored.ID,
			OutcomeType: ot,
			Value:       1,
			Description: "observed in integration test",
		})
		require.NoError(t, err)
	}

	listed, err := backend.Outcomes().ListOutcomesSince(ctx, &project.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, listed, 5)
	for _, ow := range listed {
		assert.Equal(t, stored.ID, ow.Outcome.PatternID)
		assert.Equal(t, "Repository Pattern", ow.PatternName)
	}

	corr := &memory.PatternCorrelation{
		PatternID:       stored.ID,
		Strength:        memory.ModeratePositive,
		ConfidenceScore: 0.7,
		SampleSize:      5,
		AnalysisMethod:  memory.MethodRuleBased,
		Insights:        "4/5 outcomes positive",
	}
	require.NoError(t, backend.Outcomes().UpsertCorrelation(ctx, corr))

	got, err := backend.Outcomes().GetCorrelation(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.ModeratePositive, got.Strength)
	assert.Equal(t, 5, got.SampleSize)

	// Re-analysis replaces the summary wholesale.
	corr.Strength = memory.StrongPositive
	corr.SampleSize = 9
	require.NoError(t, backend.Outcomes().UpsertCorrelation(ctx, corr))
	got, err = backend.Outcomes().GetCorrelation(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.StrongPositive, got.Strength)
	assert.Equal(t, 9, got.SampleSize)
}

func TestMemoryStore_SearchBySimilarity(t *testing.T) {
	backend := testBackend(t)
	ctx := context.Background()

	projectName := uniqueID("proj-search")
	project, err := backend.Memories().UpsertProject(ctx, projectName, "search test")
	require.NoError(t, err)

	near := &memory.Memory{
		ProjectID:      project.ID,
		Content:        "vector search with pgvector",
		MemoryType:     memory.TypeCode,
		Embedding:      testEmbedding(0),
		EmbeddingModel: "nomic-embed-text",
	}
	far := &memory.Memory{
		ProjectID:      project.ID,
		Content:        "an unrelated note",
		MemoryType:     memory.TypeGeneral,
		Embedding:      testEmbedding(1),
		EmbeddingModel: "nomic-embed-text",
	}
	_, err = backend.Memories().InsertMemory(ctx, near)
	require.NoError(t, err)
	_, err = backend.Memories().InsertMemory(ctx, far)
	require.NoError(t, err)

	results, err := backend.Memories().SearchMemories(ctx, memory.SearchParams{
		QueryEmbedding: testEmbedding(0),
		ProjectName:    projectName,
		Limit:          10,
		MinSimilarity:  0.9,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near.ID, results[0].Memory.ID)
	assert.Equal(t, projectName, results[0].ProjectName)
	assert.InDelta(t, 1.0, results[0].Similarity, 0.01)

	// A query orthogonal to everything yields no results and no error.
	empty, err := backend.Memories().SearchMemories(ctx, memory.SearchParams{
		QueryEmbedding: testEmbedding(2),
		ProjectName:    projectName,
		Limit:          10,
		MinSimilarity:  0.99,
	})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAnalysisCacheStore_PutGetAndExpiry(t *testing.T) {
	backend := testBackend(t)
	cache := backend.AnalysisCache()
	ctx := context.Background()

	hash := uniqueID("sha256")
	input := []byte(strings.Repeat("long analysis prompt ", 100))
	entry := &memory.AnalysisCacheEntry{
		ContentHash:     hash,
		AnalysisType:    "patternAnalysis",
		ModelUsed:       "llama3.2",
		InputData:       input,
		AnalysisResult:  "1. **Retry Loop** confidence: 0.8",
		ConfidenceScore: 0.8,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, cache.Put(ctx, entry))

	got, err := cache.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, entry.AnalysisResult, got.AnalysisResult)
	assert.Equal(t, input, got.InputData, "compressed input must round-trip")

	// Replacement on conflict.
	entry.AnalysisResult = "revised analysis"
	require.NoError(t, cache.Put(ctx, entry))
	got, err = cache.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "revised analysis", got.AnalysisResult)

	// Expired entries are invisible and collectable.
	expiredHash := uniqueID("sha256-expired")
	expired := &memory.AnalysisCacheEntry{
		ContentHash:    expiredHash,
		AnalysisType:   "general",
		ModelUsed:      "llama3.2",
		InputData:      []byte("tiny"),
		AnalysisResult: "stale",
		ExpiresAt:      time.Now().Add(-time.Minute),
	}
	require.NoError(t, cache.Put(ctx, expired))

	_, err = cache.Get(ctx, expiredHash)
	require.Error(t, err)
	assert.True(t, memory.IsKind(err, memory.KindNotFound))

	deleted, err := cache.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}
