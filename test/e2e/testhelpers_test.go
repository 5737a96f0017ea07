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

package e2e

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/learning"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
	"github.com/teradata-labs/spool/pkg/storage/postgres"
	"github.com/teradata-labs/spool/pkg/tools"
)

const embedDimensions = 768

// openBackend connects to the e2e database from SPOOL_TEST_DATABASE_URL,
// runs migrations, and registers cleanup. Skips the test when unset.
func openBackend(t *testing.T) *postgres.Backend {
	t.Helper()

	dsn := os.Getenv("SPOOL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SPOOL_TEST_DATABASE_URL not set; skipping e2e test")
	}

	ctx := context.Background()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err, "invalid SPOOL_TEST_DATABASE_URL")
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err, "failed to connect to PostgreSQL")

	backend, err := postgres.NewBackendWithPool(pool, observability.NewNoOpTracer())
	require.NoError(t, err, "failed to create backend")
	t.Cleanup(backend.Close)

	require.NoError(t, backend.Migrate(ctx), "failed to run migrations")
	return backend
}

// tokenEmbedder is a deterministic stand-in for the Ollama embedder: each
// token hashes into one of the vector's buckets and the result is
// L2-normalized, so identical texts embed identically and shared tokens
// produce positive cosine similarity.
type tokenEmbedder struct{}

func (tokenEmbedder) Embed(ctx context.Context, text, modelName string) ([]float32, error) {
	vec := make([]float32, embedDimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%embedDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (tokenEmbedder) ResolveModel(modelName string) (embedding.ModelConfig, error) {
	return embedding.ModelConfig{
		Name:       "nomic-embed-text",
		Provider:   "ollama",
		Dimensions: embedDimensions,
		Available:  true,
		Default:    true,
	}, nil
}

// engineConfig is the learning configuration the e2e flows run under: a low
// trigger threshold so three stores drain a detection batch.
func engineConfig() learning.Config {
	return learning.Config{
		RealTime: learning.RealTimeConfig{
			Enabled:          true,
			BatchSize:        3,
			TriggerThreshold: 3,
			MinConfidence:    0.6,
		},
		Scheduled: learning.ScheduledConfig{
			Enabled: true,
			Intervals: map[memory.TaskType]string{
				memory.TaskPatternDetection:   "0 */6 * * *",
				memory.TaskInsightGeneration:  "0 2 * * *",
				memory.TaskPreferenceAnalysis: "0 3 * * *",
				memory.TaskEvolutionTracking:  "0 4 * * 0",
			},
		},
		Thresholds: learning.Thresholds{
			PatternMinFrequency:   3,
			InsightMinEvidence:    5,
			PreferenceMinProjects: 2,
			EvolutionMinChange:    0.1,
		},
	}
}

// newEngine assembles the full rule-based stack over the backend: pipeline
// plus the complete tool registry, the same wiring the daemon builds.
func newEngine(t *testing.T, backend *postgres.Backend) (*learning.Pipeline, *tools.Registry) {
	t.Helper()

	embedder := tokenEmbedder{}
	pipeline, err := learning.NewPipeline(engineConfig(), learning.Deps{
		Memories: backend.Memories(),
		Patterns: backend.Patterns(),
		Insights: backend.Insights(),
		Outcomes: backend.Outcomes(),
		Queue:    backend.Queue(),
		Embedder: embedder,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err, "failed to build pipeline")

	registry := tools.NewRegistry(zap.NewNop(), observability.NewNoOpTracer())
	store := backend.Memories()
	registry.Register(tools.NewStoreMemoryTool(store, embedder, pipeline))
	registry.Register(tools.NewSearchMemoriesTool(store, embedder))
	registry.Register(tools.NewGetProjectsTool(store))
	registry.Register(tools.NewGetProjectSessionsTool(store))
	registry.Register(tools.NewGetInsightsTool(backend.Insights()))
	registry.Register(tools.NewGetCodingPatternsTool(backend.Patterns()))
	registry.Register(tools.NewRecordOutcomeTool(store, backend.Patterns(), pipeline.Correlator()))
	registry.Register(tools.NewTriggerAnalysisTool(store, pipeline.Correlator()))
	registry.Register(tools.NewLearningStatusTool(pipeline))

	return pipeline, registry
}

// runTool executes a tool and fails the test on an isError result.
func runTool(t *testing.T, registry *tools.Registry, name string, args map[string]interface{}) *tools.Result {
	t.Helper()

	result := registry.Execute(context.Background(), name, args)
	require.NotNil(t, result, "tool %s returned nil result", name)
	if !result.Success {
		require.NotNil(t, result.Error, "failed tool %s carries no error", name)
		t.Fatalf("tool %s failed: %s", name, result.Error.Message)
	}
	return result
}

// textData asserts the result payload is the human-readable text block the
// spool tools return.
func textData(t *testing.T, result *tools.Result) string {
	t.Helper()
	text, ok := result.Data.(string)
	require.True(t, ok, "tool result data should be text, got %T", result.Data)
	return text
}

// uniqueName returns a collision-free identifier; the e2e database is shared
// across runs.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
