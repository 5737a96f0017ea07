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
// Package learning mines coding patterns, meta insights, and outcome
// correlations from stored memories. The pipeline controller buffers
// real-time ingest events, schedules recurring analyses through the durable
// task queue, and runs the worker loop that retires queued tasks.
package learning

import (
	"context"
	"time"

	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
)

// Detection methods recorded in pattern metadata.
const (
	DetectionUserExplicit = "user_explicit"
	DetectionMemoryType   = "memory_type"
	DetectionKeyword      = "keyword"
	DetectionLLM          = "llm_analysis"
)

// maxExampleLen caps the example snippet carried on an extracted pattern.
const maxExampleLen = 500

// ExtractedPattern is one pattern candidate produced by the extractor,
// before type normalization and persistence.
type ExtractedPattern struct {
	Category        string
	Type            string
	Name            string
	Signature       string
	Description     string
	Languages       []string
	Example         string
	Confidence      float64
	ConfidenceBoost float64
	DetectionMethod string
	Metadata        map[string]interface{}
}

// RealTimeConfig tunes the ingest-driven path.
type RealTimeConfig struct {
	// Enabled turns the OnMemoryAdded hook on.
	Enabled bool
	// BatchSize caps how many buffered memories one drain enqueues.
	BatchSize int
	// TriggerThreshold is the buffer length that triggers a drain.
	TriggerThreshold int
	// MinConfidence drops extracted patterns below this score.
	MinConfidence float64
}

// ScheduledConfig tunes the recurring analyses. Intervals are standard
// five-field cron expressions; they are reported in status snapshots, not
// enforced by the pipeline itself.
type ScheduledConfig struct {
	Enabled   bool
	Intervals map[memory.TaskType]string
}

// Thresholds gate the insight generators.
type Thresholds struct {
	// PatternMinFrequency is the minimum sightings before a pattern can
	// back a best-practice insight.
	PatternMinFrequency int
	// InsightMinEvidence is the co-occurrence count at which an
	// anti-pattern insight escalates to high priority.
	InsightMinEvidence int
	// PreferenceMinProjects is the minimum distinct projects before a
	// technology counts as a preference.
	PreferenceMinProjects int
	// EvolutionMinChange is the minimum relative frequency change before
	// a trend is reported.
	EvolutionMinChange float64
}

// Config carries all learning knobs.
type Config struct {
	RealTime   RealTimeConfig
	Scheduled  ScheduledConfig
	Thresholds Thresholds
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RealTime: RealTimeConfig{
			Enabled:          true,
			BatchSize:        10,
			TriggerThreshold: 5,
			MinConfidence:    0.6,
		},
		Scheduled: ScheduledConfig{
			Enabled: true,
			Intervals: map[memory.TaskType]string{
				memory.TaskPatternDetection:   "0 */6 * * *",
				memory.TaskInsightGeneration:  "0 2 * * *",
				memory.TaskPreferenceAnalysis: "0 3 * * *",
				memory.TaskEvolutionTracking:  "0 4 * * 0",
			},
		},
		Thresholds: Thresholds{
			PatternMinFrequency:   3,
			InsightMinEvidence:    5,
			PreferenceMinProjects: 2,
			EvolutionMinChange:    0.1,
		},
	}
}

// MemoryStore is the slice of the memory store the learning engine uses.
type MemoryStore interface {
	GetMemory(ctx context.Context, id int64) (*memory.Memory, error)
	GetProject(ctx context.Context, id int64) (*memory.Project, error)
	GetProjectByName(ctx context.Context, name string) (*memory.Project, error)
	InsertMemory(ctx context.Context, m *memory.Memory) (int64, error)
	ListUnanalyzedMemories(ctx context.Context, since time.Time, limit int) ([]memory.Memory, error)
	ListMemoriesByTypes(ctx context.Context, types []memory.MemoryType, since time.Time) ([]memory.Memory, error)
	CountByTypeSince(ctx context.Context, since time.Time) (map[memory.MemoryType]int, error)
	ProjectTypeCounts(ctx context.Context, since time.Time) ([]memory.TypeCount, error)
	MemoryStats(ctx context.Context) (total, analyzed int, err error)
}

// PatternStore persists mined patterns and their occurrence history.
type PatternStore interface {
	GetBySignature(ctx context.Context, signature string) (*memory.CodingPattern, error)
	RecordPattern(ctx context.Context, p *memory.CodingPattern, boost float64, projectID, memoryID int64) (*memory.CodingPattern, bool, error)
	ListPatterns(ctx context.Context, f memory.PatternFilter) ([]memory.CodingPattern, error)
	Aggregates(ctx context.Context) (*memory.PatternAggregates, error)
	MonthlyOccurrences(ctx context.Context, since time.Time) ([]memory.MonthlyOccurrence, error)
	BugCoOccurrences(ctx context.Context, minCount int) ([]memory.BugCoOccurrence, error)
	PatternsUsedInProject(ctx context.Context, projectID int64, since time.Time) ([]memory.ProjectPatternUse, error)
	OccurrenceCount(ctx context.Context, patternID int64) (int, error)
}

// InsightStore persists synthesized meta insights.
type InsightStore interface {
	UpsertInsight(ctx context.Context, ins *memory.MetaInsight) (*memory.MetaInsight, bool, error)
	CountByType(ctx context.Context) (map[memory.InsightType]int, error)
}

// OutcomeStore persists pattern outcomes and their correlations.
type OutcomeStore interface {
	InsertOutcome(ctx context.Context, o *memory.PatternOutcome) (int64, error)
	ListOutcomesSince(ctx context.Context, projectID *int64, since time.Time) ([]memory.OutcomeWithPattern, error)
	UpsertCorrelation(ctx context.Context, c *memory.PatternCorrelation) error
}

// TaskQueue is the durable learning queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *memory.LearningTask) (int64, error)
	ClaimBatch(ctx context.Context, maxTasks int) ([]memory.LearningTask, error)
	CompleteTask(ctx context.Context, id int64, duration time.Duration, summary string) error
	FailTask(ctx context.Context, id int64, taskErr string) (*memory.LearningTask, error)
	FailTaskPermanent(ctx context.Context, id int64, taskErr string) error
	SweepStuck(ctx context.Context, olderThan, retryDelay time.Duration) (int64, error)
	DeleteCompletedBefore(ctx context.Context, retention time.Duration) (int64, error)
	CountsByStatus(ctx context.Context) (map[memory.TaskStatus]int, error)
	ActivityByType(ctx context.Context) (map[memory.TaskType]memory.TaskTypeActivity, error)
	RatesSince(ctx context.Context, window time.Duration) (completed, failed int, err error)
}

// Embedder produces embedding vectors for new patterns, insights, and
// synthesized memories.
type Embedder interface {
	Embed(ctx context.Context, text, modelName string) ([]float32, error)
	ResolveModel(modelName string) (embedding.ModelConfig, error)
}

// Analyzer is the optional LLM analysis client. A nil Analyzer keeps every
// component on its rule-based path.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, contextText string, analysisType llm.AnalysisType) (*llm.AnalysisResult, error)
}
