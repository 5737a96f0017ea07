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
// Package memory defines the domain model of the Spool learning engine:
// projects, sessions, memories, coding patterns, insights, outcomes, and the
// learning task queue, together with the typed error used across subsystems.
package memory

import (
	"sort"
	"time"
)

// MemoryType classifies the content of a memory. The set is open; unknown
// values are stored as-is and handled by the general pattern extractor.
type MemoryType string

const (
	TypeCode                MemoryType = "code"
	TypeImplementationNotes MemoryType = "implementation_notes"
	TypeArchitecture        MemoryType = "architecture"
	TypeDesignDecisions     MemoryType = "design_decisions"
	TypeTechContext         MemoryType = "tech_context"
	TypeSystemPatterns      MemoryType = "system_patterns"
	TypeBug                 MemoryType = "bug"
	TypeLessonsLearned      MemoryType = "lessons_learned"
	TypeTask                MemoryType = "task"
	TypeGeneral             MemoryType = "general"
)

// SessionType classifies a session.
type SessionType string

const (
	SessionMemory   SessionType = "memory"
	SessionThinking SessionType = "thinking"
	SessionMixed    SessionType = "mixed"
)

// Project owns memories and sessions. Names are globally unique.
type Project struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Stats is populated only when callers request project statistics.
	Stats *ProjectStats
}

// ProjectStats aggregates per-project activity counters.
type ProjectStats struct {
	MemoryCount  int
	SessionCount int
	LastActivity *time.Time
}

// Session groups memories within a project. Names are unique per project.
type Session struct {
	ID          int64
	ProjectID   int64
	Name        string
	SessionType SessionType
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Memory is a single ingested unit of developer knowledge. Rows are
// immutable after insert except for tags and importance.
type Memory struct {
	ID              int64
	ProjectID       int64
	SessionID       *int64
	Content         string
	MemoryType      MemoryType
	Embedding       []float32
	EmbeddingModel  string
	ImportanceScore float64
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SearchResult pairs a memory with its cosine similarity to a query vector.
type SearchResult struct {
	Memory      Memory
	ProjectName string
	Similarity  float64
}

// CodingPattern is a recurring pattern mined from memories.
// Signature is the global upsert key.
type CodingPattern struct {
	ID              int64
	Signature       string
	Category        string
	Type            string
	Name            string
	Description     string
	Languages       []string
	ProjectsSeen    []string
	FrequencyCount  int
	ConfidenceScore float64
	Embedding       []float32
	ExampleCode     string
	Metadata        map[string]interface{}
	CreatedAt       time.Time
	LastReinforced  time.Time
}

// PatternOccurrence links a pattern sighting to the memory and project it
// came from. One row per create or reinforcement; evolution analysis buckets
// these by month.
type PatternOccurrence struct {
	ID         int64
	PatternID  int64
	ProjectID  int64
	MemoryID   int64
	OccurredAt time.Time
}

// OutcomeType classifies the result a pattern produced in a project.
type OutcomeType string

const (
	OutcomeSuccess         OutcomeType = "success"
	OutcomeFailure         OutcomeType = "failure"
	OutcomeNeutral         OutcomeType = "neutral"
	OutcomeBug             OutcomeType = "bug"
	OutcomePerformanceGain OutcomeType = "performance_gain"
)

// PatternOutcome is an append-only record of a pattern's observed result.
type PatternOutcome struct {
	ID          int64
	ProjectID   int64
	PatternID   int64
	OutcomeType OutcomeType
	Value       float64
	Description string
	Metrics     map[string]interface{}
	RecordedAt  time.Time
}

// CorrelationStrength is the rule-based or LLM-derived classification of a
// pattern's relationship to outcomes.
type CorrelationStrength string

const (
	StrongPositive   CorrelationStrength = "strong_positive"
	ModeratePositive CorrelationStrength = "moderate_positive"
	NeutralStrength  CorrelationStrength = "neutral"
	ModerateNegative CorrelationStrength = "moderate_negative"
	StrongNegative   CorrelationStrength = "strong_negative"
)

// AnalysisMethod records how a correlation was computed.
type AnalysisMethod string

const (
	MethodRuleBased  AnalysisMethod = "rule_based"
	MethodLLMPowered AnalysisMethod = "llm_powered"
)

// PatternCorrelation summarizes outcomes for one pattern. One row per
// pattern, upserted on each analysis run.
type PatternCorrelation struct {
	ID              int64
	PatternID       int64
	Strength        CorrelationStrength
	ConfidenceScore float64
	SampleSize      int
	AnalysisMethod  AnalysisMethod
	Insights        string
	Metadata        map[string]interface{}
	UpdatedAt       time.Time
}

// InsightType classifies a synthesized insight.
type InsightType string

const (
	InsightBestPractice InsightType = "best_practice"
	InsightAntipattern  InsightType = "antipattern"
	InsightPreference   InsightType = "preference"
	InsightTrend        InsightType = "trend"
	InsightWarning      InsightType = "warning"
	InsightOptimization InsightType = "optimization"
)

// InsightPriority ranks how urgently an insight deserves attention.
type InsightPriority string

const (
	PriorityLow    InsightPriority = "low"
	PriorityMedium InsightPriority = "medium"
	PriorityHigh   InsightPriority = "high"
)

// MetaInsight is a cross-project conclusion synthesized from patterns,
// memories, and outcomes. Title is the upsert key.
type MetaInsight struct {
	ID                 int64
	InsightType        InsightType
	Category           string
	Title              string
	Description        string
	ConfidenceLevel    float64
	EvidenceStrength   float64
	ProjectsInvolved   []string
	SupportingPatterns []int64
	Metadata           map[string]interface{}
	Actionable         bool
	Priority           InsightPriority
	Embedding          []float32
	CreatedAt          time.Time
	LastReinforced     time.Time
}

// TaskType names the four recurring learning analyses.
type TaskType string

const (
	TaskPatternDetection   TaskType = "pattern_detection"
	TaskInsightGeneration  TaskType = "insight_generation"
	TaskPreferenceAnalysis TaskType = "preference_analysis"
	TaskEvolutionTracking  TaskType = "evolution_tracking"
)

// TaskTypes lists all task types in priority order (lower number first).
var TaskTypes = []TaskType{
	TaskPatternDetection,
	TaskInsightGeneration,
	TaskPreferenceAnalysis,
	TaskEvolutionTracking,
}

// TaskStatus is the queue state of a learning task.
// pending and retry are claimable; processing is transient;
// completed and failed are terminal.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusRetry      TaskStatus = "retry"
)

// DefaultMaxRetries bounds retry attempts before a task is marked failed.
const DefaultMaxRetries = 3

// LearningTask is one row of the durable learning queue.
type LearningTask struct {
	ID                   int64
	TaskType             TaskType
	Priority             int
	Payload              map[string]interface{}
	Status               TaskStatus
	ScheduledFor         time.Time
	StartedAt            *time.Time
	CompletedAt          *time.Time
	RetryCount           int
	MaxRetries           int
	ErrorMessage         string
	ProcessingDurationMS int64
	ResultSummary        string
	CreatedAt            time.Time
}

// AnalysisCacheEntry is one durable LLM-analysis cache row, keyed by the
// SHA-256 of the prompt. Expired entries are never returned.
type AnalysisCacheEntry struct {
	ContentHash     string
	AnalysisType    string
	ModelUsed       string
	InputData       []byte
	AnalysisResult  string
	ConfidenceScore float64
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// UnionStrings returns the sorted set union of a and b.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UniqueStrings returns the input with duplicates removed, preserving the
// first occurrence order.
func UniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
