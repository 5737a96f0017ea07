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
package memory

import "time"

// SearchParams filters a semantic search over memories.
type SearchParams struct {
	QueryEmbedding []float32
	ProjectName    string
	MemoryType     string
	Limit          int
	MinSimilarity  float64
}

// PatternFilter filters pattern listings. Zero values mean "no filter".
type PatternFilter struct {
	Category      string
	Type          string
	Language      string
	MinConfidence float64
	MinFrequency  int
	Limit         int
}

// InsightFilter filters insight listings. Zero values mean "no filter".
type InsightFilter struct {
	Type           string
	Category       string
	MinConfidence  float64
	ActionableOnly bool
	Limit          int
}

// TypeCount is one (project, memory type) usage bucket.
type TypeCount struct {
	ProjectID   int64
	ProjectName string
	MemoryType  MemoryType
	Count       int
}

// PatternAggregates summarizes the pattern corpus for status reporting.
type PatternAggregates struct {
	PatternCount   int
	AvgConfidence  float64
	UniqueProjects int
}

// MonthlyOccurrence is one (pattern, calendar month) bucket of sightings.
// Evolution analysis compares the first and last buckets per pattern.
type MonthlyOccurrence struct {
	PatternID   int64
	PatternName string
	Signature   string
	Month       time.Time
	Count       int
}

// BugCoOccurrence counts bug memories recorded in one project within seven
// days of an occurrence of one pattern.
type BugCoOccurrence struct {
	PatternID   int64
	PatternName string
	Signature   string
	ProjectName string
	Count       int
}

// ProjectPatternUse is a pattern's recent occurrence footprint in one project.
type ProjectPatternUse struct {
	PatternID   int64
	PatternName string
	Signature   string
	UseCount    int
	LastUsed    time.Time
}

// OutcomeWithPattern joins an outcome row with its pattern's identity.
type OutcomeWithPattern struct {
	Outcome     PatternOutcome
	PatternName string
	Signature   string
}

// TaskTypeActivity summarizes one task type's queue footprint.
type TaskTypeActivity struct {
	LastCompleted *time.Time
	NextScheduled *time.Time
	PendingCount  int
}
