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
package learning

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
)

// Shared in-memory fakes for the store interfaces. Each fake records calls
// so tests can assert on writes without a database.

type fakeMemoryStore struct {
	memories          map[int64]*memory.Memory
	projects          map[int64]*memory.Project
	unanalyzed        []memory.Memory
	byTypes           []memory.Memory
	typeCounts        map[memory.MemoryType]int
	projectTypeCounts []memory.TypeCount
	inserted          []memory.Memory
	total, analyzed   int
	insertErr         error
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{
		memories: map[int64]*memory.Memory{},
		projects: map[int64]*memory.Project{},
	}
}

func (f *fakeMemoryStore) addProject(id int64, name string) {
	f.projects[id] = &memory.Project{ID: id, Name: name}
}

func (f *fakeMemoryStore) addMemory(m memory.Memory) {
	f.memories[m.ID] = &m
}

func (f *fakeMemoryStore) GetMemory(_ context.Context, id int64) (*memory.Memory, error) {
	if m, ok := f.memories[id]; ok {
		return m, nil
	}
	return nil, memory.NewNotFound("memory", strconv.FormatInt(id, 10))
}

func (f *fakeMemoryStore) GetProject(_ context.Context, id int64) (*memory.Project, error) {
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return nil, memory.NewNotFound("project", strconv.FormatInt(id, 10))
}

func (f *fakeMemoryStore) GetProjectByName(_ context.Context, name string) (*memory.Project, error) {
	for _, p := range f.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, memory.NewNotFound("project", name)
}

func (f *fakeMemoryStore) InsertMemory(_ context.Context, m *memory.Memory) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, *m)
	return int64(len(f.inserted)), nil
}

func (f *fakeMemoryStore) ListUnanalyzedMemories(_ context.Context, _ time.Time, limit int) ([]memory.Memory, error) {
	if limit < len(f.unanalyzed) {
		return f.unanalyzed[:limit], nil
	}
	return f.unanalyzed, nil
}

func (f *fakeMemoryStore) ListMemoriesByTypes(_ context.Context, _ []memory.MemoryType, _ time.Time) ([]memory.Memory, error) {
	return f.byTypes, nil
}

func (f *fakeMemoryStore) CountByTypeSince(_ context.Context, _ time.Time) (map[memory.MemoryType]int, error) {
	return f.typeCounts, nil
}

func (f *fakeMemoryStore) ProjectTypeCounts(_ context.Context, _ time.Time) ([]memory.TypeCount, error) {
	return f.projectTypeCounts, nil
}

func (f *fakeMemoryStore) MemoryStats(_ context.Context) (int, int, error) {
	return f.total, f.analyzed, nil
}

type recordedPattern struct {
	pattern   memory.CodingPattern
	boost     float64
	projectID int64
	memoryID  int64
}

// fakePatternStore is mutex-guarded because scans record patterns from a
// worker group.
type fakePatternStore struct {
	mu          sync.Mutex
	bySignature map[string]*memory.CodingPattern
	recorded    []recordedPattern
	listResult  []memory.CodingPattern
	aggregates  *memory.PatternAggregates
	monthly     []memory.MonthlyOccurrence
	bugRows     []memory.BugCoOccurrence
	projectUses []memory.ProjectPatternUse
	occurrences map[int64]int
	nextID      int64
}

func newFakePatternStore() *fakePatternStore {
	return &fakePatternStore{
		bySignature: map[string]*memory.CodingPattern{},
		occurrences: map[int64]int{},
	}
}

func (f *fakePatternStore) GetBySignature(_ context.Context, signature string) (*memory.CodingPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.bySignature[signature]; ok {
		return p, nil
	}
	return nil, memory.NewNotFound("pattern", signature)
}

func (f *fakePatternStore) RecordPattern(_ context.Context, p *memory.CodingPattern, boost float64, projectID, memoryID int64) (*memory.CodingPattern, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, recordedPattern{pattern: *p, boost: boost, projectID: projectID, memoryID: memoryID})
	if existing, ok := f.bySignature[p.Signature]; ok {
		existing.FrequencyCount++
		return existing, false, nil
	}
	f.nextID++
	stored := *p
	stored.ID = f.nextID
	stored.FrequencyCount = 1
	f.bySignature[p.Signature] = &stored
	return &stored, true, nil
}

func (f *fakePatternStore) ListPatterns(_ context.Context, _ memory.PatternFilter) ([]memory.CodingPattern, error) {
	return f.listResult, nil
}

func (f *fakePatternStore) Aggregates(_ context.Context) (*memory.PatternAggregates, error) {
	if f.aggregates == nil {
		return &memory.PatternAggregates{}, nil
	}
	return f.aggregates, nil
}

func (f *fakePatternStore) MonthlyOccurrences(_ context.Context, _ time.Time) ([]memory.MonthlyOccurrence, error) {
	return f.monthly, nil
}

func (f *fakePatternStore) BugCoOccurrences(_ context.Context, _ int) ([]memory.BugCoOccurrence, error) {
	return f.bugRows, nil
}

func (f *fakePatternStore) PatternsUsedInProject(_ context.Context, _ int64, _ time.Time) ([]memory.ProjectPatternUse, error) {
	return f.projectUses, nil
}

func (f *fakePatternStore) OccurrenceCount(_ context.Context, patternID int64) (int, error) {
	return f.occurrences[patternID], nil
}

type fakeInsightStore struct {
	byTitle map[string]*memory.MetaInsight
	upserts []memory.MetaInsight
	counts  map[memory.InsightType]int
	nextID  int64
}

func newFakeInsightStore() *fakeInsightStore {
	return &fakeInsightStore{byTitle: map[string]*memory.MetaInsight{}}
}

func (f *fakeInsightStore) UpsertInsight(_ context.Context, ins *memory.MetaInsight) (*memory.MetaInsight, bool, error) {
	f.upserts = append(f.upserts, *ins)
	if existing, ok := f.byTitle[ins.Title]; ok {
		existing.EvidenceStrength = ins.EvidenceStrength
		return existing, false, nil
	}
	f.nextID++
	stored := *ins
	stored.ID = f.nextID
	f.byTitle[ins.Title] = &stored
	return &stored, true, nil
}

func (f *fakeInsightStore) CountByType(_ context.Context) (map[memory.InsightType]int, error) {
	return f.counts, nil
}

type fakeOutcomeStore struct {
	insertedOutcomes []memory.PatternOutcome
	listResult       []memory.OutcomeWithPattern
	correlations     []memory.PatternCorrelation
	insertErr        error
}

func (f *fakeOutcomeStore) InsertOutcome(_ context.Context, o *memory.PatternOutcome) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.insertedOutcomes = append(f.insertedOutcomes, *o)
	return int64(len(f.insertedOutcomes)), nil
}

func (f *fakeOutcomeStore) ListOutcomesSince(_ context.Context, _ *int64, _ time.Time) ([]memory.OutcomeWithPattern, error) {
	return f.listResult, nil
}

func (f *fakeOutcomeStore) UpsertCorrelation(_ context.Context, c *memory.PatternCorrelation) error {
	f.correlations = append(f.correlations, *c)
	return nil
}

type taskResolution struct {
	id      int64
	message string
}

type fakeQueue struct {
	enqueued    []memory.LearningTask
	enqueueErr  error
	claimResult []memory.LearningTask
	completed   []taskResolution
	failed      []taskResolution
	permanent   []taskResolution
	counts      map[memory.TaskStatus]int
	activity    map[memory.TaskType]memory.TaskTypeActivity
	ratesDone   int
	ratesFailed int
	sweptStuck  int64
	removedOld  int64
}

func (f *fakeQueue) Enqueue(_ context.Context, task *memory.LearningTask) (int64, error) {
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	f.enqueued = append(f.enqueued, *task)
	return int64(len(f.enqueued)), nil
}

func (f *fakeQueue) ClaimBatch(_ context.Context, maxTasks int) ([]memory.LearningTask, error) {
	if maxTasks < len(f.claimResult) {
		return f.claimResult[:maxTasks], nil
	}
	return f.claimResult, nil
}

func (f *fakeQueue) CompleteTask(_ context.Context, id int64, _ time.Duration, summary string) error {
	f.completed = append(f.completed, taskResolution{id: id, message: summary})
	return nil
}

func (f *fakeQueue) FailTask(_ context.Context, id int64, taskErr string) (*memory.LearningTask, error) {
	f.failed = append(f.failed, taskResolution{id: id, message: taskErr})
	return &memory.LearningTask{ID: id, Status: memory.StatusRetry}, nil
}

func (f *fakeQueue) FailTaskPermanent(_ context.Context, id int64, taskErr string) error {
	f.permanent = append(f.permanent, taskResolution{id: id, message: taskErr})
	return nil
}

func (f *fakeQueue) SweepStuck(_ context.Context, _, _ time.Duration) (int64, error) {
	return f.sweptStuck, nil
}

func (f *fakeQueue) DeleteCompletedBefore(_ context.Context, _ time.Duration) (int64, error) {
	return f.removedOld, nil
}

func (f *fakeQueue) CountsByStatus(_ context.Context) (map[memory.TaskStatus]int, error) {
	return f.counts, nil
}

func (f *fakeQueue) ActivityByType(_ context.Context) (map[memory.TaskType]memory.TaskTypeActivity, error) {
	if f.activity == nil {
		return map[memory.TaskType]memory.TaskTypeActivity{}, nil
	}
	return f.activity, nil
}

func (f *fakeQueue) RatesSince(_ context.Context, _ time.Duration) (int, int, error) {
	return f.ratesDone, f.ratesFailed, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	if f.vec != nil {
		return f.vec, nil
	}
	return make([]float32, 768), nil
}

func (f *fakeEmbedder) ResolveModel(_ string) (embedding.ModelConfig, error) {
	return embedding.ModelConfig{Name: "nomic-embed-text", Provider: "ollama", Dimensions: 768, Available: true, Default: true}, nil
}

type fakeAnalyzer struct {
	result  *llm.AnalysisResult
	err     error
	prompts []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, prompt, _ string, _ llm.AnalysisType) (*llm.AnalysisResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &llm.AnalysisResult{Content: "", Model: "test-model"}, nil
}
