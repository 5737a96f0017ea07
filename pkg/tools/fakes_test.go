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
package tools

import (
	"context"

	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/learning"
	"github.com/teradata-labs/spool/pkg/memory"
)

// In-memory fakes for the store slices the tools consume. Each fake records
// the arguments it saw so tests can assert on passthrough without a database.

type sessionUpsert struct {
	projectID   int64
	name        string
	sessionType memory.SessionType
}

type fakeStore struct {
	projects map[string]*memory.Project
	nextID   int64

	projectList []memory.Project
	sessionList []memory.Session
	searchHits  []memory.SearchResult

	upsertedSessions []sessionUpsert
	inserted         []memory.Memory
	searchParams     []memory.SearchParams
	listedStats      []bool
	listedActiveOnly []bool

	insertErr error
	searchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: map[string]*memory.Project{}}
}

func (f *fakeStore) addProject(id int64, name string) *memory.Project {
	p := &memory.Project{ID: id, Name: name}
	f.projects[name] = p
	return p
}

func (f *fakeStore) UpsertProject(_ context.Context, name, description string) (*memory.Project, error) {
	if p, ok := f.projects[name]; ok {
		return p, nil
	}
	f.nextID++
	p := &memory.Project{ID: f.nextID, Name: name, Description: description}
	f.projects[name] = p
	return p, nil
}

func (f *fakeStore) GetProjectByName(_ context.Context, name string) (*memory.Project, error) {
	if p, ok := f.projects[name]; ok {
		return p, nil
	}
	return nil, memory.NewNotFound("project", name)
}

func (f *fakeStore) ListProjects(_ context.Context, includeStats bool) ([]memory.Project, error) {
	f.listedStats = append(f.listedStats, includeStats)
	return f.projectList, nil
}

func (f *fakeStore) UpsertSession(_ context.Context, projectID int64, name string, sessionType memory.SessionType) (*memory.Session, error) {
	f.upsertedSessions = append(f.upsertedSessions, sessionUpsert{projectID: projectID, name: name, sessionType: sessionType})
	return &memory.Session{ID: int64(len(f.upsertedSessions)) + 100, ProjectID: projectID, Name: name, SessionType: sessionType, IsActive: true}, nil
}

func (f *fakeStore) ListSessions(_ context.Context, projectID int64, activeOnly bool) ([]memory.Session, error) {
	f.listedActiveOnly = append(f.listedActiveOnly, activeOnly)
	return f.sessionList, nil
}

func (f *fakeStore) InsertMemory(_ context.Context, m *memory.Memory) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, *m)
	return int64(len(f.inserted)), nil
}

func (f *fakeStore) SearchMemories(_ context.Context, params memory.SearchParams) ([]memory.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.searchParams = append(f.searchParams, params)
	return f.searchHits, nil
}

type fakePatterns struct {
	bySignature map[string]*memory.CodingPattern
	listResult  []memory.CodingPattern
	filters     []memory.PatternFilter
}

func newFakePatterns() *fakePatterns {
	return &fakePatterns{bySignature: map[string]*memory.CodingPattern{}}
}

func (f *fakePatterns) GetBySignature(_ context.Context, signature string) (*memory.CodingPattern, error) {
	if p, ok := f.bySignature[signature]; ok {
		return p, nil
	}
	return nil, memory.NewNotFound("pattern", signature)
}

func (f *fakePatterns) ListPatterns(_ context.Context, filter memory.PatternFilter) ([]memory.CodingPattern, error) {
	f.filters = append(f.filters, filter)
	return f.listResult, nil
}

type fakeInsights struct {
	listResult []memory.MetaInsight
	filters    []memory.InsightFilter
}

func (f *fakeInsights) ListInsights(_ context.Context, filter memory.InsightFilter) ([]memory.MetaInsight, error) {
	f.filters = append(f.filters, filter)
	return f.listResult, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
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

type notified struct {
	memoryID  int64
	projectID int64
}

type fakeNotifier struct {
	calls []notified
}

func (f *fakeNotifier) OnMemoryAdded(_ context.Context, memoryID, projectID int64) {
	f.calls = append(f.calls, notified{memoryID: memoryID, projectID: projectID})
}

type triggeredEvent struct {
	projectID int64
	eventType string
	data      map[string]interface{}
}

type fakeRecorder struct {
	outcomes     []memory.PatternOutcome
	triggers     []triggeredEvent
	triggerCount int
	recordErr    error
}

func (f *fakeRecorder) RecordPatternOutcome(_ context.Context, o *memory.PatternOutcome) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.outcomes = append(f.outcomes, *o)
	return int64(len(f.outcomes)), nil
}

func (f *fakeRecorder) TriggerOutcomeAnalysis(_ context.Context, projectID int64, eventType string, data map[string]interface{}) (int, error) {
	f.triggers = append(f.triggers, triggeredEvent{projectID: projectID, eventType: eventType, data: data})
	return f.triggerCount, nil
}

type fakeStatusProvider struct {
	status *learning.Status
	err    error
}

func (f *fakeStatusProvider) Status(_ context.Context) (*learning.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

// stubTool is a minimal tool for registry dispatch tests.
type stubTool struct {
	name     string
	schema   *JSONSchema
	result   *Result
	err      error
	received map[string]interface{}
}

func (s *stubTool) Name() string             { return s.name }
func (s *stubTool) Description() string      { return "stub" }
func (s *stubTool) InputSchema() *JSONSchema { return s.schema }
func (s *stubTool) Execute(_ context.Context, params map[string]interface{}) (*Result, error) {
	s.received = params
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}
