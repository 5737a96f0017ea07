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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/memory"
)

type pipelineFixture struct {
	memories *fakeMemoryStore
	patterns *fakePatternStore
	insights *fakeInsightStore
	outcomes *fakeOutcomeStore
	queue    *fakeQueue
	embedder *fakeEmbedder
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, cfg Config) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		memories: newFakeMemoryStore(),
		patterns: newFakePatternStore(),
		insights: newFakeInsightStore(),
		outcomes: &fakeOutcomeStore{},
		queue:    &fakeQueue{},
		embedder: &fakeEmbedder{},
	}
	p, err := NewPipeline(cfg, Deps{
		Memories: f.memories,
		Patterns: f.patterns,
		Insights: f.insights,
		Outcomes: f.outcomes,
		Queue:    f.queue,
		Embedder: f.embedder,
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func smallRealTimeConfig() Config {
	cfg := DefaultConfig()
	cfg.RealTime.TriggerThreshold = 2
	cfg.RealTime.BatchSize = 3
	return cfg
}

func TestOnMemoryAddedBuffersBelowThreshold(t *testing.T) {
	f := newPipelineFixture(t, smallRealTimeConfig())

	f.pipeline.OnMemoryAdded(context.Background(), 1, 10)
	assert.Empty(t, f.queue.enqueued, "one memory stays buffered")
}

func TestOnMemoryAddedDrainsAtThreshold(t *testing.T) {
	f := newPipelineFixture(t, smallRealTimeConfig())

	f.pipeline.OnMemoryAdded(context.Background(), 1, 10)
	f.pipeline.OnMemoryAdded(context.Background(), 2, 10)

	require.Len(t, f.queue.enqueued, 2)
	for i, task := range f.queue.enqueued {
		assert.Equal(t, memory.TaskPatternDetection, task.TaskType)
		assert.Equal(t, 3, task.Priority)
		assert.EqualValues(t, i+1, task.Payload["memoryId"])
		assert.EqualValues(t, 10, task.Payload["projectId"])
	}
}

func TestOnMemoryAddedFullBatchQueuesInsightPass(t *testing.T) {
	f := newPipelineFixture(t, smallRealTimeConfig())

	// Four buffered memories drain as a full batch of three plus a
	// leftover; the full batch signals an activity spike.
	f.pipeline.OnMemoryAdded(context.Background(), 1, 10)
	f.pipeline.mu.Lock()
	f.pipeline.buffer = append(f.pipeline.buffer,
		bufferedMemory{memoryID: 2, projectID: 10},
		bufferedMemory{memoryID: 3, projectID: 11})
	f.pipeline.mu.Unlock()
	f.pipeline.OnMemoryAdded(context.Background(), 4, 10)

	var detect, insight []memory.LearningTask
	for _, task := range f.queue.enqueued {
		switch task.TaskType {
		case memory.TaskPatternDetection:
			detect = append(detect, task)
		case memory.TaskInsightGeneration:
			insight = append(insight, task)
		}
	}
	assert.Len(t, detect, 3, "drain stops at the batch size")
	require.Len(t, insight, 1)
	assert.Equal(t, 4, insight[0].Priority)
	assert.Equal(t, "activity_spike", insight[0].Payload["triggerType"])
	assert.EqualValues(t, 3, insight[0].Payload["memoryCount"])
	assert.ElementsMatch(t, []interface{}{int64(10), int64(11)}, insight[0].Payload["projectIds"])

	// The leftover memory stays buffered for the next drain.
	f.pipeline.mu.Lock()
	remaining := len(f.pipeline.buffer)
	f.pipeline.mu.Unlock()
	assert.Equal(t, 1, remaining)
}

func TestOnMemoryAddedDisabled(t *testing.T) {
	cfg := smallRealTimeConfig()
	cfg.RealTime.Enabled = false
	f := newPipelineFixture(t, cfg)

	for i := int64(1); i <= 5; i++ {
		f.pipeline.OnMemoryAdded(context.Background(), i, 10)
	}
	assert.Empty(t, f.queue.enqueued)
}

func TestOnMemoryAddedSwallowsEnqueueErrors(t *testing.T) {
	f := newPipelineFixture(t, smallRealTimeConfig())
	f.queue.enqueueErr = errors.New("queue down")

	// Must not panic or surface the error to the memory write path.
	f.pipeline.OnMemoryAdded(context.Background(), 1, 10)
	f.pipeline.OnMemoryAdded(context.Background(), 2, 10)
	assert.Empty(t, f.queue.enqueued)
}

func TestInitScheduledSeedsStaggeredTasks(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())

	require.NoError(t, f.pipeline.InitScheduled(context.Background()))
	require.Len(t, f.queue.enqueued, 4)

	wantPriorities := map[memory.TaskType]int{
		memory.TaskPatternDetection:   3,
		memory.TaskInsightGeneration:  4,
		memory.TaskPreferenceAnalysis: 5,
		memory.TaskEvolutionTracking:  6,
	}
	seen := map[memory.TaskType]memory.LearningTask{}
	for _, task := range f.queue.enqueued {
		seen[task.TaskType] = task
	}
	for taskType, priority := range wantPriorities {
		task, ok := seen[taskType]
		require.True(t, ok, "missing seed for %s", taskType)
		assert.Equal(t, priority, task.Priority)
	}

	// Offsets stagger the initial runs an hour apart.
	patternAt := seen[memory.TaskPatternDetection].ScheduledFor
	evolutionAt := seen[memory.TaskEvolutionTracking].ScheduledFor
	assert.InDelta(t, 3*60*60, evolutionAt.Sub(patternAt).Seconds(), 5)
}

func TestInitScheduledDisabledStillRunsMaintenance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduled.Enabled = false
	f := newPipelineFixture(t, cfg)
	f.queue.removedOld = 12
	f.queue.sweptStuck = 2

	require.NoError(t, f.pipeline.InitScheduled(context.Background()))
	assert.Empty(t, f.queue.enqueued, "no seeds when scheduling is off")
}

func TestProcessQueueCompletesPatternDetection(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.memories.addProject(10, "phoenix")
	f.memories.addMemory(memory.Memory{
		ID: 1, ProjectID: 10, MemoryType: memory.TypeCode,
		Content: "Wrapped the handler in a try catch block.",
	})
	f.queue.claimResult = []memory.LearningTask{
		{ID: 100, TaskType: memory.TaskPatternDetection, Payload: map[string]interface{}{"memoryId": float64(1)}},
	}

	n, err := f.pipeline.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.queue.completed, 1)
	assert.Equal(t, int64(100), f.queue.completed[0].id)
	assert.Contains(t, f.queue.completed[0].message, "1 patterns created")
	assert.Empty(t, f.queue.failed)
	require.Len(t, f.patterns.recorded, 1)
	assert.Equal(t, "try_catch_pattern", f.patterns.recorded[0].pattern.Signature)
}

func TestProcessQueueCompletesVanishedMemory(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.queue.claimResult = []memory.LearningTask{
		{ID: 101, TaskType: memory.TaskPatternDetection, Payload: map[string]interface{}{"memoryId": float64(404)}},
	}

	_, err := f.pipeline.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, f.queue.completed, 1, "a deleted memory is not a task failure")
	assert.Contains(t, f.queue.completed[0].message, "no longer exists")
}

func TestProcessQueueRetriesTransientFailures(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.memories.addProject(10, "phoenix")
	f.memories.addMemory(memory.Memory{
		ID: 1, ProjectID: 10, MemoryType: memory.TypeCode,
		Content: "Wrapped the handler in a try catch block.",
	})
	f.embedder.err = errors.New("embedding provider unreachable")
	f.queue.claimResult = []memory.LearningTask{
		{ID: 102, TaskType: memory.TaskPatternDetection, Payload: map[string]interface{}{"memoryId": float64(1)}},
	}

	_, err := f.pipeline.ProcessQueue(context.Background(), 10)
	require.NoError(t, err, "task failures are recorded, not returned")

	require.Len(t, f.queue.failed, 1)
	assert.Equal(t, int64(102), f.queue.failed[0].id)
	assert.Empty(t, f.queue.permanent)
	assert.Empty(t, f.queue.completed)
}

func TestProcessQueueFailsUnknownTypePermanently(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.queue.claimResult = []memory.LearningTask{
		{ID: 103, TaskType: "astrology", Payload: map[string]interface{}{}},
	}

	_, err := f.pipeline.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, f.queue.permanent, 1, "an unknown task type can never succeed")
	assert.Equal(t, int64(103), f.queue.permanent[0].id)
	assert.Contains(t, f.queue.permanent[0].message, "astrology")
	assert.Empty(t, f.queue.failed)
}

func TestProcessQueueRunsInsightGeneration(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.memories.typeCounts = map[memory.MemoryType]int{memory.TypeCode: 10}
	f.queue.claimResult = []memory.LearningTask{
		{ID: 104, TaskType: memory.TaskInsightGeneration, Payload: map[string]interface{}{}},
	}

	_, err := f.pipeline.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, f.queue.completed, 1)
	assert.Equal(t, "1 insights written", f.queue.completed[0].message)
	assert.Len(t, f.insights.upserts, 1)
}
