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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/memory"
)

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		name              string
		completed, failed int
		want              string
	}{
		{"idle queue", 0, 0, HealthHealthy},
		{"low failure rate", 97, 3, HealthHealthy},
		{"five percent is degraded", 95, 5, HealthDegraded},
		{"ten percent is degraded", 90, 10, HealthDegraded},
		{"fifteen percent is unhealthy", 85, 15, HealthUnhealthy},
		{"everything failing", 0, 20, HealthUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyHealth(tt.completed, tt.failed))
		})
	}
}

func TestStatusSnapshot(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	f.queue.counts = map[memory.TaskStatus]int{
		memory.StatusPending: 3,
		memory.StatusFailed:  1,
	}
	f.queue.ratesDone = 97
	f.queue.ratesFailed = 3
	f.memories.total = 200
	f.memories.analyzed = 150
	f.patterns.aggregates = &memory.PatternAggregates{
		PatternCount: 42, AvgConfidence: 0.71, UniqueProjects: 5,
	}
	f.insights.counts = map[memory.InsightType]int{memory.InsightBestPractice: 4}

	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, HealthHealthy, status.Health)
	assert.Equal(t, 3, status.Queue[memory.StatusPending])
	assert.Equal(t, 42, status.Patterns.PatternCount)
	assert.Equal(t, 4, status.Insights[memory.InsightBestPractice])
	assert.Equal(t, 200, status.Coverage.TotalMemories)
	assert.Equal(t, 150, status.Coverage.AnalyzedMemories)
	assert.InDelta(t, 75.0, status.Coverage.Percent, 1e-9)
	assert.Equal(t, 97, status.CompletedLastDay)
	assert.Equal(t, 3, status.FailedLastDay)
	assert.WithinDuration(t, time.Now(), status.GeneratedAt, time.Minute)
}

func TestStatusCoverageWithoutMemories(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())

	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.Coverage.Percent, "empty corpus must not divide by zero")
}

func TestStatusProjectsNextRunFromSchedule(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())

	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)

	for _, taskType := range memory.TaskTypes {
		activity := status.Tasks[taskType]
		require.NotNil(t, activity.NextScheduled,
			"%s has nothing queued, so the next run comes from its cron expression", taskType)
		assert.True(t, activity.NextScheduled.After(time.Now().Add(-time.Minute)))
	}
}

func TestStatusKeepsQueuedNextRun(t *testing.T) {
	f := newPipelineFixture(t, DefaultConfig())
	at := time.Now().Add(30 * time.Minute)
	f.queue.activity = map[memory.TaskType]memory.TaskTypeActivity{
		memory.TaskPatternDetection: {NextScheduled: &at, PendingCount: 2},
	}

	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)

	got := status.Tasks[memory.TaskPatternDetection]
	require.NotNil(t, got.NextScheduled)
	assert.True(t, at.Equal(*got.NextScheduled), "a queued task's schedule wins over the cron projection")
	assert.Equal(t, 2, got.PendingCount)
}

func TestStatusWithSchedulingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduled.Enabled = false
	f := newPipelineFixture(t, cfg)

	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)

	for _, taskType := range memory.TaskTypes {
		assert.Nil(t, status.Tasks[taskType].NextScheduled)
	}
}
