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
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/memory"
)

// Health levels reported by Status, keyed off the failure rate of the last
// 24 hours of tasks.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

const healthWindow = 24 * time.Hour

// Coverage summarizes how much of the memory corpus pattern detection has
// visited.
type Coverage struct {
	TotalMemories    int     `json:"totalMemories"`
	AnalyzedMemories int     `json:"analyzedMemories"`
	Percent          float64 `json:"percent"`
}

// Status is a point-in-time snapshot of the learning engine.
type Status struct {
	GeneratedAt      time.Time                                   `json:"generatedAt"`
	Health           string                                      `json:"health"`
	Queue            map[memory.TaskStatus]int                   `json:"queue"`
	Tasks            map[memory.TaskType]memory.TaskTypeActivity `json:"tasks"`
	Patterns         *memory.PatternAggregates                   `json:"patterns"`
	Insights         map[memory.InsightType]int                  `json:"insights"`
	Coverage         Coverage                                    `json:"coverage"`
	CompletedLastDay int                                         `json:"completedLastDay"`
	FailedLastDay    int                                         `json:"failedLastDay"`
}

// Status assembles the engine snapshot: queue depth by state, per-type task
// activity, pattern and insight aggregates, analysis coverage, and a health
// classification from the last day's failure rate.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	ctx, span := p.tracer.StartSpan(ctx, "learning.status")
	defer p.tracer.EndSpan(span)

	queue, err := p.queue.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := p.queue.ActivityByType(ctx)
	if err != nil {
		return nil, err
	}
	p.fillNextScheduled(tasks)

	patterns, err := p.patterns.Aggregates(ctx)
	if err != nil {
		return nil, err
	}
	insights, err := p.insights.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	total, analyzed, err := p.memories.MemoryStats(ctx)
	if err != nil {
		return nil, err
	}
	completed, failed, err := p.queue.RatesSince(ctx, healthWindow)
	if err != nil {
		return nil, err
	}

	coverage := Coverage{TotalMemories: total, AnalyzedMemories: analyzed}
	if total > 0 {
		coverage.Percent = float64(analyzed) / float64(total) * 100
	}

	return &Status{
		GeneratedAt:      time.Now(),
		Health:           classifyHealth(completed, failed),
		Queue:            queue,
		Tasks:            tasks,
		Patterns:         patterns,
		Insights:         insights,
		Coverage:         coverage,
		CompletedLastDay: completed,
		FailedLastDay:    failed,
	}, nil
}

// fillNextScheduled projects the next run from the configured cron interval
// for task types with nothing pending in the queue.
func (p *Pipeline) fillNextScheduled(tasks map[memory.TaskType]memory.TaskTypeActivity) {
	if !p.cfg.Scheduled.Enabled {
		return
	}
	now := time.Now()
	for _, taskType := range memory.TaskTypes {
		activity := tasks[taskType]
		if activity.NextScheduled != nil {
			continue
		}
		expr, ok := p.cfg.Scheduled.Intervals[taskType]
		if !ok {
			continue
		}
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			p.logger.Warn("invalid schedule expression",
				zap.String("task_type", string(taskType)), zap.String("expr", expr))
			continue
		}
		next := schedule.Next(now)
		activity.NextScheduled = &next
		tasks[taskType] = activity
	}
}

// classifyHealth buckets the day's failure rate. An idle queue is healthy.
func classifyHealth(completed, failed int) string {
	total := completed + failed
	if total == 0 {
		return HealthHealthy
	}
	rate := float64(failed) / float64(total)
	switch {
	case rate < 0.05:
		return HealthHealthy
	case rate < 0.15:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
