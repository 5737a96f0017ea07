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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

const (
	// taskRetention is how long completed tasks stay in the queue before
	// cleanup removes them.
	taskRetention = 7 * 24 * time.Hour
	// stuckAfter marks processing tasks as abandoned; stuckRetryDelay is
	// when their retry becomes eligible.
	stuckAfter      = time.Hour
	stuckRetryDelay = 5 * time.Minute
)

// scheduledSeeds staggers the initial scheduled task per type so a fresh
// deployment does not run everything at once.
var scheduledSeeds = []struct {
	taskType memory.TaskType
	offset   time.Duration
	priority int
}{
	{memory.TaskPatternDetection, 0, 3},
	{memory.TaskInsightGeneration, time.Hour, 4},
	{memory.TaskPreferenceAnalysis, 2 * time.Hour, 5},
	{memory.TaskEvolutionTracking, 3 * time.Hour, 6},
}

// Deps carries everything a Pipeline needs. Analyzer is optional; without
// it the engine stays fully rule-based.
type Deps struct {
	Memories MemoryStore
	Patterns PatternStore
	Insights InsightStore
	Outcomes OutcomeStore
	Queue    TaskQueue
	Embedder Embedder
	Analyzer Analyzer
	Logger   *zap.Logger
	Tracer   observability.Tracer
}

type bufferedMemory struct {
	memoryID  int64
	projectID int64
}

// Pipeline ties the learning engine together: it buffers memory activity
// into queue tasks, seeds the scheduled tasks, and drains the queue through
// the detector, synthesizer, and correlator.
type Pipeline struct {
	cfg         Config
	queue       TaskQueue
	memories    MemoryStore
	patterns    PatternStore
	insights    InsightStore
	detector    *Detector
	synthesizer *Synthesizer
	correlator  *Correlator
	logger      *zap.Logger
	tracer      observability.Tracer

	mu       sync.Mutex
	buffer   []bufferedMemory
	draining atomic.Bool
}

// NewPipeline builds the pipeline and its sub-components.
func NewPipeline(cfg Config, deps Deps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	detector, err := NewDetector(cfg, deps.Memories, deps.Patterns, deps.Embedder, deps.Analyzer, logger, tracer)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		queue:    deps.Queue,
		memories: deps.Memories,
		patterns: deps.Patterns,
		insights: deps.Insights,
		detector: detector,
		synthesizer: NewSynthesizer(cfg.Thresholds, deps.Memories, deps.Patterns, deps.Insights,
			deps.Embedder, deps.Analyzer, logger, tracer),
		correlator: NewCorrelator(deps.Outcomes, deps.Patterns, deps.Analyzer, logger, tracer),
		logger:     logger,
		tracer:     tracer,
	}, nil
}

// Correlator exposes the outcome correlator for the tool surface.
func (p *Pipeline) Correlator() *Correlator { return p.correlator }

// OnMemoryAdded buffers a stored memory and, once the buffer reaches the
// trigger threshold, drains a batch into pattern-detection tasks. Errors are
// logged, never returned: a learning outage must not fail memory writes.
func (p *Pipeline) OnMemoryAdded(ctx context.Context, memoryID, projectID int64) {
	if !p.cfg.RealTime.Enabled {
		return
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, bufferedMemory{memoryID: memoryID, projectID: projectID})
	ready := len(p.buffer) >= p.cfg.RealTime.TriggerThreshold
	p.mu.Unlock()

	// Single drainer at a time; concurrent callers leave their entry
	// buffered for the next drain.
	if !ready || !p.draining.CompareAndSwap(false, true) {
		return
	}
	defer p.draining.Store(false)

	p.mu.Lock()
	n := len(p.buffer)
	if n > p.cfg.RealTime.BatchSize {
		n = p.cfg.RealTime.BatchSize
	}
	drained := make([]bufferedMemory, n)
	copy(drained, p.buffer[:n])
	rest := copy(p.buffer, p.buffer[n:])
	p.buffer = p.buffer[:rest]
	p.mu.Unlock()

	for _, b := range drained {
		_, err := p.queue.Enqueue(ctx, &memory.LearningTask{
			TaskType: memory.TaskPatternDetection,
			Priority: 3,
			Payload: map[string]interface{}{
				"memoryId":  b.memoryID,
				"projectId": b.projectID,
			},
		})
		if err != nil {
			p.logger.Warn("failed to enqueue pattern detection",
				zap.Int64("memory_id", b.memoryID), zap.Error(err))
		}
	}

	// A full batch signals an activity spike worth an insight pass.
	if len(drained) == p.cfg.RealTime.BatchSize {
		projectIDs := make([]interface{}, 0, len(drained))
		seen := map[int64]bool{}
		for _, b := range drained {
			if !seen[b.projectID] {
				seen[b.projectID] = true
				projectIDs = append(projectIDs, b.projectID)
			}
		}
		_, err := p.queue.Enqueue(ctx, &memory.LearningTask{
			TaskType: memory.TaskInsightGeneration,
			Priority: 4,
			Payload: map[string]interface{}{
				"triggerType": "activity_spike",
				"memoryCount": len(drained),
				"projectIds":  projectIDs,
			},
		})
		if err != nil {
			p.logger.Warn("failed to enqueue insight generation", zap.Error(err))
		}
	}
}

// InitScheduled seeds one task per scheduled type with staggered start
// times, then runs queue maintenance: dropping completed tasks past
// retention and resetting tasks stuck in processing.
func (p *Pipeline) InitScheduled(ctx context.Context) error {
	ctx, span := p.tracer.StartSpan(ctx, "learning.init_scheduled")
	defer p.tracer.EndSpan(span)

	if p.cfg.Scheduled.Enabled {
		now := time.Now()
		for _, seed := range scheduledSeeds {
			_, err := p.queue.Enqueue(ctx, &memory.LearningTask{
				TaskType:     seed.taskType,
				Priority:     seed.priority,
				Payload:      map[string]interface{}{"triggerType": "scheduled"},
				ScheduledFor: now.Add(seed.offset),
			})
			if err != nil {
				return err
			}
		}
	}

	removed, err := p.queue.DeleteCompletedBefore(ctx, taskRetention)
	if err != nil {
		return err
	}
	swept, err := p.queue.SweepStuck(ctx, stuckAfter, stuckRetryDelay)
	if err != nil {
		return err
	}
	if removed > 0 || swept > 0 {
		p.logger.Info("queue maintenance",
			zap.Int64("removed_completed", removed), zap.Int64("reset_stuck", swept))
	}
	return nil
}

// ProcessQueue claims up to maxTasks due tasks and runs them sequentially.
// Returns the number of tasks claimed. Individual task failures are recorded
// on the task, not returned.
func (p *Pipeline) ProcessQueue(ctx context.Context, maxTasks int) (int, error) {
	ctx, span := p.tracer.StartSpan(ctx, "learning.process_queue")
	defer p.tracer.EndSpan(span)

	tasks, err := p.queue.ClaimBatch(ctx, maxTasks)
	if err != nil {
		return 0, err
	}

	for i := range tasks {
		task := &tasks[i]
		start := time.Now()
		summary, err := p.dispatch(ctx, task)
		if err != nil {
			p.failTask(ctx, task, err)
			continue
		}
		if err := p.queue.CompleteTask(ctx, task.ID, time.Since(start), summary); err != nil {
			p.logger.Warn("failed to mark task completed",
				zap.Int64("task_id", task.ID), zap.Error(err))
		}
	}
	span.SetAttribute("tasks", len(tasks))
	return len(tasks), nil
}

func (p *Pipeline) dispatch(ctx context.Context, task *memory.LearningTask) (string, error) {
	switch task.TaskType {
	case memory.TaskPatternDetection:
		return p.detector.HandleTask(ctx, task.Payload)
	case memory.TaskInsightGeneration:
		n, err := p.synthesizer.GenerateAll(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d insights written", n), nil
	case memory.TaskPreferenceAnalysis:
		n, err := p.synthesizer.GeneratePreferences(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d preference insights written", n), nil
	case memory.TaskEvolutionTracking:
		n, err := p.synthesizer.GenerateEvolution(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d evolution insights written", n), nil
	default:
		return "", memory.NewValidationError(fmt.Sprintf("unknown task type %q", task.TaskType))
	}
}

// failTask routes non-retryable errors to a permanent failure so the queue
// does not reschedule work that can never succeed.
func (p *Pipeline) failTask(ctx context.Context, task *memory.LearningTask, taskErr error) {
	p.logger.Warn("learning task failed",
		zap.Int64("task_id", task.ID),
		zap.String("task_type", string(task.TaskType)),
		zap.Error(taskErr))

	if e, ok := memory.AsError(taskErr); ok && !e.Retryable {
		if err := p.queue.FailTaskPermanent(ctx, task.ID, taskErr.Error()); err != nil {
			p.logger.Warn("failed to record permanent task failure",
				zap.Int64("task_id", task.ID), zap.Error(err))
		}
		return
	}
	if _, err := p.queue.FailTask(ctx, task.ID, taskErr.Error()); err != nil {
		p.logger.Warn("failed to record task failure",
			zap.Int64("task_id", task.ID), zap.Error(err))
	}
}
