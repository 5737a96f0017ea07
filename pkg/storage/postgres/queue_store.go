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
package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// QueueStore drives the durable learning task queue. Workers cooperate
// exclusively through FOR UPDATE SKIP LOCKED claims; no application-level
// leases exist. State transitions:
//
//	pending/retry --claim--> processing --> completed
//	                                    \-> retry  (backoff 2^retry_count min)
//	                                    \-> failed (retries exhausted)
type QueueStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewQueueStore creates a new PostgreSQL-backed queue store.
func NewQueueStore(pool *pgxpool.Pool, tracer observability.Tracer) *QueueStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &QueueStore{pool: pool, tracer: tracer}
}

const taskColumns = `id, task_type, task_priority, task_payload, status,
	scheduled_for, started_at, completed_at, retry_count, max_retries,
	COALESCE(error_message, ''), COALESCE(processing_duration_ms, 0),
	COALESCE(result_summary, ''), created_at`

func scanTask(row pgx.Row) (*memory.LearningTask, error) {
	var (
		t        memory.LearningTask
		taskType string
		status   string
	)
	err := row.Scan(&t.ID, &taskType, &t.Priority, &t.Payload, &status,
		&t.ScheduledFor, &t.StartedAt, &t.CompletedAt, &t.RetryCount,
		&t.MaxRetries, &t.ErrorMessage, &t.ProcessingDurationMS,
		&t.ResultSummary, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.TaskType = memory.TaskType(taskType)
	t.Status = memory.TaskStatus(status)
	return &t, nil
}

// Enqueue creates a pending task. A zero ScheduledFor means "due now" and a
// zero MaxRetries takes the default.
func (s *QueueStore) Enqueue(ctx context.Context, task *memory.LearningTask) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.enqueue")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrTaskType, string(task.TaskType))
	span.SetAttribute("priority", task.Priority)

	payload := task.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if task.MaxRetries <= 0 {
		task.MaxRetries = memory.DefaultMaxRetries
	}
	if task.ScheduledFor.IsZero() {
		task.ScheduledFor = time.Now()
	}
	task.Status = memory.StatusPending

	err := s.pool.QueryRow(ctx, `
		INSERT INTO learning_queue (task_type, task_priority, task_payload,
		                            status, scheduled_for, max_retries)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		RETURNING id, created_at`,
		string(task.TaskType), task.Priority, payload, task.ScheduledFor,
		task.MaxRetries,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to enqueue task", err)
	}
	return task.ID, nil
}

// ClaimBatch atomically claims up to maxTasks due tasks in strict
// (priority ASC, scheduled_for ASC) order, marking them processing. Rows
// locked by a concurrent worker are skipped, so no task is claimed twice.
func (s *QueueStore) ClaimBatch(ctx context.Context, maxTasks int) ([]memory.LearningTask, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.claim_batch")
	defer s.tracer.EndSpan(span)

	if maxTasks <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		WITH due AS (
			SELECT id
			FROM learning_queue
			WHERE status IN ('pending', 'retry') AND scheduled_for <= NOW()
			ORDER BY task_priority ASC, scheduled_for ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE learning_queue q
		SET status = 'processing', started_at = NOW()
		FROM due
		WHERE q.id = due.id
		RETURNING q.id, q.task_type, q.task_priority, q.task_payload,
			q.status, q.scheduled_for, q.started_at, q.completed_at,
			q.retry_count, q.max_retries, COALESCE(q.error_message, ''),
			COALESCE(q.processing_duration_ms, 0),
			COALESCE(q.result_summary, ''), q.created_at`,
		maxTasks)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to claim tasks", err)
	}
	defer rows.Close()

	var claimed []memory.LearningTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan claimed task", err)
		}
		claimed = append(claimed, *t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to claim tasks", err)
	}

	// UPDATE ... RETURNING does not preserve the claim order.
	sort.Slice(claimed, func(i, j int) bool {
		if claimed[i].Priority != claimed[j].Priority {
			return claimed[i].Priority < claimed[j].Priority
		}
		return claimed[i].ScheduledFor.Before(claimed[j].ScheduledFor)
	})
	span.SetAttribute("claimed", len(claimed))
	return claimed, nil
}

// CompleteTask marks a task completed with its duration and result summary.
func (s *QueueStore) CompleteTask(ctx context.Context, id int64, duration time.Duration, summary string) error {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.complete_task")
	defer s.tracer.EndSpan(span)

	_, err := s.pool.Exec(ctx, `
		UPDATE learning_queue
		SET status = 'completed', completed_at = NOW(),
		    processing_duration_ms = $2, result_summary = $3
		WHERE id = $1`,
		id, duration.Milliseconds(), summary)
	if err != nil {
		span.RecordError(err)
		return memory.NewStoreError("failed to complete task", err)
	}
	return nil
}

// FailTask applies the retry policy to a failed attempt. While the
// incremented retry count stays within max_retries the task is rescheduled
// with exponential backoff (2^retry_count minutes); afterwards it is marked
// failed and completed_at is set. The updated row is returned.
func (s *QueueStore) FailTask(ctx context.Context, id int64, taskErr string) (*memory.LearningTask, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.fail_task")
	defer s.tracer.EndSpan(span)

	t, err := scanTask(s.pool.QueryRow(ctx, `
		UPDATE learning_queue SET
			retry_count = CASE WHEN retry_count + 1 <= max_retries
				THEN retry_count + 1 ELSE retry_count END,
			status = CASE WHEN retry_count + 1 <= max_retries
				THEN 'retry' ELSE 'failed' END,
			scheduled_for = CASE WHEN retry_count + 1 <= max_retries
				THEN NOW() + (power(2, retry_count + 1) * INTERVAL '1 minute')
				ELSE scheduled_for END,
			completed_at = CASE WHEN retry_count + 1 <= max_retries
				THEN NULL ELSE NOW() END,
			error_message = $2
		WHERE id = $1
		RETURNING `+taskColumns,
		id, taskErr))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("task", "")
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to record task failure", err)
	}
	span.SetAttribute("status", string(t.Status))
	return t, nil
}

// FailTaskPermanent marks a task failed without consuming a retry. Used for
// non-retryable errors such as an unknown task type, where rescheduling
// would only repeat the same failure.
func (s *QueueStore) FailTaskPermanent(ctx context.Context, id int64, taskErr string) error {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.fail_task_permanent")
	defer s.tracer.EndSpan(span)

	_, err := s.pool.Exec(ctx, `
		UPDATE learning_queue
		SET status = 'failed', completed_at = NOW(), error_message = $2
		WHERE id = $1`,
		id, taskErr)
	if err != nil {
		span.RecordError(err)
		return memory.NewStoreError("failed to record task failure", err)
	}
	return nil
}

// GetTask loads a task by ID.
func (s *QueueStore) GetTask(ctx context.Context, id int64) (*memory.LearningTask, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.get_task")
	defer s.tracer.EndSpan(span)

	t, err := scanTask(s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM learning_queue WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("task", "")
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load task", err)
	}
	return t, nil
}

// SweepStuck resets tasks stuck in processing longer than olderThan back to
// retry, delayed by retryDelay, while they still have retries left. It
// returns the number of rows swept.
func (s *QueueStore) SweepStuck(ctx context.Context, olderThan, retryDelay time.Duration) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.sweep_stuck")
	defer s.tracer.EndSpan(span)

	tag, err := s.pool.Exec(ctx, `
		UPDATE learning_queue
		SET status = 'retry', scheduled_for = NOW() + ($2 * INTERVAL '1 minute')
		WHERE status = 'processing'
		  AND started_at < NOW() - ($1 * INTERVAL '1 minute')
		  AND retry_count < max_retries`,
		olderThan.Minutes(), retryDelay.Minutes())
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to sweep stuck tasks", err)
	}
	span.SetAttribute("swept", int(tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// DeleteCompletedBefore garbage-collects completed tasks older than the
// retention window and returns the number of rows deleted.
func (s *QueueStore) DeleteCompletedBefore(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.delete_completed")
	defer s.tracer.EndSpan(span)

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM learning_queue
		WHERE status = 'completed'
		  AND completed_at < NOW() - ($1 * INTERVAL '1 minute')`,
		retention.Minutes())
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to delete completed tasks", err)
	}
	return tag.RowsAffected(), nil
}

// CountsByStatus returns the number of tasks per status.
func (s *QueueStore) CountsByStatus(ctx context.Context) (map[memory.TaskStatus]int, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.counts_by_status")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM learning_queue GROUP BY status`)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to count tasks", err)
	}
	defer rows.Close()

	counts := make(map[memory.TaskStatus]int)
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan task count", err)
		}
		counts[memory.TaskStatus(st)] = n
	}
	return counts, rows.Err()
}

// ActivityByType summarizes, per task type, the last completed run, the next
// claimable time, and the number of claimable tasks.
func (s *QueueStore) ActivityByType(ctx context.Context) (map[memory.TaskType]memory.TaskTypeActivity, error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.activity_by_type")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT task_type,
		       MAX(completed_at) FILTER (WHERE status = 'completed'),
		       MIN(scheduled_for) FILTER (WHERE status IN ('pending', 'retry')),
		       COUNT(*) FILTER (WHERE status IN ('pending', 'retry'))
		FROM learning_queue
		GROUP BY task_type`)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to summarize task activity", err)
	}
	defer rows.Close()

	activity := make(map[memory.TaskType]memory.TaskTypeActivity)
	for rows.Next() {
		var (
			taskType string
			a        memory.TaskTypeActivity
		)
		if err := rows.Scan(&taskType, &a.LastCompleted, &a.NextScheduled, &a.PendingCount); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan task activity", err)
		}
		activity[memory.TaskType(taskType)] = a
	}
	return activity, rows.Err()
}

// RatesSince counts completed and failed tasks finished within the window.
// Health classification divides failed by the total.
func (s *QueueStore) RatesSince(ctx context.Context, window time.Duration) (completed, failed int, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "queue_store.rates_since")
	defer s.tracer.EndSpan(span)

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed')
		FROM learning_queue
		WHERE completed_at >= NOW() - ($1 * INTERVAL '1 minute')`,
		window.Minutes(),
	).Scan(&completed, &failed)
	if err != nil {
		span.RecordError(err)
		return 0, 0, memory.NewStoreError("failed to compute task rates", err)
	}
	return completed, failed, nil
}
