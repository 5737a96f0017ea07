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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// OutcomeStore persists pattern outcomes (append-only) and per-pattern
// correlation summaries (upserted by pattern_id).
type OutcomeStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewOutcomeStore creates a new PostgreSQL-backed outcome store.
func NewOutcomeStore(pool *pgxpool.Pool, tracer observability.Tracer) *OutcomeStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &OutcomeStore{pool: pool, tracer: tracer}
}

// InsertOutcome appends one outcome row. Outcomes are never updated.
func (s *OutcomeStore) InsertOutcome(ctx context.Context, o *memory.PatternOutcome) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "outcome_store.insert_outcome")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("outcome_type", string(o.OutcomeType))

	metrics := o.Metrics
	if metrics == nil {
		metrics = map[string]interface{}{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO pattern_outcomes (project_id, pattern_id, outcome_type,
		                              outcome_value, description, metrics)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, recorded_at`,
		o.ProjectID, o.PatternID, string(o.OutcomeType), o.Value,
		o.Description, metrics,
	).Scan(&o.ID, &o.RecordedAt)
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to insert outcome", err)
	}
	return o.ID, nil
}

// ListOutcomesSince returns outcomes recorded since the cutoff joined with
// their pattern's identity, grouped by pattern in the row order. A nil
// projectID spans all projects.
func (s *OutcomeStore) ListOutcomesSince(ctx context.Context, projectID *int64, since time.Time) ([]memory.OutcomeWithPattern, error) {
	ctx, span := s.tracer.StartSpan(ctx, "outcome_store.list_outcomes")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.project_id, o.pattern_id, o.outcome_type,
		       o.outcome_value, o.description, o.metrics, o.recorded_at,
		       cp.pattern_name, cp.pattern_signature
		FROM pattern_outcomes o
		JOIN coding_patterns cp ON cp.id = o.pattern_id
		WHERE o.recorded_at >= $1
		  AND ($2::BIGINT IS NULL OR o.project_id = $2)
		ORDER BY o.pattern_id, o.recorded_at`,
		since, nullableInt64(projectID))
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list outcomes", err)
	}
	defer rows.Close()

	var outcomes []memory.OutcomeWithPattern
	for rows.Next() {
		var (
			ow memory.OutcomeWithPattern
			ot string
		)
		if err := rows.Scan(&ow.Outcome.ID, &ow.Outcome.ProjectID,
			&ow.Outcome.PatternID, &ot, &ow.Outcome.Value,
			&ow.Outcome.Description, &ow.Outcome.Metrics,
			&ow.Outcome.RecordedAt, &ow.PatternName, &ow.Signature); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan outcome", err)
		}
		ow.Outcome.OutcomeType = memory.OutcomeType(ot)
		outcomes = append(outcomes, ow)
	}
	span.SetAttribute("results", len(outcomes))
	return outcomes, rows.Err()
}

// UpsertCorrelation replaces the correlation summary for a pattern.
func (s *OutcomeStore) UpsertCorrelation(ctx context.Context, c *memory.PatternCorrelation) error {
	ctx, span := s.tracer.StartSpan(ctx, "outcome_store.upsert_correlation")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("strength", string(c.Strength))

	meta := c.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO pattern_correlations (pattern_id, correlation_strength,
			confidence_score, sample_size, analysis_method, insights, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pattern_id) DO UPDATE SET
			correlation_strength = EXCLUDED.correlation_strength,
			confidence_score = EXCLUDED.confidence_score,
			sample_size = EXCLUDED.sample_size,
			analysis_method = EXCLUDED.analysis_method,
			insights = EXCLUDED.insights,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, updated_at`,
		c.PatternID, string(c.Strength), memory.Clamp01(c.ConfidenceScore),
		c.SampleSize, string(c.AnalysisMethod), c.Insights, meta,
	).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return memory.NewStoreError("failed to upsert correlation", err)
	}
	return nil
}

// GetCorrelation loads the correlation summary for one pattern.
func (s *OutcomeStore) GetCorrelation(ctx context.Context, patternID int64) (*memory.PatternCorrelation, error) {
	ctx, span := s.tracer.StartSpan(ctx, "outcome_store.get_correlation")
	defer s.tracer.EndSpan(span)

	var (
		c        memory.PatternCorrelation
		strength string
		method   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, pattern_id, correlation_strength, confidence_score,
		       sample_size, analysis_method, insights, metadata, updated_at
		FROM pattern_correlations WHERE pattern_id = $1`,
		patternID,
	).Scan(&c.ID, &c.PatternID, &strength, &c.ConfidenceScore, &c.SampleSize,
		&method, &c.Insights, &c.Metadata, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("correlation", "")
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load correlation", err)
	}
	c.Strength = memory.CorrelationStrength(strength)
	c.AnalysisMethod = memory.AnalysisMethod(method)
	return &c, nil
}
