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
	"github.com/pgvector/pgvector-go"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// PatternStore persists mined coding patterns and their occurrences.
// Patterns are upserted by signature; every sighting also appends a
// pattern_occurrences row in the same transaction.
type PatternStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewPatternStore creates a new PostgreSQL-backed pattern store.
func NewPatternStore(pool *pgxpool.Pool, tracer observability.Tracer) *PatternStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &PatternStore{pool: pool, tracer: tracer}
}

const patternColumns = `id, pattern_signature, pattern_category, pattern_type,
	pattern_name, pattern_description, languages, projects_seen,
	frequency_count, confidence_score, example_code, metadata,
	created_at, last_reinforced`

func scanPattern(row pgx.Row) (*memory.CodingPattern, error) {
	var p memory.CodingPattern
	err := row.Scan(&p.ID, &p.Signature, &p.Category, &p.Type, &p.Name,
		&p.Description, &p.Languages, &p.ProjectsSeen, &p.FrequencyCount,
		&p.ConfidenceScore, &p.ExampleCode, &p.Metadata, &p.CreatedAt,
		&p.LastReinforced)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBySignature loads a pattern by its unique signature, without its
// embedding. Detection uses it to decide between create and reinforce.
func (s *PatternStore) GetBySignature(ctx context.Context, signature string) (*memory.CodingPattern, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.get_by_signature")
	defer s.tracer.EndSpan(span)

	p, err := scanPattern(s.pool.QueryRow(ctx, `
		SELECT `+patternColumns+`
		FROM coding_patterns WHERE pattern_signature = $1`,
		signature))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("pattern", signature)
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load pattern", err)
	}
	return p, nil
}

// RecordPattern inserts a new pattern or reinforces the row sharing its
// signature, and appends a pattern occurrence, in one transaction.
// Reinforcement bumps frequency_count, unions projects_seen, appends the
// memory ID to metadata.example_memories, raises confidence by boost
// (clamped to 1.0), and touches last_reinforced. The embedding is written
// only on insert. The returned flag reports whether a new row was created.
func (s *PatternStore) RecordPattern(ctx context.Context, p *memory.CodingPattern, boost float64, projectID, memoryID int64) (*memory.CodingPattern, bool, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.record_pattern")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("signature", p.Signature)

	var embedding interface{}
	if len(p.Embedding) > 0 {
		embedding = pgvector.NewVector(p.Embedding)
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	langs := p.Languages
	if langs == nil {
		langs = []string{}
	}
	projects := p.ProjectsSeen
	if projects == nil {
		projects = []string{}
	}

	var (
		out      memory.CodingPattern
		inserted bool
	)
	err := execInTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO coding_patterns (
				pattern_signature, pattern_category, pattern_type, pattern_name,
				pattern_description, languages, projects_seen, confidence_score,
				pattern_embedding, example_code, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, LEAST($8 + $9, 1.0), $10, $11, $12)
			ON CONFLICT (pattern_signature) DO UPDATE SET
				frequency_count = coding_patterns.frequency_count + 1,
				projects_seen = ARRAY(
					SELECT DISTINCT seen
					FROM unnest(coding_patterns.projects_seen || EXCLUDED.projects_seen) AS seen
					ORDER BY seen),
				confidence_score = LEAST(coding_patterns.confidence_score + $9, 1.0),
				metadata = jsonb_set(
					coding_patterns.metadata, '{example_memories}',
					COALESCE(coding_patterns.metadata->'example_memories', '[]'::jsonb)
						|| COALESCE(EXCLUDED.metadata->'example_memories', '[]'::jsonb)),
				last_reinforced = NOW()
			RETURNING `+patternColumns+`, (xmax = 0) AS inserted`,
			p.Signature, p.Category, p.Type, p.Name, p.Description,
			langs, projects, p.ConfidenceScore, boost,
			embedding, p.ExampleCode, meta,
		).Scan(&out.ID, &out.Signature, &out.Category, &out.Type, &out.Name,
			&out.Description, &out.Languages, &out.ProjectsSeen,
			&out.FrequencyCount, &out.ConfidenceScore, &out.ExampleCode,
			&out.Metadata, &out.CreatedAt, &out.LastReinforced, &inserted)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO pattern_occurrences (pattern_id, project_id, memory_id)
			VALUES ($1, $2, $3)`,
			out.ID, projectID, memoryID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, memory.NewStoreError("failed to record pattern", err)
	}
	return &out, inserted, nil
}

// ListPatterns returns patterns matching the filter, strongest first.
func (s *PatternStore) ListPatterns(ctx context.Context, f memory.PatternFilter) ([]memory.CodingPattern, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.list_patterns")
	defer s.tracer.EndSpan(span)

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+patternColumns+`
		FROM coding_patterns
		WHERE ($1 = '' OR pattern_category = $1)
		  AND ($2 = '' OR pattern_type = $2)
		  AND ($3 = '' OR $3 = ANY(languages))
		  AND confidence_score >= $4
		  AND frequency_count >= $5
		ORDER BY confidence_score DESC, frequency_count DESC
		LIMIT $6`,
		f.Category, f.Type, f.Language, f.MinConfidence, f.MinFrequency, limit)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list patterns", err)
	}
	defer rows.Close()

	var patterns []memory.CodingPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan pattern", err)
		}
		patterns = append(patterns, *p)
	}
	span.SetAttribute("results", len(patterns))
	return patterns, rows.Err()
}

// Aggregates returns corpus-wide pattern statistics for status reporting.
func (s *PatternStore) Aggregates(ctx context.Context) (*memory.PatternAggregates, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.aggregates")
	defer s.tracer.EndSpan(span)

	var agg memory.PatternAggregates
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(confidence_score), 0),
		       COALESCE((SELECT COUNT(DISTINCT seen)
		                 FROM coding_patterns cp, unnest(cp.projects_seen) AS seen), 0)
		FROM coding_patterns`,
	).Scan(&agg.PatternCount, &agg.AvgConfidence, &agg.UniqueProjects)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to aggregate patterns", err)
	}
	return &agg, nil
}

// MonthlyOccurrences buckets pattern sightings by calendar month since the
// cutoff, ordered by pattern then month.
func (s *PatternStore) MonthlyOccurrences(ctx context.Context, since time.Time) ([]memory.MonthlyOccurrence, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.monthly_occurrences")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT cp.id, cp.pattern_name, cp.pattern_signature,
		       date_trunc('month', po.occurred_at) AS month, COUNT(*)
		FROM pattern_occurrences po
		JOIN coding_patterns cp ON cp.id = po.pattern_id
		WHERE po.occurred_at >= $1
		GROUP BY cp.id, cp.pattern_name, cp.pattern_signature, month
		ORDER BY cp.pattern_name, month`,
		since)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to bucket pattern occurrences", err)
	}
	defer rows.Close()

	var buckets []memory.MonthlyOccurrence
	for rows.Next() {
		var b memory.MonthlyOccurrence
		if err := rows.Scan(&b.PatternID, &b.PatternName, &b.Signature, &b.Month, &b.Count); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan occurrence bucket", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// BugCoOccurrences finds patterns whose occurrences lie within seven days of
// bug memories in the same project, grouped per (pattern, project), keeping
// groups with at least minCount hits. Anti-pattern analysis feeds on it.
func (s *PatternStore) BugCoOccurrences(ctx context.Context, minCount int) ([]memory.BugCoOccurrence, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.bug_co_occurrences")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT cp.id, cp.pattern_name, cp.pattern_signature, pr.name,
		       COUNT(DISTINCT m.id)
		FROM pattern_occurrences po
		JOIN coding_patterns cp ON cp.id = po.pattern_id
		JOIN projects pr ON pr.id = po.project_id
		JOIN memories m ON m.project_id = po.project_id
		     AND m.memory_type = 'bug'
		     AND m.created_at BETWEEN po.occurred_at - INTERVAL '7 days'
		                          AND po.occurred_at + INTERVAL '7 days'
		GROUP BY cp.id, cp.pattern_name, cp.pattern_signature, pr.name
		HAVING COUNT(DISTINCT m.id) >= $1
		ORDER BY COUNT(DISTINCT m.id) DESC`,
		minCount)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to join patterns with bugs", err)
	}
	defer rows.Close()

	var hits []memory.BugCoOccurrence
	for rows.Next() {
		var h memory.BugCoOccurrence
		if err := rows.Scan(&h.PatternID, &h.PatternName, &h.Signature, &h.ProjectName, &h.Count); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan bug co-occurrence", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// PatternsUsedInProject returns patterns with occurrences in the project
// since the cutoff, most recently used first.
func (s *PatternStore) PatternsUsedInProject(ctx context.Context, projectID int64, since time.Time) ([]memory.ProjectPatternUse, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.patterns_used_in_project")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT cp.id, cp.pattern_name, cp.pattern_signature,
		       COUNT(*), MAX(po.occurred_at)
		FROM pattern_occurrences po
		JOIN coding_patterns cp ON cp.id = po.pattern_id
		WHERE po.project_id = $1 AND po.occurred_at >= $2
		GROUP BY cp.id, cp.pattern_name, cp.pattern_signature
		ORDER BY MAX(po.occurred_at) DESC`,
		projectID, since)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list project pattern use", err)
	}
	defer rows.Close()

	var uses []memory.ProjectPatternUse
	for rows.Next() {
		var u memory.ProjectPatternUse
		if err := rows.Scan(&u.PatternID, &u.PatternName, &u.Signature, &u.UseCount, &u.LastUsed); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan project pattern use", err)
		}
		uses = append(uses, u)
	}
	return uses, rows.Err()
}

// OccurrenceCount returns the number of occurrence rows for one pattern.
func (s *PatternStore) OccurrenceCount(ctx context.Context, patternID int64) (int, error) {
	ctx, span := s.tracer.StartSpan(ctx, "pattern_store.occurrence_count")
	defer s.tracer.EndSpan(span)

	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM pattern_occurrences WHERE pattern_id = $1`,
		patternID,
	).Scan(&n)
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to count occurrences", err)
	}
	return n, nil
}
