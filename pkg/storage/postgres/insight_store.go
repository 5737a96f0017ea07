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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// InsightStore persists synthesized meta insights, upserted by title.
type InsightStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewInsightStore creates a new PostgreSQL-backed insight store.
func NewInsightStore(pool *pgxpool.Pool, tracer observability.Tracer) *InsightStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &InsightStore{pool: pool, tracer: tracer}
}

// UpsertInsight inserts an insight or reinforces the row sharing its title.
// On collision evidence_strength keeps the maximum, confidence_level becomes
// the mean of old and new, metadata is merged, and last_reinforced is
// touched. The embedding is written only on insert. The returned flag
// reports whether a new row was created.
func (s *InsightStore) UpsertInsight(ctx context.Context, ins *memory.MetaInsight) (*memory.MetaInsight, bool, error) {
	ctx, span := s.tracer.StartSpan(ctx, "insight_store.upsert_insight")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("insight_type", string(ins.InsightType))

	var embedding interface{}
	if len(ins.Embedding) > 0 {
		embedding = pgvector.NewVector(ins.Embedding)
	}
	meta := ins.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	projects := ins.ProjectsInvolved
	if projects == nil {
		projects = []string{}
	}
	supporting := ins.SupportingPatterns
	if supporting == nil {
		supporting = []int64{}
	}
	priority := ins.Priority
	if priority == "" {
		priority = memory.PriorityLow
	}

	var (
		out      memory.MetaInsight
		inserted bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO meta_insights (
			insight_type, insight_category, insight_title, description,
			confidence_level, evidence_strength, projects_involved,
			supporting_patterns, metadata, actionable, priority,
			insight_embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (insight_title) DO UPDATE SET
			evidence_strength = GREATEST(meta_insights.evidence_strength, EXCLUDED.evidence_strength),
			confidence_level = (meta_insights.confidence_level + EXCLUDED.confidence_level) / 2,
			metadata = meta_insights.metadata || EXCLUDED.metadata,
			last_reinforced = NOW()
		RETURNING id, insight_type, insight_category, insight_title,
			description, confidence_level, evidence_strength,
			projects_involved, supporting_patterns, metadata, actionable,
			priority, created_at, last_reinforced, (xmax = 0) AS inserted`,
		string(ins.InsightType), ins.Category, ins.Title, ins.Description,
		memory.Clamp01(ins.ConfidenceLevel), memory.Clamp01(ins.EvidenceStrength),
		projects, supporting, meta, ins.Actionable, string(priority), embedding,
	).Scan(&out.ID, &out.InsightType, &out.Category, &out.Title,
		&out.Description, &out.ConfidenceLevel, &out.EvidenceStrength,
		&out.ProjectsInvolved, &out.SupportingPatterns, &out.Metadata,
		&out.Actionable, &out.Priority, &out.CreatedAt, &out.LastReinforced,
		&inserted)
	if err != nil {
		span.RecordError(err)
		return nil, false, memory.NewStoreError("failed to upsert insight", err)
	}
	return &out, inserted, nil
}

// ListInsights returns insights matching the filter, most confident first.
func (s *InsightStore) ListInsights(ctx context.Context, f memory.InsightFilter) ([]memory.MetaInsight, error) {
	ctx, span := s.tracer.StartSpan(ctx, "insight_store.list_insights")
	defer s.tracer.EndSpan(span)

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, insight_type, insight_category, insight_title, description,
		       confidence_level, evidence_strength, projects_involved,
		       supporting_patterns, metadata, actionable, priority,
		       created_at, last_reinforced
		FROM meta_insights
		WHERE ($1 = '' OR insight_type = $1)
		  AND ($2 = '' OR insight_category = $2)
		  AND confidence_level >= $3
		  AND ($4 = FALSE OR actionable)
		ORDER BY confidence_level DESC, evidence_strength DESC
		LIMIT $5`,
		f.Type, f.Category, f.MinConfidence, f.ActionableOnly, limit)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list insights", err)
	}
	defer rows.Close()

	var insights []memory.MetaInsight
	for rows.Next() {
		var ins memory.MetaInsight
		if err := rows.Scan(&ins.ID, &ins.InsightType, &ins.Category,
			&ins.Title, &ins.Description, &ins.ConfidenceLevel,
			&ins.EvidenceStrength, &ins.ProjectsInvolved,
			&ins.SupportingPatterns, &ins.Metadata, &ins.Actionable,
			&ins.Priority, &ins.CreatedAt, &ins.LastReinforced); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan insight", err)
		}
		insights = append(insights, ins)
	}
	span.SetAttribute("results", len(insights))
	return insights, rows.Err()
}

// CountByType aggregates insight counts per type for status reporting.
func (s *InsightStore) CountByType(ctx context.Context) (map[memory.InsightType]int, error) {
	ctx, span := s.tracer.StartSpan(ctx, "insight_store.count_by_type")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT insight_type, COUNT(*) FROM meta_insights GROUP BY insight_type`)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to count insights", err)
	}
	defer rows.Close()

	counts := make(map[memory.InsightType]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan insight count", err)
		}
		counts[memory.InsightType(t)] = n
	}
	return counts, rows.Err()
}
