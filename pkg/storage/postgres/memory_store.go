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
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// MemoryStore persists projects, sessions, and vector-embedded memories.
type MemoryStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewMemoryStore creates a new PostgreSQL-backed memory store.
func NewMemoryStore(pool *pgxpool.Pool, tracer observability.Tracer) *MemoryStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &MemoryStore{pool: pool, tracer: tracer}
}

// UpsertProject creates a project or touches its updated_at when it already
// exists. Description is only written on first insert.
func (s *MemoryStore) UpsertProject(ctx context.Context, name, description string) (*memory.Project, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.upsert_project")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrProjectName, name)

	var p memory.Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id, name, description, created_at, updated_at`,
		name, description,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to upsert project", err)
	}
	return &p, nil
}

// GetProjectByName loads a project by its unique name.
func (s *MemoryStore) GetProjectByName(ctx context.Context, name string) (*memory.Project, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.get_project")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrProjectName, name)

	var p memory.Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("project", name)
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load project", err)
	}
	return &p, nil
}

// GetProject loads a project by ID.
func (s *MemoryStore) GetProject(ctx context.Context, id int64) (*memory.Project, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.get_project_by_id")
	defer s.tracer.EndSpan(span)

	var p memory.Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("project", strconv.FormatInt(id, 10))
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load project", err)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by name. When includeStats is
// set, each project carries memory/session counts and last activity.
func (s *MemoryStore) ListProjects(ctx context.Context, includeStats bool) ([]memory.Project, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.list_projects")
	defer s.tracer.EndSpan(span)

	if !includeStats {
		rows, err := s.pool.Query(ctx, `
			SELECT id, name, description, created_at, updated_at
			FROM projects ORDER BY name`)
		if err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to list projects", err)
		}
		defer rows.Close()

		var projects []memory.Project
		for rows.Next() {
			var p memory.Project
			if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
				span.RecordError(err)
				return nil, memory.NewStoreError("failed to scan project", err)
			}
			projects = append(projects, p)
		}
		return projects, rows.Err()
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
		       COUNT(DISTINCT m.id) AS memory_count,
		       COUNT(DISTINCT sess.id) AS session_count,
		       MAX(m.created_at) AS last_activity
		FROM projects p
		LEFT JOIN memories m ON m.project_id = p.id
		LEFT JOIN sessions sess ON sess.project_id = p.id
		GROUP BY p.id
		ORDER BY p.name`)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list projects with stats", err)
	}
	defer rows.Close()

	var projects []memory.Project
	for rows.Next() {
		var (
			p            memory.Project
			memoryCount  int
			sessionCount int
			lastActivity *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
			&memoryCount, &sessionCount, &lastActivity); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan project stats", err)
		}
		p.Stats = &memory.ProjectStats{
			MemoryCount:  memoryCount,
			SessionCount: sessionCount,
			LastActivity: lastActivity,
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpsertSession creates a session or reactivates an existing one.
func (s *MemoryStore) UpsertSession(ctx context.Context, projectID int64, name string, sessionType memory.SessionType) (*memory.Session, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.upsert_session")
	defer s.tracer.EndSpan(span)

	if sessionType == "" {
		sessionType = memory.SessionMemory
	}

	var sess memory.Session
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (project_id, name, session_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, name) DO UPDATE SET updated_at = NOW(), is_active = TRUE
		RETURNING id, project_id, name, session_type, is_active, created_at, updated_at`,
		projectID, name, string(sessionType),
	).Scan(&sess.ID, &sess.ProjectID, &sess.Name, &sess.SessionType, &sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to upsert session", err)
	}
	return &sess, nil
}

// ListSessions returns a project's sessions, newest first.
func (s *MemoryStore) ListSessions(ctx context.Context, projectID int64, activeOnly bool) ([]memory.Session, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.list_sessions")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, name, session_type, is_active, created_at, updated_at
		FROM sessions
		WHERE project_id = $1 AND ($2 = FALSE OR is_active)
		ORDER BY updated_at DESC`,
		projectID, activeOnly)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []memory.Session
	for rows.Next() {
		var sess memory.Session
		if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.Name, &sess.SessionType,
			&sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan session", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// InsertMemory stores a new memory row and returns its ID. Memories are
// immutable after insert except for tags and importance.
func (s *MemoryStore) InsertMemory(ctx context.Context, m *memory.Memory) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.insert_memory")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrMemoryType, string(m.MemoryType))

	var embedding interface{}
	if len(m.Embedding) > 0 {
		embedding = pgvector.NewVector(m.Embedding)
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO memories (project_id, session_id, content, memory_type, embedding,
		                      embedding_model, importance_score, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		m.ProjectID,
		nullableInt64(m.SessionID),
		m.Content,
		string(m.MemoryType),
		embedding,
		m.EmbeddingModel,
		memory.Clamp01(m.ImportanceScore),
		tags,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to insert memory", err)
	}
	return m.ID, nil
}

// GetMemory loads a single memory by ID, without its embedding.
func (s *MemoryStore) GetMemory(ctx context.Context, id int64) (*memory.Memory, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.get_memory")
	defer s.tracer.EndSpan(span)

	var m memory.Memory
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, session_id, content, memory_type, embedding_model,
		       importance_score, tags, created_at, updated_at
		FROM memories WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.ProjectID, &m.SessionID, &m.Content, &m.MemoryType,
		&m.EmbeddingModel, &m.ImportanceScore, &m.Tags, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("memory", "")
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to load memory", err)
	}
	return &m, nil
}

// SearchMemories returns memories ordered by cosine similarity to the query
// vector, filtered by project, type, and a similarity floor.
func (s *MemoryStore) SearchMemories(ctx context.Context, params memory.SearchParams) ([]memory.SearchResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.search_memories")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("limit", params.Limit)
	span.SetAttribute("min_similarity", params.MinSimilarity)

	query := pgvector.NewVector(params.QueryEmbedding)
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.project_id, m.session_id, m.content, m.memory_type,
		       m.embedding_model, m.importance_score, m.tags, m.created_at,
		       m.updated_at, p.name, 1 - (m.embedding <=> $1) AS similarity
		FROM memories m
		JOIN projects p ON p.id = m.project_id
		WHERE m.embedding IS NOT NULL
		  AND ($2 = '' OR p.name = $2)
		  AND ($3 = '' OR m.memory_type = $3)
		  AND 1 - (m.embedding <=> $1) >= $4
		ORDER BY m.embedding <=> $1
		LIMIT $5`,
		query, params.ProjectName, params.MemoryType, params.MinSimilarity, params.Limit)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to search memories", err)
	}
	defer rows.Close()

	var results []memory.SearchResult
	for rows.Next() {
		var r memory.SearchResult
		if err := rows.Scan(&r.Memory.ID, &r.Memory.ProjectID, &r.Memory.SessionID,
			&r.Memory.Content, &r.Memory.MemoryType, &r.Memory.EmbeddingModel,
			&r.Memory.ImportanceScore, &r.Memory.Tags, &r.Memory.CreatedAt,
			&r.Memory.UpdatedAt, &r.ProjectName, &r.Similarity); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan search result", err)
		}
		results = append(results, r)
	}
	span.SetAttribute("results", len(results))
	return results, rows.Err()
}

// ListUnanalyzedMemories returns memories created since the cutoff that have
// no pattern occurrence yet, oldest first. Scheduled pattern detection works
// through this backlog.
func (s *MemoryStore) ListUnanalyzedMemories(ctx context.Context, since time.Time, limit int) ([]memory.Memory, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.list_unanalyzed")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.project_id, m.session_id, m.content, m.memory_type,
		       m.embedding_model, m.importance_score, m.tags, m.created_at, m.updated_at
		FROM memories m
		WHERE m.created_at >= $1
		  AND NOT EXISTS (SELECT 1 FROM pattern_occurrences po WHERE po.memory_id = m.id)
		ORDER BY m.created_at ASC
		LIMIT $2`,
		since, limit)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list unanalyzed memories", err)
	}
	defer rows.Close()

	return scanMemories(rows, span)
}

// ListMemoriesByTypes returns memories of the given types created since the
// cutoff, newest first.
func (s *MemoryStore) ListMemoriesByTypes(ctx context.Context, types []memory.MemoryType, since time.Time) ([]memory.Memory, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.list_by_types")
	defer s.tracer.EndSpan(span)

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.project_id, m.session_id, m.content, m.memory_type,
		       m.embedding_model, m.importance_score, m.tags, m.created_at, m.updated_at
		FROM memories m
		WHERE m.memory_type = ANY($1) AND m.created_at >= $2
		ORDER BY m.created_at DESC`,
		names, since)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to list memories by type", err)
	}
	defer rows.Close()

	return scanMemories(rows, span)
}

// CountByTypeSince aggregates memory counts per type across all projects.
func (s *MemoryStore) CountByTypeSince(ctx context.Context, since time.Time) (map[memory.MemoryType]int, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.count_by_type")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT memory_type, COUNT(*)
		FROM memories
		WHERE created_at >= $1
		GROUP BY memory_type`,
		since)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to count memories by type", err)
	}
	defer rows.Close()

	counts := make(map[memory.MemoryType]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan type count", err)
		}
		counts[memory.MemoryType(t)] = n
	}
	return counts, rows.Err()
}

// ProjectTypeCounts aggregates memory counts per (project, type) since the
// cutoff. Quality analysis derives bug and lessons-learned ratios from it.
func (s *MemoryStore) ProjectTypeCounts(ctx context.Context, since time.Time) ([]memory.TypeCount, error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.project_type_counts")
	defer s.tracer.EndSpan(span)

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, m.memory_type, COUNT(*)
		FROM memories m
		JOIN projects p ON p.id = m.project_id
		WHERE m.created_at >= $1
		GROUP BY p.id, p.name, m.memory_type
		ORDER BY p.name`,
		since)
	if err != nil {
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to count project memory types", err)
	}
	defer rows.Close()

	var counts []memory.TypeCount
	for rows.Next() {
		var (
			tc memory.TypeCount
			mt string
		)
		if err := rows.Scan(&tc.ProjectID, &tc.ProjectName, &mt, &tc.Count); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan project type count", err)
		}
		tc.MemoryType = memory.MemoryType(mt)
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// MemoryStats returns the total number of memories and how many have at
// least one pattern occurrence. Coverage reporting divides the two.
func (s *MemoryStore) MemoryStats(ctx context.Context) (total, analyzed int, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "memory_store.memory_stats")
	defer s.tracer.EndSpan(span)

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE EXISTS (
		           SELECT 1 FROM pattern_occurrences po WHERE po.memory_id = m.id))
		FROM memories m`,
	).Scan(&total, &analyzed)
	if err != nil {
		span.RecordError(err)
		return 0, 0, memory.NewStoreError("failed to compute memory stats", err)
	}
	return total, analyzed, nil
}

func scanMemories(rows pgx.Rows, span *observability.Span) ([]memory.Memory, error) {
	var memories []memory.Memory
	for rows.Next() {
		var m memory.Memory
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.SessionID, &m.Content, &m.MemoryType,
			&m.EmbeddingModel, &m.ImportanceScore, &m.Tags, &m.CreatedAt, &m.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to scan memory", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
