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
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/spool/internal/pgxdriver"
	"github.com/teradata-labs/spool/pkg/observability"
)

// Backend aggregates the connection pool, the migrator, and all typed
// stores. Construct once per process and share it.
type Backend struct {
	pool     *pgxpool.Pool
	migrator *Migrator
	tracer   observability.Tracer

	memories *MemoryStore
	patterns *PatternStore
	insights *InsightStore
	outcomes *OutcomeStore
	queue    *QueueStore
	cache    *AnalysisCacheStore
}

// NewBackend connects to PostgreSQL and wires up all stores. Migrations are
// not applied automatically; call Migrate.
func NewBackend(ctx context.Context, cfg pgxdriver.Config, tracer observability.Tracer) (*Backend, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	pool, err := pgxdriver.NewPool(ctx, cfg, tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return NewBackendWithPool(pool, tracer)
}

// NewBackendWithPool wires up all stores over an existing pool. The caller
// retains ownership of the pool lifecycle only until Close is called.
func NewBackendWithPool(pool *pgxpool.Pool, tracer observability.Tracer) (*Backend, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	migrator, err := NewMigrator(pool, tracer)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	cache, err := NewAnalysisCacheStore(pool, tracer)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create analysis cache store: %w", err)
	}

	return &Backend{
		pool:     pool,
		migrator: migrator,
		tracer:   tracer,
		memories: NewMemoryStore(pool, tracer),
		patterns: NewPatternStore(pool, tracer),
		insights: NewInsightStore(pool, tracer),
		outcomes: NewOutcomeStore(pool, tracer),
		queue:    NewQueueStore(pool, tracer),
		cache:    cache,
	}, nil
}

// Migrate applies all pending schema migrations.
func (b *Backend) Migrate(ctx context.Context) error {
	return b.migrator.MigrateUp(ctx)
}

// Ping verifies database connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close releases the cache store's compressors and the connection pool.
func (b *Backend) Close() {
	b.cache.Close()
	b.pool.Close()
}

// Pool exposes the underlying connection pool.
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }

// Migrator exposes the schema migrator.
func (b *Backend) Migrator() *Migrator { return b.migrator }

// Memories returns the project/session/memory store.
func (b *Backend) Memories() *MemoryStore { return b.memories }

// Patterns returns the coding pattern store.
func (b *Backend) Patterns() *PatternStore { return b.patterns }

// Insights returns the meta insight store.
func (b *Backend) Insights() *InsightStore { return b.insights }

// Outcomes returns the outcome and correlation store.
func (b *Backend) Outcomes() *OutcomeStore { return b.outcomes }

// Queue returns the learning task queue store.
func (b *Backend) Queue() *QueueStore { return b.queue }

// AnalysisCache returns the durable LLM analysis cache store.
func (b *Backend) AnalysisCache() *AnalysisCacheStore { return b.cache }
