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
// Package postgres implements Spool's storage contract on PostgreSQL with
// pgx and pgvector: projects, sessions, memories, coding patterns, insights,
// outcomes, the learning task queue, and the durable LLM analysis cache.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execInTx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func execInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// nullableString converts empty strings to NULL for optional columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableInt64 converts zero IDs to NULL for optional foreign keys.
func nullableInt64(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
