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
// Package pgxdriver builds the pgx connection pool used by the Postgres
// storage backend. Every connection registers the pgvector codec and pins
// the configured schema.
package pgxdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/teradata-labs/spool/pkg/observability"
)

// Config holds Postgres connection settings. DSN, when set, takes
// precedence over the individual connection fields.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Schema   string
	Pool     PoolConfig
}

// PoolConfig tunes pgxpool behavior. Zero values select defaults.
type PoolConfig struct {
	MaxConnections             int32
	MinConnections             int32
	MaxIdleTimeSeconds         int
	MaxLifetimeSeconds         int
	HealthCheckIntervalSeconds int
}

// NewPool creates a pgxpool.Pool from configuration and verifies
// connectivity with a ping.
func NewPool(ctx context.Context, cfg Config, tracer observability.Tracer) (*pgxpool.Pool, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	ctx, span := tracer.StartSpan(ctx, "pgxdriver.new_pool")
	defer tracer.EndSpan(span)

	dsn := buildDSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("postgres configuration requires either dsn or host+database")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	applyPoolConfig(poolCfg, cfg.Pool)

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	// Each new connection pins the search path and registers the pgvector
	// codec so vector columns scan into pgvector.Vector values.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize())); err != nil {
			return err
		}
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	span.SetAttribute("pool.max_conns", poolCfg.MaxConns)
	span.SetAttribute("pool.min_conns", poolCfg.MinConns)
	span.SetAttribute("pool.schema", schema)

	return pool, nil
}

// buildDSN constructs a PostgreSQL connection string from config.
// Values are single-quoted per libpq keyword/value format to handle special
// characters (spaces, @, =, etc.) safely. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func buildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	if cfg.Host == "" || cfg.Database == "" {
		return ""
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnQuoteValue(cfg.Host), port, dsnQuoteValue(cfg.Database), dsnQuoteValue(sslMode))

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", dsnQuoteValue(cfg.User))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnQuoteValue(cfg.Password))
	}

	return dsn
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection
// string. Within quoted values, single quotes and backslashes must be
// escaped with a backslash. All values are quoted unconditionally.
func dsnQuoteValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}

// applyPoolConfig maps pool settings to pgxpool.Config.
func applyPoolConfig(poolCfg *pgxpool.Config, pc PoolConfig) {
	poolCfg.MaxConns = 25
	if pc.MaxConnections > 0 {
		poolCfg.MaxConns = pc.MaxConnections
	}

	poolCfg.MinConns = 5
	if pc.MinConnections > 0 {
		poolCfg.MinConns = pc.MinConnections
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	if pc.MaxIdleTimeSeconds > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(pc.MaxIdleTimeSeconds) * time.Second
	}

	poolCfg.MaxConnLifetime = 1 * time.Hour
	if pc.MaxLifetimeSeconds > 0 {
		poolCfg.MaxConnLifetime = time.Duration(pc.MaxLifetimeSeconds) * time.Second
	}

	poolCfg.HealthCheckPeriod = 30 * time.Second
	if pc.HealthCheckIntervalSeconds > 0 {
		poolCfg.HealthCheckPeriod = time.Duration(pc.HealthCheckIntervalSeconds) * time.Second
	}
}
