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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// CompressionThreshold is the minimum input size in bytes that triggers
// zstd compression of the cached prompt payload.
const CompressionThreshold = 1024 // 1KB

// AnalysisCacheStore persists LLM analysis results keyed by the SHA-256 of
// the prompt. Entries carry a TTL; expired rows are never returned. Large
// inputs are stored zstd-compressed and decompressed transparently on read.
type AnalysisCacheStore struct {
	pool    *pgxpool.Pool
	tracer  observability.Tracer
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewAnalysisCacheStore creates a new PostgreSQL-backed analysis cache.
func NewAnalysisCacheStore(pool *pgxpool.Pool, tracer observability.Tracer) (*AnalysisCacheStore, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &AnalysisCacheStore{
		pool:    pool,
		tracer:  tracer,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// compress packs the input when it crosses the threshold and actually
// shrinks; otherwise the original bytes are kept.
func (s *AnalysisCacheStore) compress(input []byte) ([]byte, bool) {
	if len(input) < CompressionThreshold {
		return input, false
	}
	packed := s.encoder.EncodeAll(input, nil)
	if len(packed) >= len(input) {
		return input, false
	}
	return packed, true
}

// Put upserts a cache entry. An existing entry under the same hash is
// replaced wholesale, including its expiry.
func (s *AnalysisCacheStore) Put(ctx context.Context, e *memory.AnalysisCacheEntry) error {
	ctx, span := s.tracer.StartSpan(ctx, "cache_store.put")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("analysis_type", e.AnalysisType)

	input, compressed := s.compress(e.InputData)
	span.SetAttribute("compressed", compressed)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO llm_analysis_cache (content_hash, analysis_type,
			model_used, input_data, input_compressed, analysis_result,
			confidence_score, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_hash) DO UPDATE SET
			analysis_type = EXCLUDED.analysis_type,
			model_used = EXCLUDED.model_used,
			input_data = EXCLUDED.input_data,
			input_compressed = EXCLUDED.input_compressed,
			analysis_result = EXCLUDED.analysis_result,
			confidence_score = EXCLUDED.confidence_score,
			created_at = NOW(),
			expires_at = EXCLUDED.expires_at`,
		e.ContentHash, e.AnalysisType, e.ModelUsed, input, compressed,
		e.AnalysisResult, memory.Clamp01(e.ConfidenceScore), e.ExpiresAt)
	if err != nil {
		span.RecordError(err)
		return memory.NewStoreError("failed to write analysis cache", err)
	}
	return nil
}

// Get loads an unexpired cache entry by content hash, decompressing the
// input payload when needed. Expired or missing entries yield NotFound.
func (s *AnalysisCacheStore) Get(ctx context.Context, contentHash string) (*memory.AnalysisCacheEntry, error) {
	ctx, span := s.tracer.StartSpan(ctx, "cache_store.get")
	defer s.tracer.EndSpan(span)

	var (
		e          memory.AnalysisCacheEntry
		compressed bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT content_hash, analysis_type, model_used, input_data,
		       input_compressed, analysis_result, confidence_score,
		       created_at, expires_at
		FROM llm_analysis_cache
		WHERE content_hash = $1 AND expires_at > NOW()`,
		contentHash,
	).Scan(&e.ContentHash, &e.AnalysisType, &e.ModelUsed, &e.InputData,
		&compressed, &e.AnalysisResult, &e.ConfidenceScore, &e.CreatedAt,
		&e.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, memory.NewNotFound("analysis cache entry", contentHash)
		}
		span.RecordError(err)
		return nil, memory.NewStoreError("failed to read analysis cache", err)
	}

	if compressed {
		raw, err := s.decoder.DecodeAll(e.InputData, nil)
		if err != nil {
			span.RecordError(err)
			return nil, memory.NewStoreError("failed to decompress cached input", err)
		}
		e.InputData = raw
	}
	return &e, nil
}

// DeleteExpired removes entries past their expiry and returns the count.
func (s *AnalysisCacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "cache_store.delete_expired")
	defer s.tracer.EndSpan(span)

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM llm_analysis_cache WHERE expires_at <= NOW()`)
	if err != nil {
		span.RecordError(err)
		return 0, memory.NewStoreError("failed to delete expired cache entries", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the zstd encoder and decoder.
func (s *AnalysisCacheStore) Close() {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
}
