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
package memory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		kind      ErrorKind
		retryable bool
	}{
		{"store errors retry", NewStoreError("insert failed", errors.New("conn reset")), KindStore, true},
		{"not found does not retry", NewNotFound("project", "acme"), KindNotFound, false},
		{"embedding errors retry", NewEmbeddingError("provider unreachable", nil), KindEmbedding, true},
		{"llm timeout retries", NewLLMTimeout("llama3", 120), KindLLMTimeout, true},
		{"llm provider errors retry", NewLLMProviderError("status 503", nil), KindLLMProvider, true},
		{"parse errors do not retry", NewParseError("no numbered sections", nil), KindParse, false},
		{"validation errors do not retry", NewValidationError("unknown task type"), KindValidation, false},
		{"task errors retry", NewTaskError("handler failed", errors.New("boom")), KindTask, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.True(t, IsKind(tt.err, tt.kind))
		})
	}
}

func TestErrorUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreError("claim tasks", cause)
	wrapped := fmt.Errorf("worker batch: %w", err)

	require.True(t, errors.Is(wrapped, cause))
	assert.True(t, IsKind(wrapped, KindStore))
	assert.False(t, IsKind(wrapped, KindTask))

	typed, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindStore, typed.Kind)
	assert.Contains(t, typed.Error(), "connection refused")
}

func TestErrorDetails(t *testing.T) {
	err := NewEmbeddingError("dimension mismatch", nil).
		WithDetail("expected", 768).
		WithDetail("got", 1024).
		WithSuggestion("check the model registry entry")

	assert.Equal(t, 768, err.Details["expected"])
	assert.Equal(t, 1024, err.Details["got"])
	assert.Equal(t, "check the model registry entry", err.Suggestion)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.3))
	assert.Equal(t, 1.0, Clamp01(1.1))
	assert.Equal(t, 0.7, Clamp01(0.7))
}

func TestUnionStrings(t *testing.T) {
	got := UnionStrings([]string{"api", "web"}, []string{"web", "cli"})
	assert.Equal(t, []string{"api", "cli", "web"}, got)

	assert.Empty(t, UnionStrings(nil, nil))
	assert.Equal(t, []string{"solo"}, UnionStrings([]string{"solo"}, nil))
}

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
