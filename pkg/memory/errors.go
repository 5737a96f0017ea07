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
)

// ErrorKind is a machine-readable error classification.
type ErrorKind string

const (
	KindStore       ErrorKind = "store_error"
	KindNotFound    ErrorKind = "not_found"
	KindEmbedding   ErrorKind = "embedding_error"
	KindLLMTimeout  ErrorKind = "llm_timeout"
	KindLLMProvider ErrorKind = "llm_provider_error"
	KindParse       ErrorKind = "parse_error"
	KindValidation  ErrorKind = "validation_error"
	KindTask        ErrorKind = "task_error"
)

// Error is the typed error used across Spool subsystems.
type Error struct {
	// Kind is the machine-readable classification.
	Kind ErrorKind

	// Message is a human-readable error message.
	Message string

	// Details provides additional error context.
	Details map[string]interface{}

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion provides a hint for fixing the error.
	Suggestion string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches a key-value detail and returns the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches a remediation hint and returns the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// NewError creates a typed error wrapping an optional cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: defaultRetryable(kind),
		cause:     cause,
	}
}

func defaultRetryable(kind ErrorKind) bool {
	switch kind {
	case KindStore, KindEmbedding, KindLLMTimeout, KindLLMProvider, KindTask:
		return true
	default:
		return false
	}
}

// NewStoreError wraps a database failure.
func NewStoreError(message string, cause error) *Error {
	return NewError(KindStore, message, cause)
}

// NewNotFound reports a missing entity.
func NewNotFound(entity, key string) *Error {
	e := NewError(KindNotFound, fmt.Sprintf("%s %q not found", entity, key), nil)
	return e.WithDetail("entity", entity).WithDetail("key", key)
}

// NewEmbeddingError wraps an embedding provider or validation failure.
func NewEmbeddingError(message string, cause error) *Error {
	return NewError(KindEmbedding, message, cause)
}

// NewLLMTimeout reports an aborted LLM call.
func NewLLMTimeout(model string, timeoutSeconds int) *Error {
	e := NewError(KindLLMTimeout, fmt.Sprintf("llm call to %s exceeded %ds", model, timeoutSeconds), nil)
	return e.WithDetail("model", model).WithDetail("timeout_seconds", timeoutSeconds)
}

// NewLLMProviderError wraps a chat-completion provider failure.
func NewLLMProviderError(message string, cause error) *Error {
	return NewError(KindLLMProvider, message, cause)
}

// NewParseError reports unparseable provider or analysis output.
func NewParseError(message string, cause error) *Error {
	return NewError(KindParse, message, cause)
}

// NewValidationError reports invalid input. Never retryable.
func NewValidationError(message string) *Error {
	return NewError(KindValidation, message, nil)
}

// NewTaskError wraps a learning-task handler failure so the worker's
// retry/backoff discipline applies.
func NewTaskError(message string, cause error) *Error {
	return NewError(KindTask, message, cause)
}

// IsKind reports whether err (or anything it wraps) is a typed error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts the typed error from an error chain, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
