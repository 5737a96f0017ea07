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
// Package tools exposes Spool's memory and learning operations as a
// validated tool surface. Each tool declares a JSON Schema for its
// arguments; the registry validates calls against it before dispatch and
// turns every failure into an isError result.
package tools

import (
	"context"
	"encoding/json"

	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/memory"
)

// Tool is one externally callable operation.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for callers.
	Description() string

	// InputSchema returns the JSON Schema for tool arguments.
	InputSchema() *JSONSchema

	// Execute runs the tool. Errors are converted into isError results at
	// the registry boundary.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// Result is the outcome of one tool call. Data carries a single text
// result on success; Error is set when the call failed.
type Result struct {
	Success         bool          `json:"success"`
	Data            interface{}   `json:"data,omitempty"`
	Error           *memory.Error `json:"error,omitempty"`
	ExecutionTimeMs int64         `json:"execution_time_ms"`
}

// MemoryStore is the slice of the memory store the tool surface uses.
type MemoryStore interface {
	UpsertProject(ctx context.Context, name, description string) (*memory.Project, error)
	GetProjectByName(ctx context.Context, name string) (*memory.Project, error)
	ListProjects(ctx context.Context, includeStats bool) ([]memory.Project, error)
	UpsertSession(ctx context.Context, projectID int64, name string, sessionType memory.SessionType) (*memory.Session, error)
	ListSessions(ctx context.Context, projectID int64, activeOnly bool) ([]memory.Session, error)
	InsertMemory(ctx context.Context, m *memory.Memory) (int64, error)
	SearchMemories(ctx context.Context, params memory.SearchParams) ([]memory.SearchResult, error)
}

// PatternStore lists mined patterns and resolves signatures.
type PatternStore interface {
	GetBySignature(ctx context.Context, signature string) (*memory.CodingPattern, error)
	ListPatterns(ctx context.Context, f memory.PatternFilter) ([]memory.CodingPattern, error)
}

// InsightStore lists synthesized insights.
type InsightStore interface {
	ListInsights(ctx context.Context, f memory.InsightFilter) ([]memory.MetaInsight, error)
}

// Embedder produces embedding vectors for stored and searched content.
type Embedder interface {
	Embed(ctx context.Context, text, modelName string) ([]float32, error)
	ResolveModel(modelName string) (embedding.ModelConfig, error)
}

// MemoryNotifier receives the post-insert hook from the ingest path.
// *learning.Pipeline satisfies it.
type MemoryNotifier interface {
	OnMemoryAdded(ctx context.Context, memoryID, projectID int64)
}

// JSONSchema describes tool arguments, following the JSON Schema spec.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
}

// ToJSON renders the schema as JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// NewObjectSchema creates an object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	if properties == nil {
		properties = make(map[string]*JSONSchema)
	}
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

// NewNumberSchema creates a number schema.
func NewNumberSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "number", Description: description}
}

// NewIntegerSchema creates an integer schema.
func NewIntegerSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "integer", Description: description}
}

// NewBooleanSchema creates a boolean schema.
func NewBooleanSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "boolean", Description: description}
}

// NewArraySchema creates an array schema.
func NewArraySchema(description string, items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: "array", Description: description, Items: items}
}

// WithEnum constrains the schema to the given values.
func (s *JSONSchema) WithEnum(values ...interface{}) *JSONSchema {
	s.Enum = values
	return s
}

// WithDefault records the value applied when the argument is omitted.
func (s *JSONSchema) WithDefault(value interface{}) *JSONSchema {
	s.Default = value
	return s
}

// WithRange adds inclusive min/max bounds to a numeric schema.
func (s *JSONSchema) WithRange(min, max *float64) *JSONSchema {
	s.Minimum = min
	s.Maximum = max
	return s
}

// floatP returns a pointer to v. Used for schema range bounds.
func floatP(v float64) *float64 { return &v }

// stringEnum converts values for WithEnum.
func stringEnum(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
