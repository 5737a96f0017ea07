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
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// Registry manages tool registration, argument validation, and dispatch.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
	tracer observability.Tracer
}

// NewRegistry creates an empty registry. Logger and tracer may be nil.
func NewRegistry(logger *zap.Logger, tracer observability.Tracer) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
		tracer: tracer,
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns all registered tools ordered by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates args against the tool's schema and runs it. Every
// failure, including unknown tools and invalid arguments, is returned as an
// isError result rather than a Go error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	ctx, span := r.tracer.StartSpan(ctx, "tools.execute",
		observability.WithAttribute("tool.name", name))
	defer r.tracer.EndSpan(span)

	tool, ok := r.Get(name)
	if !ok {
		return errorResult(memory.NewValidationError(fmt.Sprintf("unknown tool %q", name)), 0)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := ValidateArguments(tool.InputSchema(), args); err != nil {
		span.RecordError(err)
		return errorResult(err, 0)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		r.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		span.RecordError(err)
		return errorResult(err, elapsed)
	}
	if result == nil {
		result = &Result{Success: true}
	}
	result.ExecutionTimeMs = elapsed
	return result
}

// ValidateArguments checks args against a JSON Schema. A nil schema
// accepts anything.
func ValidateArguments(schema *JSONSchema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		return memory.NewValidationError(fmt.Sprintf("schema validation failed: %v", err))
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		msgs[i] = e.String()
	}
	return memory.NewValidationError("invalid arguments: " + strings.Join(msgs, "; "))
}

func errorResult(err error, elapsedMs int64) *Result {
	e, ok := memory.AsError(err)
	if !ok {
		e = memory.NewTaskError("tool execution failed", err)
	}
	return &Result{Success: false, Error: e, ExecutionTimeMs: elapsedMs}
}
