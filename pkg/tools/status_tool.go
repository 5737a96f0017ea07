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
	"encoding/json"

	"github.com/teradata-labs/spool/pkg/learning"
	"github.com/teradata-labs/spool/pkg/memory"
)

// StatusProvider reports the learning engine snapshot. *learning.Pipeline
// satisfies it.
type StatusProvider interface {
	Status(ctx context.Context) (*learning.Status, error)
}

// LearningStatusTool reports queue depth, task activity, pattern and insight
// aggregates, and engine health.
type LearningStatusTool struct {
	provider StatusProvider
}

// NewLearningStatusTool creates the get_learning_status tool.
func NewLearningStatusTool(provider StatusProvider) *LearningStatusTool {
	return &LearningStatusTool{provider: provider}
}

func (t *LearningStatusTool) Name() string { return "get_learning_status" }

func (t *LearningStatusTool) Description() string {
	return "Report the learning engine's queue depth, per-task activity, pattern and insight counts, analysis coverage, and health."
}

func (t *LearningStatusTool) InputSchema() *JSONSchema {
	return NewObjectSchema("No arguments", nil, nil)
}

func (t *LearningStatusTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	status, err := t.provider.Status(ctx)
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, memory.NewTaskError("encoding status", err)
	}

	return &Result{Success: true, Data: string(out)}, nil
}
