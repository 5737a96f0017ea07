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

	"github.com/teradata-labs/spool/pkg/learning"
	"github.com/teradata-labs/spool/pkg/memory"
)

// OutcomeRecorder is the slice of the correlator the outcome tools drive.
// *learning.Correlator satisfies it.
type OutcomeRecorder interface {
	RecordPatternOutcome(ctx context.Context, o *memory.PatternOutcome) (int64, error)
	TriggerOutcomeAnalysis(ctx context.Context, projectID int64, eventType string, data map[string]interface{}) (int, error)
}

// outcomeTypes is the closed set accepted by record_pattern_outcome.
var outcomeTypes = []string{
	string(memory.OutcomeSuccess),
	string(memory.OutcomeFailure),
	string(memory.OutcomeNeutral),
	string(memory.OutcomeBug),
	string(memory.OutcomePerformanceGain),
}

// RecordOutcomeTool records the observed result of applying a pattern in a
// project.
type RecordOutcomeTool struct {
	store    MemoryStore
	patterns PatternStore
	recorder OutcomeRecorder
}

// NewRecordOutcomeTool creates the record_pattern_outcome tool.
func NewRecordOutcomeTool(store MemoryStore, patterns PatternStore, recorder OutcomeRecorder) *RecordOutcomeTool {
	return &RecordOutcomeTool{store: store, patterns: patterns, recorder: recorder}
}

func (t *RecordOutcomeTool) Name() string { return "record_pattern_outcome" }

func (t *RecordOutcomeTool) Description() string {
	return "Record the observed outcome of applying a coding pattern in a project. Outcomes feed pattern success correlations."
}

func (t *RecordOutcomeTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for recording a pattern outcome",
		map[string]*JSONSchema{
			"project_name":      NewStringSchema("Project the outcome was observed in"),
			"pattern_signature": NewStringSchema("Signature of the pattern, as listed by get_coding_patterns"),
			"outcome_type": NewStringSchema("What happened").
				WithEnum(stringEnum(outcomeTypes)...),
			"value": NewNumberSchema("Outcome value from 0 to 1; defaults by outcome type").
				WithRange(floatP(0), floatP(1)),
			"description": NewStringSchema("What was observed"),
			"metrics":     NewObjectSchema("Supporting metrics", nil, nil),
		},
		[]string{"project_name", "pattern_signature", "outcome_type"},
	)
}

func (t *RecordOutcomeTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	project, err := t.store.GetProjectByName(ctx, stringArg(params, "project_name", ""))
	if err != nil {
		return nil, err
	}
	pattern, err := t.patterns.GetBySignature(ctx, stringArg(params, "pattern_signature", ""))
	if err != nil {
		return nil, err
	}

	outcomeType := memory.OutcomeType(stringArg(params, "outcome_type", ""))
	id, err := t.recorder.RecordPatternOutcome(ctx, &memory.PatternOutcome{
		ProjectID:   project.ID,
		PatternID:   pattern.ID,
		OutcomeType: outcomeType,
		Value:       floatArg(params, "value", learning.OutcomeValue(outcomeType)),
		Description: stringArg(params, "description", ""),
		Metrics:     objectArg(params, "metrics"),
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data: fmt.Sprintf("Recorded %s outcome %d for pattern %q in project %q.",
			outcomeType, id, pattern.Name, project.Name),
	}, nil
}

// TriggerAnalysisTool fans a project lifecycle event out into outcomes for
// every pattern the project used recently.
type TriggerAnalysisTool struct {
	store    MemoryStore
	recorder OutcomeRecorder
}

// NewTriggerAnalysisTool creates the trigger_outcome_analysis tool.
func NewTriggerAnalysisTool(store MemoryStore, recorder OutcomeRecorder) *TriggerAnalysisTool {
	return &TriggerAnalysisTool{store: store, recorder: recorder}
}

func (t *TriggerAnalysisTool) Name() string { return "trigger_outcome_analysis" }

func (t *TriggerAnalysisTool) Description() string {
	return "Record a project lifecycle event as an outcome for every pattern the project used in the last 30 days. Significant events recompute correlations immediately."
}

func (t *TriggerAnalysisTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for triggering outcome analysis",
		map[string]*JSONSchema{
			"project_name": NewStringSchema("Project the event belongs to"),
			"event_type": NewStringSchema("Lifecycle event").
				WithEnum(stringEnum(learning.EventTypes())...),
			"event_data": NewObjectSchema("Event context stored as outcome metrics", nil, nil),
		},
		[]string{"project_name", "event_type"},
	)
}

func (t *TriggerAnalysisTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	project, err := t.store.GetProjectByName(ctx, stringArg(params, "project_name", ""))
	if err != nil {
		return nil, err
	}

	eventType := stringArg(params, "event_type", "")
	recorded, err := t.recorder.TriggerOutcomeAnalysis(ctx, project.ID, eventType, objectArg(params, "event_data"))
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data: fmt.Sprintf("Recorded %d outcomes for project %q from %s.",
			recorded, project.Name, eventType),
	}, nil
}
