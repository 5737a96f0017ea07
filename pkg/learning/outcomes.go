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
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

const (
	// correlationWindow bounds how far back AnalyzeCorrelations reads
	// outcomes when the caller passes no window.
	correlationWindow = 90 * 24 * time.Hour
	// triggerWindow bounds which pattern uses a lifecycle event records
	// outcomes against.
	triggerWindow = 30 * 24 * time.Hour
	// minSamplesRuleBased is the smallest outcome group worth correlating.
	minSamplesRuleBased = 2
	// minSamplesLLM is the smallest group handed to the analysis model.
	minSamplesLLM = 3
)

// eventOutcomes maps lifecycle event types onto the outcome they imply for
// every pattern recently used in the project.
var eventOutcomes = map[string]memory.OutcomeType{
	"project_completion":      memory.OutcomeSuccess,
	"deployment_success":      memory.OutcomeSuccess,
	"refactor_completion":     memory.OutcomeSuccess,
	"performance_improvement": memory.OutcomePerformanceGain,
	"bug_report":              memory.OutcomeBug,
	"major_bug":               memory.OutcomeFailure,
	"test_failure":            memory.OutcomeFailure,
	"security_issue":          memory.OutcomeFailure,
}

// significantEvents trigger an immediate correlation pass instead of waiting
// for the next scheduled run.
var significantEvents = map[string]bool{
	"project_completion":      true,
	"major_bug":               true,
	"performance_improvement": true,
}

// Correlator records pattern outcomes and derives success correlations from
// them. The rule-based classifier is the source of truth; the analysis model
// refines groups with enough samples and falls back to the rules when its
// response does not parse.
type Correlator struct {
	outcomes OutcomeStore
	patterns PatternStore
	analyzer Analyzer
	logger   *zap.Logger
	tracer   observability.Tracer
}

// NewCorrelator creates an outcome correlator. The analyzer may be nil.
func NewCorrelator(outcomes OutcomeStore, patterns PatternStore, analyzer Analyzer, logger *zap.Logger, tracer observability.Tracer) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Correlator{
		outcomes: outcomes,
		patterns: patterns,
		analyzer: analyzer,
		logger:   logger,
		tracer:   tracer,
	}
}

// RecordPatternOutcome validates and stores a single outcome observation.
func (c *Correlator) RecordPatternOutcome(ctx context.Context, o *memory.PatternOutcome) (int64, error) {
	ctx, span := c.tracer.StartSpan(ctx, "learning.record_outcome")
	defer c.tracer.EndSpan(span)

	switch o.OutcomeType {
	case memory.OutcomeSuccess, memory.OutcomeFailure, memory.OutcomeNeutral,
		memory.OutcomeBug, memory.OutcomePerformanceGain:
	default:
		return 0, memory.NewValidationError(fmt.Sprintf("unknown outcome type %q", o.OutcomeType))
	}
	return c.outcomes.InsertOutcome(ctx, o)
}

// AnalyzeCorrelations recomputes the correlation for every pattern with
// enough recent outcomes. A nil projectID spans all projects; a zero window
// defaults to 90 days. Returns the number of correlations written.
func (c *Correlator) AnalyzeCorrelations(ctx context.Context, projectID *int64, window time.Duration) (int, error) {
	ctx, span := c.tracer.StartSpan(ctx, "learning.analyze_correlations")
	defer c.tracer.EndSpan(span)

	if window <= 0 {
		window = correlationWindow
	}
	runID := uuid.NewString()
	span.SetAttribute("run_id", runID)

	rows, err := c.outcomes.ListOutcomesSince(ctx, projectID, time.Now().Add(-window))
	if err != nil {
		return 0, err
	}

	written := 0
	for _, group := range groupOutcomes(rows) {
		corr, ok := c.correlate(ctx, group)
		if !ok {
			continue
		}
		corr.Metadata["analysis_run_id"] = runID
		if err := c.outcomes.UpsertCorrelation(ctx, corr); err != nil {
			return written, err
		}
		written++
	}
	span.SetAttribute("correlations", written)
	if written > 0 {
		c.logger.Info("correlation analysis complete",
			zap.String("run_id", runID), zap.Int("correlations", written))
	}
	return written, nil
}

// TriggerOutcomeAnalysis records an outcome for every pattern used in the
// project over the last 30 days, then, for significant events, recomputes
// the project's correlations immediately. Returns the number of outcomes
// recorded.
func (c *Correlator) TriggerOutcomeAnalysis(ctx context.Context, projectID int64, eventType string, data map[string]interface{}) (int, error) {
	ctx, span := c.tracer.StartSpan(ctx, "learning.trigger_outcome_analysis")
	defer c.tracer.EndSpan(span)

	outcomeType, ok := eventOutcomes[eventType]
	if !ok {
		return 0, memory.NewValidationError(fmt.Sprintf("unknown event type %q", eventType))
	}

	uses, err := c.patterns.PatternsUsedInProject(ctx, projectID, time.Now().Add(-triggerWindow))
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, use := range uses {
		_, err := c.outcomes.InsertOutcome(ctx, &memory.PatternOutcome{
			ProjectID:   projectID,
			PatternID:   use.PatternID,
			OutcomeType: outcomeType,
			Value:       OutcomeValue(outcomeType),
			Description: fmt.Sprintf("Recorded from %s event", eventType),
			Metrics:     data,
		})
		if err != nil {
			return recorded, err
		}
		recorded++
	}
	span.SetAttribute("outcomes", recorded)

	if significantEvents[eventType] && recorded > 0 {
		if _, err := c.AnalyzeCorrelations(ctx, &projectID, 0); err != nil {
			return recorded, err
		}
	}
	return recorded, nil
}

// OutcomeValue is the numeric value implied by an outcome type.
func OutcomeValue(t memory.OutcomeType) float64 {
	switch t {
	case memory.OutcomeSuccess, memory.OutcomePerformanceGain:
		return 1.0
	case memory.OutcomeFailure, memory.OutcomeBug:
		return 0.0
	default:
		return 0.5
	}
}

// EventTypes lists the lifecycle event types TriggerOutcomeAnalysis accepts.
func EventTypes() []string {
	out := make([]string, 0, len(eventOutcomes))
	for k := range eventOutcomes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type outcomeGroup struct {
	patternID int64
	name      string
	outcomes  []memory.PatternOutcome
}

// groupOutcomes buckets rows by pattern, preserving first-seen order so
// reruns write correlations in a stable sequence.
func groupOutcomes(rows []memory.OutcomeWithPattern) []outcomeGroup {
	index := map[int64]int{}
	var groups []outcomeGroup
	for _, row := range rows {
		at, seen := index[row.Outcome.PatternID]
		if !seen {
			at = len(groups)
			index[row.Outcome.PatternID] = at
			groups = append(groups, outcomeGroup{patternID: row.Outcome.PatternID, name: row.PatternName})
		}
		groups[at].outcomes = append(groups[at].outcomes, row.Outcome)
	}
	return groups
}

// correlate classifies one pattern's outcome group. Groups below the
// rule-based minimum are skipped entirely.
func (c *Correlator) correlate(ctx context.Context, group outcomeGroup) (*memory.PatternCorrelation, bool) {
	if len(group.outcomes) < minSamplesRuleBased {
		return nil, false
	}
	if c.analyzer != nil && len(group.outcomes) >= minSamplesLLM {
		if corr, ok := c.correlateLLM(ctx, group); ok {
			return corr, true
		}
	}
	return c.ruleBasedCorrelation(group), true
}

// ruleBasedCorrelation classifies by success rate. Successes and
// performance gains count for, failures and bugs against; neutral outcomes
// contribute to the sample size only. The 0.8 and 0.6 positive bounds are
// exclusive, so a rate of exactly 0.8 is moderate, not strong.
func (c *Correlator) ruleBasedCorrelation(group outcomeGroup) *memory.PatternCorrelation {
	var successes, failures int
	for _, o := range group.outcomes {
		switch o.OutcomeType {
		case memory.OutcomeSuccess, memory.OutcomePerformanceGain:
			successes++
		case memory.OutcomeFailure, memory.OutcomeBug:
			failures++
		}
	}
	n := len(group.outcomes)

	strength := memory.NeutralStrength
	confidence := 0.5
	if decisive := successes + failures; decisive > 0 {
		rate := float64(successes) / float64(decisive)
		switch {
		case rate > 0.8:
			strength = memory.StrongPositive
			confidence = math.Min(0.9, 0.6+0.1*float64(n))
		case rate > 0.6:
			strength = memory.ModeratePositive
			confidence = math.Min(0.7, 0.5+0.05*float64(n))
		case rate <= 0.2:
			strength = memory.StrongNegative
			confidence = math.Min(0.9, 0.6+0.1*float64(n))
		case rate <= 0.4:
			strength = memory.ModerateNegative
			confidence = math.Min(0.7, 0.5+0.05*float64(n))
		}
	}

	var rate float64
	if successes+failures > 0 {
		rate = float64(successes) / float64(successes+failures)
	}
	return &memory.PatternCorrelation{
		PatternID:       group.patternID,
		Strength:        strength,
		ConfidenceScore: confidence,
		SampleSize:      n,
		AnalysisMethod:  memory.MethodRuleBased,
		Insights: fmt.Sprintf("Pattern %q succeeded in %.0f%% of %d decisive outcomes (%d total).",
			group.name, rate*100, successes+failures, n),
		Metadata: map[string]interface{}{
			"success_count": successes,
			"failure_count": failures,
			"success_rate":  rate,
		},
	}
}

// correlateLLM asks the analysis model to classify the group. Any failure
// reports ok=false so the caller falls back to the rules.
func (c *Correlator) correlateLLM(ctx context.Context, group outcomeGroup) (*memory.PatternCorrelation, bool) {
	result, err := c.analyzer.Analyze(ctx, buildCorrelationPrompt(group.name, group.outcomes), "", llm.AnalysisOutcomes)
	if err != nil {
		c.logger.Warn("model correlation failed, falling back to rules",
			zap.String("pattern", group.name), zap.Error(err))
		return nil, false
	}

	strength, confidence, ok := parseCorrelationResponse(result.Content)
	if !ok {
		c.logger.Warn("model correlation response did not parse, falling back to rules",
			zap.String("pattern", group.name))
		return nil, false
	}
	if confidence < 0 {
		confidence = result.Confidence
	}

	return &memory.PatternCorrelation{
		PatternID:       group.patternID,
		Strength:        strength,
		ConfidenceScore: memory.Clamp01(confidence),
		SampleSize:      len(group.outcomes),
		AnalysisMethod:  memory.MethodLLMPowered,
		Insights:        strings.TrimSpace(result.Content),
		Metadata:        map[string]interface{}{"model": result.Model},
	}, true
}
