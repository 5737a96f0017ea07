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
	"strings"

	"github.com/teradata-labs/spool/pkg/memory"
)

// insightTypes is the closed set accepted by get_insights.
var insightTypes = []string{
	string(memory.InsightBestPractice),
	string(memory.InsightAntipattern),
	string(memory.InsightPreference),
	string(memory.InsightTrend),
	string(memory.InsightWarning),
	string(memory.InsightOptimization),
}

// patternCategories is the closed category set the extractor catalog spans.
var patternCategories = []string{
	"architectural", "creational", "structural", "behavioral", "concurrency",
	"data_processing", "api_patterns", "messaging", "database", "distributed",
	"security", "performance", "error_handling", "testing", "frontend",
	"mobile", "devops", "code_organization", "process_methodology",
	"cloud_platforms", "data_engineering", "algorithms", "reliability",
	"observability", "deployment", "programming_paradigms",
	"network_protocols", "user_experience", "quality_assurance",
	"infrastructure_ops",
}

// GetInsightsTool lists synthesized cross-project insights.
type GetInsightsTool struct {
	store InsightStore
}

// NewGetInsightsTool creates the get_insights tool.
func NewGetInsightsTool(store InsightStore) *GetInsightsTool {
	return &GetInsightsTool{store: store}
}

func (t *GetInsightsTool) Name() string { return "get_insights" }

func (t *GetInsightsTool) Description() string {
	return "List learned insights ordered by confidence, optionally filtered by type."
}

func (t *GetInsightsTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for listing insights",
		map[string]*JSONSchema{
			"insight_type": NewStringSchema("Restrict to one insight type").
				WithEnum(stringEnum(insightTypes)...),
			"min_confidence": NewNumberSchema("Minimum confidence from 0 to 1").
				WithDefault(0.7).WithRange(floatP(0), floatP(1)),
			"limit": NewIntegerSchema("Maximum insights to return").
				WithDefault(20).WithRange(floatP(1), floatP(100)),
		},
		nil,
	)
}

func (t *GetInsightsTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	insights, err := t.store.ListInsights(ctx, memory.InsightFilter{
		Type:          stringArg(params, "insight_type", ""),
		MinConfidence: floatArg(params, "min_confidence", 0.7),
		Limit:         intArg(params, "limit", 20),
	})
	if err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return &Result{Success: true, Data: "No insights matched the filter."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d insights:\n", len(insights))
	for i, ins := range insights {
		fmt.Fprintf(&b, "\n%d. [%s/%s] %s (confidence %.2f)\n",
			i+1, ins.InsightType, ins.Priority, ins.Title, ins.ConfidenceLevel)
		fmt.Fprintf(&b, "   %s\n", ins.Description)
		if len(ins.ProjectsInvolved) > 0 {
			fmt.Fprintf(&b, "   projects: %s\n", strings.Join(ins.ProjectsInvolved, ", "))
		}
		if ins.Actionable {
			b.WriteString("   actionable\n")
		}
	}
	return &Result{Success: true, Data: b.String()}, nil
}

// GetCodingPatternsTool lists mined coding patterns.
type GetCodingPatternsTool struct {
	store PatternStore
}

// NewGetCodingPatternsTool creates the get_coding_patterns tool.
func NewGetCodingPatternsTool(store PatternStore) *GetCodingPatternsTool {
	return &GetCodingPatternsTool{store: store}
}

func (t *GetCodingPatternsTool) Name() string { return "get_coding_patterns" }

func (t *GetCodingPatternsTool) Description() string {
	return "List mined coding patterns filtered by category, type, language, confidence, and frequency."
}

func (t *GetCodingPatternsTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for listing coding patterns",
		map[string]*JSONSchema{
			"pattern_category": NewStringSchema("Restrict to one pattern category").
				WithEnum(stringEnum(patternCategories)...),
			"pattern_type": NewStringSchema("Restrict to one normalized pattern type"),
			"language":     NewStringSchema("Restrict to patterns seen in one language"),
			"min_confidence": NewNumberSchema("Minimum confidence from 0 to 1").
				WithDefault(0.6).WithRange(floatP(0), floatP(1)),
			"min_frequency": NewIntegerSchema("Minimum times the pattern was seen").
				WithDefault(2).WithRange(floatP(1), nil),
			"limit": NewIntegerSchema("Maximum patterns to return").
				WithDefault(15).WithRange(floatP(1), floatP(100)),
		},
		nil,
	)
}

func (t *GetCodingPatternsTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	patterns, err := t.store.ListPatterns(ctx, memory.PatternFilter{
		Category:      stringArg(params, "pattern_category", ""),
		Type:          stringArg(params, "pattern_type", ""),
		Language:      stringArg(params, "language", ""),
		MinConfidence: floatArg(params, "min_confidence", 0.6),
		MinFrequency:  intArg(params, "min_frequency", 2),
		Limit:         intArg(params, "limit", 15),
	})
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return &Result{Success: true, Data: "No coding patterns matched the filter."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d coding patterns:\n", len(patterns))
	for i, p := range patterns {
		fmt.Fprintf(&b, "\n%d. %s [%s/%s] - seen %dx, confidence %.2f\n",
			i+1, p.Name, p.Category, p.Type, p.FrequencyCount, p.ConfidenceScore)
		if p.Description != "" {
			fmt.Fprintf(&b, "   %s\n", p.Description)
		}
		if len(p.ProjectsSeen) > 0 {
			fmt.Fprintf(&b, "   projects: %s\n", strings.Join(p.ProjectsSeen, ", "))
		}
		if len(p.Languages) > 0 {
			fmt.Fprintf(&b, "   languages: %s\n", strings.Join(p.Languages, ", "))
		}
	}
	return &Result{Success: true, Data: b.String()}, nil
}
