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
	"regexp"
	"strconv"
	"strings"

	"github.com/teradata-labs/spool/pkg/memory"
)

// Analysis responses are parsed heuristically. Parsers are deliberately
// lenient: a response that does not follow the expected format yields an
// empty result, never an error, so the rule-based path stays the source of
// truth.

var (
	numberedHeaderRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*\*\*(.+?)\*\*`)
	confidenceRe     = regexp.MustCompile(`(?i)confidence[:\s]+([0-9]*\.?[0-9]+)`)
	categoryLineRe   = regexp.MustCompile(`(?im)^\s*[-*]?\s*category:\s*([a-z_]+)`)
	descLineRe       = regexp.MustCompile(`(?im)^\s*[-*]?\s*description:\s*(.+)$`)
)

// parsePatternResponse extracts pattern candidates from a numbered-header
// analysis response.
func parsePatternResponse(content string) []ExtractedPattern {
	headers := numberedHeaderRe.FindAllStringSubmatchIndex(content, -1)
	if len(headers) == 0 {
		return nil
	}

	var out []ExtractedPattern
	for i, loc := range headers {
		name := strings.TrimSpace(content[loc[2]:loc[3]])
		if name == "" {
			continue
		}
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		section := content[loc[1]:end]

		ep := ExtractedPattern{
			Category:        "code_organization",
			Type:            "function_structure",
			Name:            name,
			Signature:       "llm_" + slugify(name),
			Confidence:      0.6,
			DetectionMethod: DetectionLLM,
		}
		if m := categoryLineRe.FindStringSubmatch(section); m != nil {
			ep.Category = m[1]
			ep.Type = m[1]
		}
		if m := descLineRe.FindStringSubmatch(section); m != nil {
			ep.Description = strings.TrimSpace(m[1])
		}
		if ep.Description == "" {
			ep.Description = "Model-identified pattern: " + name
		}
		if c, ok := parseConfidence(section); ok {
			ep.Confidence = c
		}
		out = append(out, ep)
	}
	return out
}

// parseConfidence extracts the first "confidence: 0.x" value. Values above
// one are read as percentages.
func parseConfidence(s string) (float64, bool) {
	m := confidenceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v > 1 {
		if v > 100 {
			return 0, false
		}
		v /= 100
	}
	return memory.Clamp01(v), true
}

// parseCorrelationResponse reads a correlation strength keyword and an
// optional numeric confidence (reported as -1 when absent). The second
// return is false when no strength keyword was found.
func parseCorrelationResponse(content string) (memory.CorrelationStrength, float64, bool) {
	lower := strings.ToLower(content)

	var strength memory.CorrelationStrength
	switch {
	case strings.Contains(lower, "strong positive") || strings.Contains(lower, "strongly positive"):
		strength = memory.StrongPositive
	case strings.Contains(lower, "moderate positive") || strings.Contains(lower, "moderately positive"):
		strength = memory.ModeratePositive
	case strings.Contains(lower, "strong negative") || strings.Contains(lower, "strongly negative"):
		strength = memory.StrongNegative
	case strings.Contains(lower, "moderate negative") || strings.Contains(lower, "moderately negative"):
		strength = memory.ModerateNegative
	case strings.Contains(lower, "neutral"):
		strength = memory.NeutralStrength
	default:
		return "", 0, false
	}

	confidence := -1.0
	if c, ok := parseConfidence(content); ok {
		confidence = c
	}
	return strength, confidence, true
}
