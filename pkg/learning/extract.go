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
	"fmt"
	"regexp"
	"strings"

	"github.com/teradata-labs/spool/pkg/memory"
)

// Extractor turns a memory into pattern candidates. Extraction is the union
// of a memory-type-specific pass and the general keyword catalog,
// deduplicated by signature.
type Extractor struct {
	catalog []catalogEntry
}

// NewExtractor loads the embedded keyword catalog.
func NewExtractor() (*Extractor, error) {
	entries, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return &Extractor{catalog: entries}, nil
}

// Extract returns all pattern candidates found in the memory. Duplicate
// signatures keep the highest-confidence candidate.
func (e *Extractor) Extract(m *memory.Memory) []ExtractedPattern {
	lower := strings.ToLower(m.Content)

	var typed []ExtractedPattern
	switch m.MemoryType {
	case memory.TypeSystemPatterns:
		typed = extractExplicit(m.Content)
	case memory.TypeArchitecture:
		typed = extractArchitecture(lower)
	case memory.TypeDesignDecisions:
		typed = extractDesign(lower)
	case memory.TypeCode, memory.TypeImplementationNotes:
		typed = e.extractCodeRelevant(m)
	case memory.TypeTechContext:
		typed = extractTechStacks(lower)
	case memory.TypeBug:
		typed = extractAntiPatterns(lower)
	case memory.TypeLessonsLearned:
		typed = extractLessons(m.Content)
	}

	return dedupeBySignature(append(typed, e.extractGeneral(m)...))
}

var explicitPatternRe = regexp.MustCompile(`(?im)^\s*pattern:\s*(.+)$`)

// extractExplicit pulls "Pattern: NAME" declarations out of system_patterns
// memories. Explicit declarations carry the highest confidence and a boost
// applied on every reinforcement.
func extractExplicit(content string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, match := range explicitPatternRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}
		out = append(out, ExtractedPattern{
			Category:        "code_organization",
			Type:            "user_defined",
			Name:            name,
			Signature:       "explicit_" + slugify(name),
			Description:     fmt.Sprintf("User-documented pattern: %s", name),
			Confidence:      0.9,
			ConfidenceBoost: 0.2,
			DetectionMethod: DetectionUserExplicit,
		})
	}
	return out
}

var architectureStyles = []struct {
	name     string
	keywords []string
}{
	{"microservices", []string{"microservice", "micro-service", "micro service"}},
	{"monolithic", []string{"monolith"}},
	{"serverless", []string{"serverless", "faas", "lambda function"}},
	{"event_driven", []string{"event-driven", "event driven", "event sourcing"}},
	{"layered", []string{"layered architecture", "n-tier", "three-tier"}},
	{"hexagonal", []string{"hexagonal", "ports and adapters"}},
}

func extractArchitecture(lower string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, style := range architectureStyles {
		if !containsAny(lower, style.keywords) {
			continue
		}
		out = append(out, ExtractedPattern{
			Category:        "architectural",
			Type:            "architectural",
			Name:            style.name,
			Signature:       "arch_" + style.name,
			Description:     fmt.Sprintf("Architecture style: %s", strings.ReplaceAll(style.name, "_", " ")),
			Confidence:      0.8,
			DetectionMethod: DetectionMemoryType,
		})
	}
	return out
}

var designPatterns = []struct {
	name     string
	category string
}{
	{"singleton", "creational"},
	{"factory", "creational"},
	{"builder", "creational"},
	{"adapter", "structural"},
	{"decorator", "structural"},
	{"observer", "behavioral"},
	{"strategy", "behavioral"},
	{"repository", "database"},
}

func extractDesign(lower string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, dp := range designPatterns {
		if !strings.Contains(lower, dp.name) {
			continue
		}
		out = append(out, ExtractedPattern{
			Category:        dp.category,
			Type:            "design",
			Name:            dp.name,
			Signature:       "design_" + dp.name,
			Description:     fmt.Sprintf("Design pattern: %s", dp.name),
			Confidence:      0.8,
			DetectionMethod: DetectionMemoryType,
		})
	}
	return out
}

var techStacks = []struct {
	name       string
	components []string
	languages  []string
}{
	{"mean_stack", []string{"mongodb", "express", "angular", "node"}, []string{"javascript"}},
	{"mern_stack", []string{"mongodb", "express", "react", "node"}, []string{"javascript"}},
	{"lamp_stack", []string{"linux", "apache", "mysql", "php"}, []string{"php"}},
	{"jamstack", []string{"javascript", "api", "markup", "static site"}, []string{"javascript"}},
}

// extractTechStacks requires at least two stack components in the memory;
// confidence is the matched fraction of the stack.
func extractTechStacks(lower string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, stack := range techStacks {
		matches := 0
		for _, comp := range stack.components {
			if strings.Contains(lower, comp) {
				matches++
			}
		}
		if matches < 2 {
			continue
		}
		out = append(out, ExtractedPattern{
			Category:        "architectural",
			Type:            "tech_stack",
			Name:            stack.name,
			Signature:       "tech_" + stack.name,
			Description:     fmt.Sprintf("Technology stack: %s", strings.ReplaceAll(stack.name, "_", " ")),
			Languages:       stack.languages,
			Confidence:      float64(matches) / float64(len(stack.components)),
			DetectionMethod: DetectionMemoryType,
		})
	}
	return out
}

var antiPatterns = []struct {
	name     string
	keywords []string
}{
	{"god_object", []string{"god object", "god class", "does everything"}},
	{"spaghetti_code", []string{"spaghetti", "tangled code", "unstructured"}},
	{"copy_paste", []string{"copy paste", "copy-paste", "duplicated code", "code duplication"}},
	{"magic_numbers", []string{"magic number", "hardcoded value", "hard-coded value"}},
	{"callback_hell", []string{"callback hell", "nested callbacks", "pyramid of doom"}},
}

func extractAntiPatterns(lower string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, ap := range antiPatterns {
		if !containsAny(lower, ap.keywords) {
			continue
		}
		out = append(out, ExtractedPattern{
			Category:        "anti_pattern",
			Type:            "anti_pattern",
			Name:            ap.name,
			Signature:       "anti_" + ap.name,
			Description:     fmt.Sprintf("Anti-pattern reported in a bug: %s", strings.ReplaceAll(ap.name, "_", " ")),
			Confidence:      0.6,
			DetectionMethod: DetectionMemoryType,
		})
	}
	return out
}

var lessonRes = []struct {
	re     *regexp.Regexp
	prefix string
}{
	{regexp.MustCompile(`(?i)should have\s+([a-z0-9' -]+)`), "should have"},
	{regexp.MustCompile(`(?i)next time[,:]?\s+([a-z0-9' -]+)`), "next time"},
}

// extractLessons mines "should have X" and "next time Y" phrases from
// lessons_learned memories.
func extractLessons(content string) []ExtractedPattern {
	var out []ExtractedPattern
	for _, lr := range lessonRes {
		for _, match := range lr.re.FindAllStringSubmatch(content, -1) {
			phrase := truncateWords(strings.TrimSpace(match[1]), 6)
			if phrase == "" {
				continue
			}
			out = append(out, ExtractedPattern{
				Category:        "process_methodology",
				Type:            "improvement",
				Name:            phrase,
				Signature:       "lesson_" + slugify(phrase),
				Description:     fmt.Sprintf("Lesson learned: %s %s", lr.prefix, phrase),
				Confidence:      0.8,
				DetectionMethod: DetectionMemoryType,
			})
		}
	}
	return out
}

// extractGeneral runs the full keyword catalog over the memory.
func (e *Extractor) extractGeneral(m *memory.Memory) []ExtractedPattern {
	var out []ExtractedPattern
	for i := range e.catalog {
		entry := &e.catalog[i]
		if !entry.matches(m.Content) {
			continue
		}
		ep := ExtractedPattern{
			Category:        entry.Category,
			Type:            entry.Type,
			Name:            entry.Name,
			Signature:       entry.Signature,
			Description:     entry.Description,
			Confidence:      entry.Confidence,
			DetectionMethod: DetectionKeyword,
		}
		if m.MemoryType == memory.TypeCode {
			ep.Example = snippet(m.Content)
		}
		out = append(out, ep)
	}
	return out
}

// codeRelevantTypes are the catalog types that matter when reading code or
// implementation notes.
var codeRelevantTypes = map[string]struct{}{
	"error_handling": {},
	"performance":    {},
	"testing":        {},
	"api_design":     {},
}

// extractCodeRelevant filters the catalog pass down to code-relevant types
// and pins their confidence at the code-memory default.
func (e *Extractor) extractCodeRelevant(m *memory.Memory) []ExtractedPattern {
	var out []ExtractedPattern
	for _, ep := range e.extractGeneral(m) {
		if _, ok := codeRelevantTypes[ep.Type]; !ok {
			continue
		}
		ep.Confidence = 0.7
		ep.Example = snippet(m.Content)
		out = append(out, ep)
	}
	return out
}

// dedupeBySignature keeps the highest-confidence candidate per signature,
// preserving first-seen order.
func dedupeBySignature(patterns []ExtractedPattern) []ExtractedPattern {
	if len(patterns) < 2 {
		return patterns
	}
	index := make(map[string]int, len(patterns))
	out := patterns[:0]
	for _, ep := range patterns {
		if at, seen := index[ep.Signature]; seen {
			if ep.Confidence > out[at].Confidence {
				out[at] = ep
			}
			continue
		}
		index[ep.Signature] = len(out)
		out = append(out, ep)
	}
	return out
}

// typeNormalization maps extracted types onto the closed set stored in the
// pattern table's type column.
var typeNormalization = map[string]string{
	"architectural": "api_design",
	"microservices": "api_design",
	"design":        "function_structure",
	"anti_pattern":  "error_handling",
	"auth":          "security",
}

var patternTypes = map[string]struct{}{
	"api_design":         {},
	"function_structure": {},
	"error_handling":     {},
	"security":           {},
	"performance":        {},
	"testing":            {},
}

// normalizePatternType maps an extracted type onto the stored enum.
// Unrecognized types collapse to function_structure.
func normalizePatternType(t string) string {
	if mapped, ok := typeNormalization[t]; ok {
		return mapped
	}
	if _, ok := patternTypes[t]; ok {
		return t
	}
	return "function_structure"
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonAlnumRe.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// snippet trims content down to the example budget.
func snippet(content string) string {
	s := strings.TrimSpace(content)
	runes := []rune(s)
	if len(runes) <= maxExampleLen {
		return s
	}
	return string(runes[:maxExampleLen])
}
