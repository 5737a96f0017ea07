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
	"strings"

	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
)

// promptMemoryBudget bounds the tokens spent on memory excerpts so the
// analysis prompt leaves room for instructions and the response.
const promptMemoryBudget = 3000

// buildPatternPrompt assembles the batch pattern-analysis prompt for one
// project. Memory excerpts are truncated individually and cut off once the
// token budget is spent.
func buildPatternPrompt(projectName string, memories []memory.Memory) string {
	var b strings.Builder
	b.WriteString("Analyze the following developer memories for recurring coding patterns.\n\n")
	fmt.Fprintf(&b, "## Project\n%s\n\n## Memories\n", projectName)

	counter := llm.GetTokenCounter()
	used := 0
	for i := range memories {
		m := &memories[i]
		excerpt := snippet(m.Content)
		tokens := counter.CountTokens(excerpt)
		if used+tokens > promptMemoryBudget {
			fmt.Fprintf(&b, "\n(%d additional memories omitted for length)\n", len(memories)-i)
			break
		}
		used += tokens
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, m.MemoryType, excerpt)
	}

	b.WriteString(`
## Instructions
Identify recurring, reusable patterns supported by at least two memories.
Report each pattern as a numbered entry:

1. **Pattern Name**
   - category: one word, lowercase with underscores
   - description: one or two sentences
   - confidence: 0.0-1.0
`)
	return b.String()
}

// buildInsightPrompt asks for a best-practice narrative for one pattern.
func buildInsightPrompt(p *memory.CodingPattern, occurrences int) string {
	var b strings.Builder
	b.WriteString("Assess the following coding pattern observed across multiple projects.\n\n")
	b.WriteString("## Pattern Information\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Category: %s\n", p.Category)
	fmt.Fprintf(&b, "- Sightings: %d (%d recorded occurrences)\n", p.FrequencyCount, occurrences)
	fmt.Fprintf(&b, "- Projects: %s\n", strings.Join(p.ProjectsSeen, ", "))
	fmt.Fprintf(&b, "- Confidence: %.2f\n", p.ConfidenceScore)
	if p.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", p.Description)
	}
	b.WriteString(`
## Instructions
Write two or three sentences explaining why this pattern works well and
when to apply it. End with a line of the form "confidence: 0.x".
`)
	return b.String()
}

// buildCorrelationPrompt asks for an outcome-correlation classification.
func buildCorrelationPrompt(patternName string, outcomes []memory.PatternOutcome) string {
	var b strings.Builder
	b.WriteString("Classify how this coding pattern correlates with project outcomes.\n\n")
	fmt.Fprintf(&b, "## Pattern Information\nName: %s\n\n## Recorded Outcomes\n", patternName)
	for i, o := range outcomes {
		fmt.Fprintf(&b, "%d. %s (value %.2f)", i+1, o.OutcomeType, o.Value)
		if o.Description != "" {
			fmt.Fprintf(&b, ": %s", snippet(o.Description))
		}
		b.WriteByte('\n')
	}
	b.WriteString(`
## Instructions
Classify the correlation strength as exactly one of: strong positive,
moderate positive, neutral, moderate negative, strong negative.
Explain the classification in one or two sentences and include a line of
the form "confidence: 0.x".
`)
	return b.String()
}
