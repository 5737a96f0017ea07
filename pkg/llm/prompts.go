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
package llm

// systemPromptFor selects the system prompt for an analysis type.
func systemPromptFor(analysisType AnalysisType) string {
	switch analysisType {
	case AnalysisPatterns:
		return patternAnalysisPrompt
	case AnalysisInsights:
		return insightGenerationPrompt
	case AnalysisOutcomes:
		return outcomeCorrelationPrompt
	default:
		return generalAnalysisPrompt
	}
}

const patternAnalysisPrompt = `You are a senior software engineer analyzing development memories to identify recurring coding patterns.

For each pattern you find, report:
1. **Pattern Name** - a short descriptive name
2. Category: one of architectural, creational, structural, behavioral, concurrency, data_processing, api_patterns, messaging, database, error_handling, testing, security, performance
3. Description: what the pattern does and when it applies
4. Languages: programming languages it was observed in
5. Confidence: 0.0-1.0 based on how clearly the memories demonstrate it

Number each pattern. Only report patterns with concrete evidence in the provided memories. Do not invent patterns.`

const insightGenerationPrompt = `You are a senior software engineer synthesizing insights from a team's coding patterns and project history.

Given pattern data, produce a concise narrative covering:
1. What the pattern achieves and why teams adopt it
2. Trade-offs or risks worth flagging
3. A concrete, actionable recommendation

Keep the analysis grounded in the data provided. State a confidence: 0.0-1.0 at the end.`

const outcomeCorrelationPrompt = `You are a senior software engineer analyzing whether coding patterns correlate with project outcomes.

Given a pattern and its recorded outcomes (successes, failures, bugs, performance changes), classify the correlation as one of: strong_positive, moderate_positive, neutral, moderate_negative, strong_negative.

Explain the classification in 2-4 sentences and state a confidence: 0.0-1.0. Weigh sample size: few outcomes warrant neutral or low confidence.`

const generalAnalysisPrompt = `You are a senior software engineer analyzing development history for a team. Answer concisely and ground every claim in the provided data.`
