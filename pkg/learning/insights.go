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
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

// Generator windows.
const (
	preferenceWindow = 90 * 24 * time.Hour
	evolutionWindow  = 180 * 24 * time.Hour
	teamWindow       = 30 * 24 * time.Hour
	qualityWindow    = 90 * 24 * time.Hour
)

const (
	// antipatternMinBugs is the bug count that turns a pattern/bug
	// co-occurrence into an insight.
	antipatternMinBugs = 3
	// teamFocusShare flags memory types above this share of recent work.
	teamFocusShare = 0.20
	// bugRatioWarning and lessonsRatioPraise are the per-project quality
	// cutoffs.
	bugRatioWarning    = 0.15
	bugRatioCritical   = 0.25
	lessonsRatioPraise = 0.05
	// bestPracticeLimit caps how many patterns one run narrates.
	bestPracticeLimit = 20
)

// Synthesizer derives meta insights from patterns, memories, and their
// co-occurrence with bugs. Insights are upserted by title: collisions
// average confidence, keep the larger evidence strength, and union
// metadata.
type Synthesizer struct {
	memories   MemoryStore
	patterns   PatternStore
	insights   InsightStore
	embedder   Embedder
	analyzer   Analyzer
	thresholds Thresholds
	logger     *zap.Logger
	tracer     observability.Tracer
}

// NewSynthesizer creates an insight synthesizer. The analyzer may be nil,
// which keeps best-practice narratives on the rule-based template.
func NewSynthesizer(thresholds Thresholds, memories MemoryStore, patterns PatternStore, insights InsightStore, embedder Embedder, analyzer Analyzer, logger *zap.Logger, tracer observability.Tracer) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Synthesizer{
		memories:   memories,
		patterns:   patterns,
		insights:   insights,
		embedder:   embedder,
		analyzer:   analyzer,
		thresholds: thresholds,
		logger:     logger,
		tracer:     tracer,
	}
}

// GenerateAll runs every generator and upserts the results. Generators are
// independent: one failing does not stop the others, and reruns are safe
// because upserts by title converge. The joined error of failed generators
// is returned alongside the number of insights written.
func (s *Synthesizer) GenerateAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.StartSpan(ctx, "learning.generate_insights")
	defer s.tracer.EndSpan(span)

	generators := []struct {
		name string
		run  func(context.Context) ([]memory.MetaInsight, error)
	}{
		{"best_practice", s.bestPractices},
		{"anti_pattern", s.antiPatterns},
		{"tech_preference", s.techPreferences},
		{"evolution", s.evolution},
		{"team_pattern", s.teamPatterns},
		{"quality", s.quality},
	}

	var (
		total int
		errs  []error
	)
	for _, gen := range generators {
		insights, err := gen.run(ctx)
		if err != nil {
			s.logger.Warn("insight generator failed",
				zap.String("generator", gen.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", gen.name, err))
			continue
		}
		n, err := s.upsertAll(ctx, insights)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", gen.name, err))
		}
	}
	span.SetAttribute("insights", total)
	if len(errs) > 0 {
		return total, errors.Join(errs...)
	}
	return total, nil
}

// GeneratePreferences runs only the tech-preference generator. It backs the
// preference_analysis task type.
func (s *Synthesizer) GeneratePreferences(ctx context.Context) (int, error) {
	insights, err := s.techPreferences(ctx)
	if err != nil {
		return 0, err
	}
	return s.upsertAll(ctx, insights)
}

// GenerateEvolution runs only the evolution generator. It backs the
// evolution_tracking task type.
func (s *Synthesizer) GenerateEvolution(ctx context.Context) (int, error) {
	insights, err := s.evolution(ctx)
	if err != nil {
		return 0, err
	}
	return s.upsertAll(ctx, insights)
}

// upsertAll embeds and writes each insight, then synthesizes a follow-up
// task memory for newly inserted actionable insights above low priority.
func (s *Synthesizer) upsertAll(ctx context.Context, insights []memory.MetaInsight) (int, error) {
	written := 0
	for i := range insights {
		ins := &insights[i]

		vec, err := s.embedder.Embed(ctx, ins.Title+" "+ins.Description, "")
		if err != nil {
			return written, err
		}
		ins.Embedding = vec

		stored, inserted, err := s.insights.UpsertInsight(ctx, ins)
		if err != nil {
			return written, err
		}
		written++

		if inserted && stored.Actionable && stored.Priority != memory.PriorityLow {
			if err := s.createTaskMemory(ctx, stored); err != nil {
				s.logger.Warn("failed to synthesize follow-up task memory",
					zap.String("insight", stored.Title), zap.Error(err))
			}
		}
	}
	return written, nil
}

// createTaskMemory writes a task memory into the first involved project so
// the insight shows up in that project's working set.
func (s *Synthesizer) createTaskMemory(ctx context.Context, ins *memory.MetaInsight) error {
	if len(ins.ProjectsInvolved) == 0 {
		return nil
	}
	project, err := s.memories.GetProjectByName(ctx, ins.ProjectsInvolved[0])
	if err != nil {
		return err
	}

	content := fmt.Sprintf("%s: %s\n\n%s", actionPrefix(ins.InsightType), ins.Title, ins.Description)
	vec, err := s.embedder.Embed(ctx, content, "")
	if err != nil {
		return err
	}
	model, err := s.embedder.ResolveModel("")
	if err != nil {
		return err
	}

	_, err = s.memories.InsertMemory(ctx, &memory.Memory{
		ProjectID:       project.ID,
		Content:         content,
		MemoryType:      memory.TypeTask,
		Embedding:       vec,
		EmbeddingModel:  model.Name,
		ImportanceScore: taskImportance(ins.Priority),
		Tags:            []string{"auto_generated", "insight_followup"},
	})
	return err
}

func actionPrefix(t memory.InsightType) string {
	switch t {
	case memory.InsightAntipattern, memory.InsightWarning:
		return "Review and fix"
	case memory.InsightTrend, memory.InsightOptimization:
		return "Improve code quality for"
	default:
		return "Document"
	}
}

func taskImportance(p memory.InsightPriority) float64 {
	if p == memory.PriorityHigh {
		return 0.9
	}
	return 0.7
}

// bestPractices promotes confident, widely-seen patterns outside the
// anti-pattern category.
func (s *Synthesizer) bestPractices(ctx context.Context) ([]memory.MetaInsight, error) {
	patterns, err := s.patterns.ListPatterns(ctx, memory.PatternFilter{
		MinConfidence: 0.7,
		MinFrequency:  s.thresholds.PatternMinFrequency,
		Limit:         bestPracticeLimit,
	})
	if err != nil {
		return nil, err
	}

	var out []memory.MetaInsight
	for i := range patterns {
		p := &patterns[i]
		if len(p.ProjectsSeen) < 2 || p.Category == "anti_pattern" {
			continue
		}

		occurrences, err := s.patterns.OccurrenceCount(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		description, confidence := s.bestPracticeNarrative(ctx, p, occurrences)
		out = append(out, memory.MetaInsight{
			InsightType:        memory.InsightBestPractice,
			Category:           p.Category,
			Title:              fmt.Sprintf("Best Practice: %s", p.Name),
			Description:        description,
			ConfidenceLevel:    memory.Clamp01(confidence),
			EvidenceStrength:   evidenceFromCount(occurrences),
			ProjectsInvolved:   p.ProjectsSeen,
			SupportingPatterns: []int64{p.ID},
			Metadata: map[string]interface{}{
				"frequency": p.FrequencyCount,
				"projects":  len(p.ProjectsSeen),
			},
			Actionable: true,
			Priority:   memory.PriorityMedium,
		})
	}
	return out, nil
}

// bestPracticeNarrative prefers the analysis model's narrative and falls
// back to a rule-based template.
func (s *Synthesizer) bestPracticeNarrative(ctx context.Context, p *memory.CodingPattern, occurrences int) (string, float64) {
	fallback := fmt.Sprintf(
		"The %s pattern (%s) appears %d times across %d projects at %.0f%% confidence. Reuse at this level suggests it should be the default approach.",
		p.Name, p.Category, p.FrequencyCount, len(p.ProjectsSeen), p.ConfidenceScore*100)
	if s.analyzer == nil {
		return fallback, p.ConfidenceScore
	}

	result, err := s.analyzer.Analyze(ctx, buildInsightPrompt(p, occurrences), "", llm.AnalysisInsights)
	if err != nil {
		s.logger.Warn("model narrative failed, using rule-based summary",
			zap.String("pattern", p.Name), zap.Error(err))
		return fallback, p.ConfidenceScore
	}
	content := strings.TrimSpace(result.Content)
	if content == "" {
		return fallback, p.ConfidenceScore
	}

	confidence := result.Confidence
	if c, ok := parseConfidence(content); ok {
		confidence = c
	}
	return content, confidence
}

// antiPatterns flags patterns whose occurrences cluster with bug reports in
// the same project within a seven-day window.
func (s *Synthesizer) antiPatterns(ctx context.Context) ([]memory.MetaInsight, error) {
	rows, err := s.patterns.BugCoOccurrences(ctx, 1)
	if err != nil {
		return nil, err
	}

	type agg struct {
		patternID int64
		name      string
		bugs      int
		projects  []string
	}
	index := map[int64]int{}
	var aggs []*agg
	for _, row := range rows {
		at, seen := index[row.PatternID]
		if !seen {
			at = len(aggs)
			index[row.PatternID] = at
			aggs = append(aggs, &agg{patternID: row.PatternID, name: row.PatternName})
		}
		aggs[at].bugs += row.Count
		aggs[at].projects = append(aggs[at].projects, row.ProjectName)
	}

	var out []memory.MetaInsight
	for _, a := range aggs {
		if a.bugs < antipatternMinBugs {
			continue
		}
		priority := memory.PriorityMedium
		if a.bugs >= s.thresholds.InsightMinEvidence {
			priority = memory.PriorityHigh
		}
		out = append(out, memory.MetaInsight{
			InsightType: memory.InsightAntipattern,
			Category:    "anti_pattern",
			Title:       fmt.Sprintf("Anti-pattern: %s - Potential Issue", a.name),
			Description: fmt.Sprintf(
				"Pattern %q was recorded within seven days of %d bug reports across %d projects. Review whether the pattern contributes to the failures.",
				a.name, a.bugs, len(a.projects)),
			ConfidenceLevel:    math.Min(0.9, 0.5+0.05*float64(a.bugs)),
			EvidenceStrength:   evidenceFromCount(a.bugs),
			ProjectsInvolved:   memory.UniqueStrings(a.projects),
			SupportingPatterns: []int64{a.patternID},
			Metadata:           map[string]interface{}{"bug_count": a.bugs},
			Actionable:         true,
			Priority:           priority,
		})
	}
	return out, nil
}

var techMatchers = []struct {
	name string
	re   *regexp.Regexp
}{
	{"golang", regexp.MustCompile(`(?i)\bgolang\b`)},
	{"typescript", regexp.MustCompile(`(?i)\btypescript\b`)},
	{"javascript", regexp.MustCompile(`(?i)\bjavascript\b`)},
	{"python", regexp.MustCompile(`(?i)\bpython\b`)},
	{"rust", regexp.MustCompile(`(?i)\brust\b`)},
	{"java", regexp.MustCompile(`(?i)\bjava\b`)},
	{"react", regexp.MustCompile(`(?i)\breact\b`)},
	{"postgresql", regexp.MustCompile(`(?i)\bpostgres(ql)?\b`)},
	{"mysql", regexp.MustCompile(`(?i)\bmysql\b`)},
	{"mongodb", regexp.MustCompile(`(?i)\bmongodb\b`)},
	{"redis", regexp.MustCompile(`(?i)\bredis\b`)},
	{"kafka", regexp.MustCompile(`(?i)\bkafka\b`)},
	{"docker", regexp.MustCompile(`(?i)\bdocker\b`)},
	{"kubernetes", regexp.MustCompile(`(?i)\bkubernetes\b|\bk8s\b`)},
	{"graphql", regexp.MustCompile(`(?i)\bgraphql\b`)},
	{"grpc", regexp.MustCompile(`(?i)\bgrpc\b`)},
}

// techPreferences mines technology mentions from context-carrying memory
// types over the last 90 days.
func (s *Synthesizer) techPreferences(ctx context.Context) ([]memory.MetaInsight, error) {
	mems, err := s.memories.ListMemoriesByTypes(ctx,
		[]memory.MemoryType{memory.TypeTechContext, memory.TypeDesignDecisions, memory.TypeArchitecture},
		time.Now().Add(-preferenceWindow))
	if err != nil {
		return nil, err
	}

	type stat struct {
		count      int
		projects   map[int64]struct{}
		importance float64
	}
	stats := map[string]*stat{}
	for i := range mems {
		m := &mems[i]
		for _, tech := range techMatchers {
			if !tech.re.MatchString(m.Content) {
				continue
			}
			st := stats[tech.name]
			if st == nil {
				st = &stat{projects: map[int64]struct{}{}}
				stats[tech.name] = st
			}
			st.count++
			st.projects[m.ProjectID] = struct{}{}
			st.importance += m.ImportanceScore
		}
	}

	var out []memory.MetaInsight
	for _, tech := range techMatchers {
		st := stats[tech.name]
		if st == nil || st.count < 3 || len(st.projects) < s.thresholds.PreferenceMinProjects {
			continue
		}
		projects, err := s.projectNames(ctx, st.projects)
		if err != nil {
			return nil, err
		}
		avgImportance := st.importance / float64(st.count)
		out = append(out, memory.MetaInsight{
			InsightType: memory.InsightPreference,
			Category:    "tech_preference",
			Title:       fmt.Sprintf("Tech Preference: %s", tech.name),
			Description: fmt.Sprintf(
				"%s is referenced in %d memories across %d projects (average importance %.2f). The team consistently reaches for it.",
				tech.name, st.count, len(st.projects), avgImportance),
			ConfidenceLevel:  memory.Clamp01(0.5 + 0.05*float64(st.count)),
			EvidenceStrength: evidenceFromCount(st.count),
			ProjectsInvolved: projects,
			Metadata: map[string]interface{}{
				"mentions":       st.count,
				"avg_importance": avgImportance,
			},
			Actionable: false,
			Priority:   memory.PriorityLow,
		})
	}
	return out, nil
}

// evolution compares each pattern's first and last monthly occurrence
// buckets over six months and reports growing or declining usage.
func (s *Synthesizer) evolution(ctx context.Context) ([]memory.MetaInsight, error) {
	rows, err := s.patterns.MonthlyOccurrences(ctx, time.Now().Add(-evolutionWindow))
	if err != nil {
		return nil, err
	}

	type series struct {
		patternID int64
		name      string
		buckets   []memory.MonthlyOccurrence
	}
	index := map[int64]int{}
	var all []*series
	for _, row := range rows {
		at, seen := index[row.PatternID]
		if !seen {
			at = len(all)
			index[row.PatternID] = at
			all = append(all, &series{patternID: row.PatternID, name: row.PatternName})
		}
		all[at].buckets = append(all[at].buckets, row)
	}

	var out []memory.MetaInsight
	for _, sr := range all {
		if len(sr.buckets) < 3 {
			continue
		}
		sort.Slice(sr.buckets, func(i, j int) bool {
			return sr.buckets[i].Month.Before(sr.buckets[j].Month)
		})

		first := sr.buckets[0].Count
		last := sr.buckets[len(sr.buckets)-1].Count
		if first <= 0 {
			continue
		}
		change := math.Abs(float64(last-first)) / float64(first)
		if change < s.thresholds.EvolutionMinChange {
			continue
		}

		var direction string
		priority := memory.PriorityLow
		switch {
		case float64(last) > float64(first)*1.5:
			direction = "growing"
		case float64(last) < float64(first)*0.5:
			direction = "declining"
			priority = memory.PriorityMedium
		default:
			continue
		}

		total := 0
		for _, b := range sr.buckets {
			total += b.Count
		}
		out = append(out, memory.MetaInsight{
			InsightType: memory.InsightTrend,
			Category:    "evolution",
			Title:       fmt.Sprintf("Trend: %s usage %s", sr.name, direction),
			Description: fmt.Sprintf(
				"Pattern %q moved from %d to %d monthly sightings over %d tracked months.",
				sr.name, first, last, len(sr.buckets)),
			ConfidenceLevel:    memory.Clamp01(0.5 + 0.05*float64(len(sr.buckets))),
			EvidenceStrength:   evidenceFromCount(total),
			SupportingPatterns: []int64{sr.patternID},
			Metadata: map[string]interface{}{
				"direction":   direction,
				"months":      len(sr.buckets),
				"first_count": first,
				"last_count":  last,
			},
			Actionable: direction == "declining",
			Priority:   priority,
		})
	}
	return out, nil
}

// teamPatterns flags memory types that dominate the last 30 days of
// activity.
func (s *Synthesizer) teamPatterns(ctx context.Context) ([]memory.MetaInsight, error) {
	counts, err := s.memories.CountByTypeSince(ctx, time.Now().Add(-teamWindow))
	if err != nil {
		return nil, err
	}

	total := 0
	types := make([]memory.MemoryType, 0, len(counts))
	for mt, n := range counts {
		total += n
		types = append(types, mt)
	}
	if total == 0 {
		return nil, nil
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var out []memory.MetaInsight
	for _, mt := range types {
		share := float64(counts[mt]) / float64(total)
		if share <= teamFocusShare {
			continue
		}
		out = append(out, memory.MetaInsight{
			InsightType: memory.InsightTrend,
			Category:    "team_pattern",
			Title:       fmt.Sprintf("Team Focus: %s memories", mt),
			Description: fmt.Sprintf(
				"%d of %d memories (%.0f%%) recorded in the last 30 days are %s entries.",
				counts[mt], total, share*100, mt),
			ConfidenceLevel:  memory.Clamp01(0.4 + share),
			EvidenceStrength: evidenceFromCount(counts[mt]),
			Metadata: map[string]interface{}{
				"share": share,
				"count": counts[mt],
				"total": total,
			},
			Actionable: false,
			Priority:   memory.PriorityLow,
		})
	}
	return out, nil
}

// quality reviews each project's bug and lessons-learned ratios over the
// last 90 days.
func (s *Synthesizer) quality(ctx context.Context) ([]memory.MetaInsight, error) {
	rows, err := s.memories.ProjectTypeCounts(ctx, time.Now().Add(-qualityWindow))
	if err != nil {
		return nil, err
	}

	type projectStat struct {
		name    string
		total   int
		bugs    int
		lessons int
	}
	index := map[int64]int{}
	var all []*projectStat
	for _, row := range rows {
		at, seen := index[row.ProjectID]
		if !seen {
			at = len(all)
			index[row.ProjectID] = at
			all = append(all, &projectStat{name: row.ProjectName})
		}
		ps := all[at]
		ps.total += row.Count
		switch row.MemoryType {
		case memory.TypeBug:
			ps.bugs += row.Count
		case memory.TypeLessonsLearned:
			ps.lessons += row.Count
		}
	}

	var out []memory.MetaInsight
	for _, ps := range all {
		if ps.total == 0 {
			continue
		}
		bugRatio := float64(ps.bugs) / float64(ps.total)
		lessonsRatio := float64(ps.lessons) / float64(ps.total)

		if bugRatio > bugRatioWarning {
			priority := memory.PriorityMedium
			if bugRatio > bugRatioCritical {
				priority = memory.PriorityHigh
			}
			out = append(out, memory.MetaInsight{
				InsightType: memory.InsightWarning,
				Category:    "quality",
				Title:       fmt.Sprintf("Quality Alert: elevated bug rate in %s", ps.name),
				Description: fmt.Sprintf(
					"%d of %d memories (%.0f%%) recorded for %s in the last 90 days are bug reports.",
					ps.bugs, ps.total, bugRatio*100, ps.name),
				ConfidenceLevel:  memory.Clamp01(0.5 + bugRatio),
				EvidenceStrength: evidenceFromCount(ps.bugs),
				ProjectsInvolved: []string{ps.name},
				Metadata: map[string]interface{}{
					"bug_ratio": bugRatio,
					"bug_count": ps.bugs,
				},
				Actionable: true,
				Priority:   priority,
			})
		}
		if lessonsRatio > lessonsRatioPraise {
			out = append(out, memory.MetaInsight{
				InsightType: memory.InsightBestPractice,
				Category:    "quality",
				Title:       fmt.Sprintf("Learning Culture: %s documents lessons learned", ps.name),
				Description: fmt.Sprintf(
					"%s recorded %d lessons-learned memories (%.0f%% of its activity) in the last 90 days.",
					ps.name, ps.lessons, lessonsRatio*100),
				ConfidenceLevel:  memory.Clamp01(0.5 + lessonsRatio*2),
				EvidenceStrength: evidenceFromCount(ps.lessons),
				ProjectsInvolved: []string{ps.name},
				Metadata: map[string]interface{}{
					"lessons_ratio": lessonsRatio,
					"lessons_count": ps.lessons,
				},
				Actionable: false,
				Priority:   memory.PriorityLow,
			})
		}
	}
	return out, nil
}

// projectNames resolves project IDs to their sorted names. Projects deleted
// since the memory was written are skipped.
func (s *Synthesizer) projectNames(ctx context.Context, ids map[int64]struct{}) ([]string, error) {
	names := make([]string, 0, len(ids))
	for id := range ids {
		p, err := s.memories.GetProject(ctx, id)
		if err != nil {
			if memory.IsKind(err, memory.KindNotFound) {
				continue
			}
			return nil, err
		}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

// evidenceFromCount maps an evidence count onto [0,1], saturating at ten.
func evidenceFromCount(n int) float64 {
	return memory.Clamp01(float64(n) / 10.0)
}
