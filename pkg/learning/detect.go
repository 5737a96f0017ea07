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
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
)

const (
	// scanLookback bounds the scheduled scan over unanalyzed memories.
	scanLookback = 7 * 24 * time.Hour
	scanLimit    = 50
	// scanParallelism caps concurrent per-memory extraction in one scan.
	scanParallelism = 4
)

// Detector extracts patterns from memories and records them as new pattern
// rows or reinforcements of existing ones.
type Detector struct {
	memories  MemoryStore
	patterns  PatternStore
	embedder  Embedder
	analyzer  Analyzer
	extractor *Extractor
	cfg       Config
	logger    *zap.Logger
	tracer    observability.Tracer
}

// NewDetector creates a pattern detector. The analyzer may be nil, which
// disables the model-augmented pass.
func NewDetector(cfg Config, memories MemoryStore, patterns PatternStore, embedder Embedder, analyzer Analyzer, logger *zap.Logger, tracer observability.Tracer) (*Detector, error) {
	extractor, err := NewExtractor()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Detector{
		memories:  memories,
		patterns:  patterns,
		embedder:  embedder,
		analyzer:  analyzer,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		tracer:    tracer,
	}, nil
}

// HandleTask runs one pattern_detection task. Real-time tasks carry a
// memoryId payload; scheduled tasks scan recent unanalyzed memories.
func (d *Detector) HandleTask(ctx context.Context, payload map[string]interface{}) (string, error) {
	if id, ok := payloadInt64(payload, "memoryId"); ok {
		m, err := d.memories.GetMemory(ctx, id)
		if err != nil {
			if memory.IsKind(err, memory.KindNotFound) {
				return fmt.Sprintf("memory %d no longer exists", id), nil
			}
			return "", err
		}
		created, reinforced, err := d.DetectForMemory(ctx, m)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("memory %d: %d patterns created, %d reinforced", id, created, reinforced), nil
	}
	return d.scanRecent(ctx)
}

// DetectForMemory extracts patterns from one memory and persists each. It
// returns how many patterns were newly created and how many reinforced.
func (d *Detector) DetectForMemory(ctx context.Context, m *memory.Memory) (created, reinforced int, err error) {
	ctx, span := d.tracer.StartSpan(ctx, "learning.detect_memory")
	defer d.tracer.EndSpan(span)
	span.SetAttribute("memory_id", m.ID)

	project, err := d.memories.GetProject(ctx, m.ProjectID)
	if err != nil {
		return 0, 0, err
	}

	for _, ep := range d.extractor.Extract(m) {
		if ep.Confidence < d.cfg.RealTime.MinConfidence {
			continue
		}
		_, inserted, err := d.record(ctx, ep, project, m.ID)
		if err != nil {
			return created, reinforced, err
		}
		if inserted {
			created++
		} else {
			reinforced++
		}
	}
	return created, reinforced, nil
}

// record upserts one extracted pattern. Only brand-new signatures are
// embedded; reinforcement never rewrites the vector.
func (d *Detector) record(ctx context.Context, ep ExtractedPattern, project *memory.Project, memoryID int64) (*memory.CodingPattern, bool, error) {
	p := &memory.CodingPattern{
		Signature:       ep.Signature,
		Category:        ep.Category,
		Type:            normalizePatternType(ep.Type),
		Name:            ep.Name,
		Description:     ep.Description,
		Languages:       ep.Languages,
		ProjectsSeen:    []string{project.Name},
		ConfidenceScore: memory.Clamp01(ep.Confidence),
		ExampleCode:     ep.Example,
		Metadata:        patternMetadata(ep, memoryID),
	}

	if _, err := d.patterns.GetBySignature(ctx, ep.Signature); err != nil {
		if !memory.IsKind(err, memory.KindNotFound) {
			return nil, false, err
		}
		vec, embErr := d.embedder.Embed(ctx, ep.Description, "")
		if embErr != nil {
			return nil, false, embErr
		}
		p.Embedding = vec
	}

	return d.patterns.RecordPattern(ctx, p, ep.ConfidenceBoost, project.ID, memoryID)
}

func patternMetadata(ep ExtractedPattern, memoryID int64) map[string]interface{} {
	meta := map[string]interface{}{
		"detection_method": ep.DetectionMethod,
		"example_memories": []interface{}{memoryID},
	}
	for k, v := range ep.Metadata {
		meta[k] = v
	}
	return meta
}

// scanRecent analyzes unanalyzed memories from the lookback window, fanning
// extraction out across a bounded worker group, then lets the analysis
// model suggest additional patterns per project.
func (d *Detector) scanRecent(ctx context.Context) (string, error) {
	mems, err := d.memories.ListUnanalyzedMemories(ctx, time.Now().Add(-scanLookback), scanLimit)
	if err != nil {
		return "", err
	}
	if len(mems) == 0 {
		return "no unanalyzed memories", nil
	}

	var created, reinforced atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for i := range mems {
		m := &mems[i]
		g.Go(func() error {
			c, r, err := d.DetectForMemory(gctx, m)
			created.Add(int64(c))
			reinforced.Add(int64(r))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	d.augmentWithLLM(ctx, mems)

	return fmt.Sprintf("scanned %d memories: %d patterns created, %d reinforced",
		len(mems), created.Load(), reinforced.Load()), nil
}

// augmentWithLLM asks the analysis model for additional patterns, one call
// per project. Provider or parse failures downgrade to the rule-based
// results already recorded.
func (d *Detector) augmentWithLLM(ctx context.Context, mems []memory.Memory) {
	if d.analyzer == nil {
		return
	}

	order := make([]int64, 0, 4)
	byProject := make(map[int64][]memory.Memory)
	for _, m := range mems {
		if _, seen := byProject[m.ProjectID]; !seen {
			order = append(order, m.ProjectID)
		}
		byProject[m.ProjectID] = append(byProject[m.ProjectID], m)
	}

	for _, projectID := range order {
		group := byProject[projectID]
		project, err := d.memories.GetProject(ctx, projectID)
		if err != nil {
			d.logger.Warn("skipping model pattern analysis, project lookup failed",
				zap.Int64("project_id", projectID), zap.Error(err))
			continue
		}

		result, err := d.analyzer.Analyze(ctx, buildPatternPrompt(project.Name, group), "", llm.AnalysisPatterns)
		if err != nil {
			d.logger.Warn("model pattern analysis failed, keeping rule-based results",
				zap.String("project", project.Name), zap.Error(err))
			continue
		}
		patterns := parsePatternResponse(result.Content)
		if len(patterns) == 0 {
			d.logger.Warn("model pattern response did not parse, keeping rule-based results",
				zap.String("project", project.Name))
			continue
		}

		for _, ep := range patterns {
			if ep.Confidence < d.cfg.RealTime.MinConfidence {
				continue
			}
			if _, _, err := d.record(ctx, ep, project, group[0].ID); err != nil {
				d.logger.Warn("failed to record model-suggested pattern",
					zap.String("signature", ep.Signature), zap.Error(err))
			}
		}
	}
}

// payloadInt64 reads an integer payload field. JSONB round-trips numbers as
// float64, so several representations are accepted.
func payloadInt64(payload map[string]interface{}, key string) (int64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
