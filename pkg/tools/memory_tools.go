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

// memorySnippetLen caps the content excerpt shown per search hit.
const memorySnippetLen = 300

// StoreMemoryTool ingests one memory: it upserts the project and session,
// embeds the content, inserts the row, and notifies the learning pipeline.
type StoreMemoryTool struct {
	store    MemoryStore
	embedder Embedder
	notifier MemoryNotifier
}

// NewStoreMemoryTool creates the store_memory tool. The notifier may be nil
// when no learning pipeline is attached.
func NewStoreMemoryTool(store MemoryStore, embedder Embedder, notifier MemoryNotifier) *StoreMemoryTool {
	return &StoreMemoryTool{store: store, embedder: embedder, notifier: notifier}
}

func (t *StoreMemoryTool) Name() string { return "store_memory" }

func (t *StoreMemoryTool) Description() string {
	return "Store a development memory in a project. The content is embedded for semantic search and feeds the pattern learning pipeline."
}

func (t *StoreMemoryTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for storing a memory",
		map[string]*JSONSchema{
			"content":      NewStringSchema("The memory content to store"),
			"project_name": NewStringSchema("Project the memory belongs to (created on first use)"),
			"session_name": NewStringSchema("Session within the project").WithDefault("default"),
			"memory_type":  NewStringSchema("Memory classification, e.g. code, architecture, bug, lessons_learned").WithDefault("general"),
			"importance_score": NewNumberSchema("Importance from 0 to 1").
				WithDefault(0.5).WithRange(floatP(0), floatP(1)),
			"tags": NewArraySchema("Free-form tags", NewStringSchema("One tag")),
		},
		[]string{"content", "project_name"},
	)
}

func (t *StoreMemoryTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	content := stringArg(params, "content", "")
	projectName := stringArg(params, "project_name", "")
	sessionName := stringArg(params, "session_name", "default")
	memoryType := stringArg(params, "memory_type", string(memory.TypeGeneral))
	importance := floatArg(params, "importance_score", 0.5)
	tags := stringsArg(params, "tags")

	project, err := t.store.UpsertProject(ctx, projectName, "")
	if err != nil {
		return nil, err
	}
	session, err := t.store.UpsertSession(ctx, project.ID, sessionName, memory.SessionMemory)
	if err != nil {
		return nil, err
	}

	vec, err := t.embedder.Embed(ctx, content, "")
	if err != nil {
		return nil, err
	}
	model, err := t.embedder.ResolveModel("")
	if err != nil {
		return nil, err
	}

	id, err := t.store.InsertMemory(ctx, &memory.Memory{
		ProjectID:       project.ID,
		SessionID:       &session.ID,
		Content:         content,
		MemoryType:      memory.MemoryType(memoryType),
		Embedding:       vec,
		EmbeddingModel:  model.Name,
		ImportanceScore: importance,
		Tags:            tags,
	})
	if err != nil {
		return nil, err
	}

	if t.notifier != nil {
		t.notifier.OnMemoryAdded(ctx, id, project.ID)
	}

	return &Result{
		Success: true,
		Data: fmt.Sprintf("Stored memory %d in project %q (session %q, type %s).",
			id, project.Name, session.Name, memoryType),
	}, nil
}

// SearchMemoriesTool runs semantic search over stored memories.
type SearchMemoriesTool struct {
	store    MemoryStore
	embedder Embedder
}

// NewSearchMemoriesTool creates the search_memories tool.
func NewSearchMemoriesTool(store MemoryStore, embedder Embedder) *SearchMemoriesTool {
	return &SearchMemoriesTool{store: store, embedder: embedder}
}

func (t *SearchMemoriesTool) Name() string { return "search_memories" }

func (t *SearchMemoriesTool) Description() string {
	return "Search memories by semantic similarity, optionally filtered by project and memory type."
}

func (t *SearchMemoriesTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for searching memories",
		map[string]*JSONSchema{
			"query":        NewStringSchema("Natural-language search query"),
			"project_name": NewStringSchema("Restrict results to one project"),
			"memory_type":  NewStringSchema("Restrict results to one memory type"),
			"limit": NewIntegerSchema("Maximum results to return").
				WithDefault(10).WithRange(floatP(1), floatP(50)),
			"min_similarity": NewNumberSchema("Minimum cosine similarity from 0 to 1").
				WithDefault(0.7).WithRange(floatP(0), floatP(1)),
		},
		[]string{"query"},
	)
}

func (t *SearchMemoriesTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	query := stringArg(params, "query", "")
	minSimilarity := floatArg(params, "min_similarity", 0.7)

	vec, err := t.embedder.Embed(ctx, query, "")
	if err != nil {
		return nil, err
	}

	results, err := t.store.SearchMemories(ctx, memory.SearchParams{
		QueryEmbedding: vec,
		ProjectName:    stringArg(params, "project_name", ""),
		MemoryType:     stringArg(params, "memory_type", ""),
		Limit:          intArg(params, "limit", 10),
		MinSimilarity:  minSimilarity,
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Result{
			Success: true,
			Data:    fmt.Sprintf("No memories matched %q at similarity >= %.2f.", query, minSimilarity),
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories for %q:\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. [%.2f] %s/%s %s (importance %.1f)\n",
			i+1, r.Similarity, r.ProjectName, r.Memory.MemoryType,
			r.Memory.CreatedAt.Format("2006-01-02"), r.Memory.ImportanceScore)
		fmt.Fprintf(&b, "   %s\n", excerpt(r.Memory.Content, memorySnippetLen))
		if len(r.Memory.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(r.Memory.Tags, ", "))
		}
	}
	return &Result{Success: true, Data: b.String()}, nil
}
