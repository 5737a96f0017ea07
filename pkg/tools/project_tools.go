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
)

// GetProjectsTool lists known projects, optionally with activity counters.
type GetProjectsTool struct {
	store MemoryStore
}

// NewGetProjectsTool creates the get_projects tool.
func NewGetProjectsTool(store MemoryStore) *GetProjectsTool {
	return &GetProjectsTool{store: store}
}

func (t *GetProjectsTool) Name() string { return "get_projects" }

func (t *GetProjectsTool) Description() string {
	return "List all projects, with memory and session counts unless disabled."
}

func (t *GetProjectsTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for listing projects",
		map[string]*JSONSchema{
			"include_stats": NewBooleanSchema("Include per-project activity counters").WithDefault(true),
		},
		nil,
	)
}

func (t *GetProjectsTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	projects, err := t.store.ListProjects(ctx, boolArg(params, "include_stats", true))
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return &Result{Success: true, Data: "No projects recorded."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d projects:\n", len(projects))
	for i, p := range projects {
		fmt.Fprintf(&b, "\n%d. %s", i+1, p.Name)
		if p.Stats != nil {
			fmt.Fprintf(&b, " - %d memories, %d sessions", p.Stats.MemoryCount, p.Stats.SessionCount)
			if p.Stats.LastActivity != nil {
				fmt.Fprintf(&b, ", last activity %s", p.Stats.LastActivity.Format("2006-01-02"))
			}
		}
		b.WriteString("\n")
		if p.Description != "" {
			fmt.Fprintf(&b, "   %s\n", p.Description)
		}
	}
	return &Result{Success: true, Data: b.String()}, nil
}

// GetProjectSessionsTool lists a project's sessions.
type GetProjectSessionsTool struct {
	store MemoryStore
}

// NewGetProjectSessionsTool creates the get_project_sessions tool.
func NewGetProjectSessionsTool(store MemoryStore) *GetProjectSessionsTool {
	return &GetProjectSessionsTool{store: store}
}

func (t *GetProjectSessionsTool) Name() string { return "get_project_sessions" }

func (t *GetProjectSessionsTool) Description() string {
	return "List a project's sessions, newest first."
}

func (t *GetProjectSessionsTool) InputSchema() *JSONSchema {
	return NewObjectSchema(
		"Arguments for listing a project's sessions",
		map[string]*JSONSchema{
			"project_name": NewStringSchema("Project to inspect"),
			"active_only":  NewBooleanSchema("Return only active sessions").WithDefault(false),
		},
		[]string{"project_name"},
	)
}

func (t *GetProjectSessionsTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	projectName := stringArg(params, "project_name", "")

	project, err := t.store.GetProjectByName(ctx, projectName)
	if err != nil {
		return nil, err
	}
	sessions, err := t.store.ListSessions(ctx, project.ID, boolArg(params, "active_only", false))
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return &Result{Success: true, Data: fmt.Sprintf("Project %q has no sessions.", project.Name)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sessions in %q:\n", len(sessions), project.Name)
	for i, s := range sessions {
		state := "inactive"
		if s.IsActive {
			state = "active"
		}
		fmt.Fprintf(&b, "\n%d. %s (%s, %s) - created %s, updated %s\n",
			i+1, s.Name, s.SessionType, state,
			s.CreatedAt.Format("2006-01-02"), s.UpdatedAt.Format("2006-01-02"))
	}
	return &Result{Success: true, Data: b.String()}, nil
}
