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
package embedding

import (
	"fmt"
	"sort"

	"github.com/teradata-labs/spool/pkg/memory"
)

// ModelConfig describes one embedding model known to the registry.
type ModelConfig struct {
	Name       string
	Provider   string // "ollama" or "bedrock"
	Dimensions int
	Available  bool
	Default    bool
}

// Registry maps model names to their configuration and resolves which model
// a request should use.
type Registry struct {
	models map[string]ModelConfig
}

// NewRegistry creates a registry holding the given models.
func NewRegistry(models ...ModelConfig) *Registry {
	r := &Registry{models: make(map[string]ModelConfig, len(models))}
	for _, m := range models {
		r.models[m.Name] = m
	}
	return r
}

// DefaultRegistry returns the built-in model set: a local default plus the
// larger local and Bedrock alternatives. Bedrock models start unavailable
// until credentials are configured.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ModelConfig{Name: "nomic-embed-text", Provider: "ollama", Dimensions: 768, Available: true, Default: true},
		ModelConfig{Name: "mxbai-embed-large", Provider: "ollama", Dimensions: 1024, Available: true},
		ModelConfig{Name: "amazon.titan-embed-text-v2:0", Provider: "bedrock", Dimensions: 1024},
	)
}

// Add registers or replaces a model.
func (r *Registry) Add(m ModelConfig) {
	r.models[m.Name] = m
}

// SetAvailable flips a model's availability, reporting whether it exists.
func (r *Registry) SetAvailable(name string, available bool) bool {
	m, ok := r.models[name]
	if !ok {
		return false
	}
	m.Available = available
	r.models[name] = m
	return true
}

// Lookup returns the configuration for a model name.
func (r *Registry) Lookup(name string) (ModelConfig, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Models returns all registered models sorted by name.
func (r *Registry) Models() []ModelConfig {
	out := make([]ModelConfig, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve picks the model to embed with: the given name when set, else the
// unique default, else the smallest available model by dimensions. The
// resolved model must be available.
func (r *Registry) Resolve(name string) (ModelConfig, error) {
	if name != "" {
		m, ok := r.models[name]
		if !ok {
			return ModelConfig{}, memory.NewEmbeddingError(
				fmt.Sprintf("unknown embedding model %q", name), nil).
				WithSuggestion("register the model or use the default")
		}
		if !m.Available {
			return ModelConfig{}, memory.NewEmbeddingError(
				fmt.Sprintf("embedding model %q is not available", name), nil).
				WithDetail("provider", m.Provider)
		}
		return m, nil
	}

	var defaults []ModelConfig
	for _, m := range r.models {
		if m.Default && m.Available {
			defaults = append(defaults, m)
		}
	}
	if len(defaults) == 1 {
		return defaults[0], nil
	}

	var smallest *ModelConfig
	for _, m := range r.models {
		if !m.Available {
			continue
		}
		m := m
		if smallest == nil || m.Dimensions < smallest.Dimensions ||
			(m.Dimensions == smallest.Dimensions && m.Name < smallest.Name) {
			smallest = &m
		}
	}
	if smallest == nil {
		return ModelConfig{}, memory.NewEmbeddingError("no embedding model is available", nil).
			WithSuggestion("configure an embedding provider")
	}
	return *smallest, nil
}
