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
	_ "embed"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/spool/pkg/memory"
)

//go:embed catalog.yaml
var catalogYAML []byte

// catalogEntry is one keyword-detectable pattern from the embedded catalog.
type catalogEntry struct {
	Name        string   `yaml:"name"`
	Signature   string   `yaml:"signature"`
	Category    string   `yaml:"category"`
	Type        string   `yaml:"type"`
	Confidence  float64  `yaml:"confidence"`
	Keywords    []string `yaml:"keywords"`
	Description string   `yaml:"description"`

	matchers []*regexp.Regexp
}

// matches reports whether any keyword of the entry occurs in content.
func (e *catalogEntry) matches(content string) bool {
	for _, re := range e.matchers {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

var (
	catalogOnce sync.Once
	catalogData []catalogEntry
	catalogErr  error
)

// loadCatalog parses the embedded catalog and compiles its keyword
// matchers, once per process. Keywords match case-insensitively on word
// boundaries, so "rest" hits "REST endpoint" but not "restart".
func loadCatalog() ([]catalogEntry, error) {
	catalogOnce.Do(func() {
		var doc struct {
			Patterns []catalogEntry `yaml:"patterns"`
		}
		if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
			catalogErr = memory.NewParseError("failed to parse pattern catalog", err)
			return
		}
		for i := range doc.Patterns {
			e := &doc.Patterns[i]
			for _, kw := range e.Keywords {
				re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
				if err != nil {
					catalogErr = memory.NewParseError("failed to compile catalog keyword "+kw, err)
					return
				}
				e.matchers = append(e.matchers, re)
			}
		}
		catalogData = doc.Patterns
	})
	return catalogData, catalogErr
}
