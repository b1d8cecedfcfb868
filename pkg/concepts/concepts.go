// Package concepts loads the clinical concept library: named shorthands
// (diagnoses, drug bundles, lab panels) the LLM may reference when building
// queries. Concepts are prompt context only; they never bypass validation.
package concepts

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Concept is one named clinical shorthand.
type Concept struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Condition   string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	ICD10       []string `yaml:"icd10,omitempty" json:"icd10,omitempty"`
	ICD9        []string `yaml:"icd9,omitempty" json:"icd9,omitempty"`
	Tests       []string `yaml:"tests,omitempty" json:"tests,omitempty"`
	BundleLogic string   `yaml:"bundle_logic,omitempty" json:"bundle_logic,omitempty"`
	Tables      []string `yaml:"tables,omitempty" json:"tables,omitempty"`
	Notes       string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Library is an immutable, name-indexed concept collection.
type Library struct {
	concepts []Concept
	byName   map[string]*Concept
}

type libraryFile struct {
	Concepts []Concept `yaml:"concepts"`
}

// Load reads the concept library from a YAML file. A missing library is a
// startup error; an empty one is fine.
func Load(path string, logger *zap.Logger) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading concepts: %w", err)
	}
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing concepts: %w", err)
	}

	lib := New(file.Concepts)
	if logger != nil {
		logger.Info("concept library loaded", zap.Int("concepts", len(file.Concepts)))
	}
	return lib, nil
}

// New builds a library from an in-memory concept list.
func New(concepts []Concept) *Library {
	lib := &Library{
		concepts: concepts,
		byName:   make(map[string]*Concept, len(concepts)),
	}
	for i := range lib.concepts {
		lib.byName[strings.ToLower(lib.concepts[i].Name)] = &lib.concepts[i]
	}
	return lib
}

// All returns every concept sorted by name.
func (l *Library) All() []Concept {
	out := append([]Concept(nil), l.concepts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks a concept up by case-insensitive name.
func (l *Library) Get(name string) (*Concept, bool) {
	c, ok := l.byName[strings.ToLower(name)]
	return c, ok
}

// ByNames resolves a list of concept names, silently skipping unknowns.
func (l *Library) ByNames(names []string) []Concept {
	var out []Concept
	for _, n := range names {
		if c, ok := l.Get(n); ok {
			out = append(out, *c)
		}
	}
	return out
}

// Search matches the query as a case-insensitive substring of the name or
// description.
func (l *Library) Search(query string) []Concept {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []Concept
	for _, c := range l.concepts {
		if strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Description), query) {
			out = append(out, c)
		}
	}
	return out
}

// Len reports the number of concepts.
func (l *Library) Len() int { return len(l.concepts) }
