// Package extract hosts the per-language syntactic extractors. Extractors
// are pure line-level scanners: no network, deterministic output, and
// tolerant of broken syntax (they emit whatever they can recognise and never
// fail on malformed source). A returned error means the file itself could
// not be read.
package extract

import (
	"sort"

	"github.com/docbot-dev/docbot/pkg/models"
)

// Extractor produces structured facts from one source file.
type Extractor interface {
	Extract(absPath, relPath, language string) (*models.FileExtraction, error)
}

// Registry dispatches a detected language name to its extractor.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with all shipped extractors registered.
func NewRegistry() *Registry {
	r := &Registry{extractors: map[string]Extractor{}}
	r.Register("Python", &pythonExtractor{})
	r.Register("Go", &goExtractor{})
	r.Register("JavaScript", &scriptExtractor{})
	r.Register("TypeScript", &scriptExtractor{typescript: true})
	r.Register("Rust", &rustExtractor{})
	r.Register("Java", &javaExtractor{})
	r.Register("Ruby", &rubyExtractor{})
	r.Register("Shell", &shellExtractor{})
	return r
}

// Register adds or replaces the extractor for a language.
func (r *Registry) Register(language string, e Extractor) {
	r.extractors[language] = e
}

// Get returns the extractor for a language, or nil when none is registered.
func (r *Registry) Get(language string) Extractor {
	return r.extractors[language]
}

// Languages lists the registered language names, sorted.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.extractors))
	for lang := range r.extractors {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
