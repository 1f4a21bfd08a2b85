// Package search ranks documentation scopes against free-text queries with
// BM25. The index is built once per DocsIndex and is immutable afterwards,
// so concurrent searches need no locking.
package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/docbot-dev/docbot/pkg/models"
)

// BM25 parameters. k1 controls term-frequency saturation, b the document
// length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "with": true,
}

// Hit is one ranked search result.
type Hit struct {
	ScopeID string  `json:"scope_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary,omitempty"`
}

type document struct {
	scopeID string
	title   string
	summary string
	terms   map[string]int
	length  int
}

// Index is a BM25 index over the scopes of one DocsIndex.
type Index struct {
	docs      []document
	docFreq   map[string]int
	avgLength float64
}

// Build indexes each scope's title, summary, key files and public symbol
// names as one document.
func Build(idx *models.DocsIndex) *Index {
	s := &Index{docFreq: make(map[string]int)}
	var total int

	for i := range idx.Scopes {
		scope := &idx.Scopes[i]
		var text strings.Builder
		text.WriteString(scope.Title)
		text.WriteString(" ")
		text.WriteString(scope.Summary)
		for _, f := range scope.KeyFiles {
			text.WriteString(" ")
			text.WriteString(f)
		}
		for _, sym := range scope.PublicAPI {
			text.WriteString(" ")
			text.WriteString(sym.Name)
		}

		tokens := Tokenize(text.String())
		doc := document{
			scopeID: scope.ScopeID,
			title:   scope.Title,
			summary: scope.Summary,
			terms:   make(map[string]int),
			length:  len(tokens),
		}
		for _, tok := range tokens {
			doc.terms[tok]++
		}
		for term := range doc.terms {
			s.docFreq[term]++
		}
		total += doc.length
		s.docs = append(s.docs, doc)
	}

	if len(s.docs) > 0 {
		s.avgLength = float64(total) / float64(len(s.docs))
	}
	return s
}

// Search returns up to limit scopes ranked by BM25 score, best first.
// Scopes matching no query term are omitted. Ties break by scope_id so the
// ranking is deterministic.
func (s *Index) Search(query string, limit int) []Hit {
	terms := Tokenize(query)
	if len(terms) == 0 || len(s.docs) == 0 {
		return nil
	}

	var hits []Hit
	for _, doc := range s.docs {
		score := s.score(doc, terms)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			ScopeID: doc.scopeID,
			Title:   doc.title,
			Score:   score,
			Summary: firstLine(doc.summary),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ScopeID < hits[j].ScopeID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (s *Index) score(doc document, terms []string) float64 {
	n := float64(len(s.docs))
	var score float64
	for _, term := range terms {
		tf := float64(doc.terms[term])
		if tf == 0 {
			continue
		}
		df := float64(s.docFreq[term])
		// Plus-one smoothed IDF; never negative.
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		norm := k1 * (1 - b + b*float64(doc.length)/s.avgLength)
		score += idf * tf * (k1 + 1) / (tf + norm)
	}
	return score
}

// Tokenize lowercases, splits on non-alphanumerics, and drops single-char
// tokens and stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
