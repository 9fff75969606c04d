// Package classify maps article titles onto taxonomy categories with plain
// substring matching. Matching is case-insensitive and keyword order follows
// the taxonomy file, so tag output is deterministic.
package classify

import (
	"strings"

	"horse.fit/clipper/internal/textnorm"
)

// Category is one taxonomy bucket with its trigger keywords.
type Category struct {
	Name     string
	Keywords []string
}

// Taxonomy decides whether a title is worth keeping and which categories it
// belongs to. Negative hints veto a title outright before any category is
// consulted.
type Taxonomy struct {
	categories    []Category
	negativeHints []string
}

// NewTaxonomy builds a matcher from ordered categories and negative hints.
// Keywords and hints are whitespace-normalized and lower-cased once here so
// every match is a plain substring test; blank entries are dropped.
func NewTaxonomy(categories []Category, negativeHints []string) *Taxonomy {
	t := &Taxonomy{categories: make([]Category, 0, len(categories))}
	for _, c := range categories {
		keywords := normalizeTerms(c.Keywords)
		if c.Name == "" || len(keywords) == 0 {
			continue
		}
		t.categories = append(t.categories, Category{Name: c.Name, Keywords: keywords})
	}
	t.negativeHints = normalizeTerms(negativeHints)
	return t
}

// HasNegativeHint reports whether the title contains any veto term.
func (t *Taxonomy) HasNegativeHint(title string) bool {
	subject := matchForm(title)
	for _, hint := range t.negativeHints {
		if strings.Contains(subject, hint) {
			return true
		}
	}
	return false
}

// Tags returns the names of every category with at least one keyword hit in
// the title, in taxonomy order. An empty result means the title is off-topic.
func (t *Taxonomy) Tags(title string) []string {
	subject := matchForm(title)
	var tags []string
	for _, c := range t.categories {
		for _, keyword := range c.Keywords {
			if strings.Contains(subject, keyword) {
				tags = append(tags, c.Name)
				break
			}
		}
	}
	return tags
}

// Categories exposes the normalized category list for config inspection.
func (t *Taxonomy) Categories() []Category {
	return t.categories
}

// NegativeHints exposes the normalized veto terms for config inspection.
func (t *Taxonomy) NegativeHints() []string {
	return t.negativeHints
}

func matchForm(s string) string {
	return strings.ToLower(textnorm.NormalizeWS(s))
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		normalized := matchForm(term)
		if normalized == "" {
			continue
		}
		out = append(out, normalized)
	}
	return out
}
