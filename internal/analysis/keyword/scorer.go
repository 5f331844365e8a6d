// Package keyword scores free text against labelled keyword buckets.
package keyword

import (
	"strings"
	"unicode"

	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

// Buckets maps a label to the keywords that signal it.
type Buckets map[string][]string

// Scorer counts keyword hits per label and normalizes them to [0,1].
type Scorer struct {
	buckets map[string][]string
}

// NewScorer prepares buckets for matching. Keywords are cleaned the same way
// as the text they are matched against.
func NewScorer(buckets Buckets) *Scorer {
	prepared := make(map[string][]string, len(buckets))
	for label, words := range buckets {
		for _, word := range words {
			if cleaned := Clean(word); cleaned != "" {
				prepared[label] = append(prepared[label], cleaned)
			}
		}
	}
	return &Scorer{buckets: prepared}
}

// Score returns the normalized hit count of every label with at least one hit.
// Text without any hit yields an empty map.
func (s *Scorer) Score(text string) diagnosis.Scores {
	hits := s.Matches(text)
	raw := make(diagnosis.Scores, len(hits))
	for label, words := range hits {
		raw[label] = float64(len(words))
	}
	return raw.Normalize()
}

// Matches lists the keywords found in text, per label.
func (s *Scorer) Matches(text string) map[string][]string {
	normalized := " " + Clean(text) + " "
	if strings.TrimSpace(normalized) == "" {
		return map[string][]string{}
	}

	out := make(map[string][]string)
	for label, words := range s.buckets {
		for _, word := range words {
			// match at a word start so "avoid" also hits "avoiding"
			if strings.Contains(normalized, " "+word) {
				out[label] = append(out[label], word)
			}
		}
	}
	return out
}

// Clean lowercases text, removes punctuation and collapses whitespace.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '\'' || r == '’':
			// drop apostrophes so "can't" and "cant" agree
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
