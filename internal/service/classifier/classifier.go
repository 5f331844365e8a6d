// Package classifier turns a user message into emotion or pattern scores.
package classifier

import (
	"context"

	"github.com/capcoach/capcoach/backend/internal/analysis/emotion"
	"github.com/capcoach/capcoach/backend/internal/analysis/pattern"
	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

// Kind selects the label family a classifier produces.
type Kind string

const (
	KindEmotion Kind = "emotion"
	KindPattern Kind = "pattern"
)

// Labels returns the allow-list for the kind.
func (k Kind) Labels() diagnosis.LabelSet {
	if k == KindPattern {
		return diagnosis.PatternLabels
	}
	return diagnosis.EmotionLabels
}

// Sources of a Result.
const (
	SourceLLM     = "llm"
	SourceKeyword = "keyword"
)

// Result is one classification. Scores may still contain labels outside the
// allow-list; callers filter at the boundary.
type Result struct {
	Scores diagnosis.Scores `json:"scores"`
	// Keywords lists the trigger words per label for keyword emotion results.
	Keywords map[string][]string `json:"keywords,omitempty"`
	Source   string              `json:"source"`
	Degraded bool                `json:"degraded,omitempty"`
}

// Classifier scores a single piece of user text.
type Classifier interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// KeywordClassifier runs the local keyword analyzers.
type KeywordClassifier struct {
	kind     Kind
	analyze  func(string) diagnosis.Scores
	keywords func(string) map[string][]string
}

// NewKeywordClassifier returns the keyword analyzer for kind.
func NewKeywordClassifier(kind Kind) *KeywordClassifier {
	if kind == KindPattern {
		return &KeywordClassifier{kind: kind, analyze: pattern.Detect}
	}
	return &KeywordClassifier{kind: kind, analyze: emotion.Analyze, keywords: emotion.Keywords}
}

// Kind reports the label family.
func (k *KeywordClassifier) Kind() Kind { return k.kind }

// Analyze scores text. Labels without a keyword hit are omitted.
func (k *KeywordClassifier) Analyze(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	result := Result{Scores: k.analyze(text), Source: SourceKeyword}
	if k.keywords != nil {
		if hits := k.keywords(text); len(hits) > 0 {
			result.Keywords = hits
		}
	}
	return result, nil
}
