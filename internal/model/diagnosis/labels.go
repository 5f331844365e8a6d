package diagnosis

import (
	"sort"
	"strings"
)

// Emotion labels accepted from classifiers.
const (
	EmotionAnxious     = "anxious"
	EmotionHappy       = "happy"
	EmotionSad         = "sad"
	EmotionAngry       = "angry"
	EmotionFearful     = "fearful"
	EmotionOverwhelmed = "overwhelmed"
	EmotionConfident   = "confident"
	EmotionHopeful     = "hopeful"
	EmotionStressed    = "stressed"
	EmotionCalm        = "calm"
)

// Money pattern labels accepted from classifiers.
const (
	PatternAvoidance        = "avoidance"
	PatternImpulsivity      = "impulsivity"
	PatternMoneyDyslexia    = "money_dyslexia"
	PatternFinancialAnxiety = "financial_anxiety"
)

// LabelSet is a fixed allow-list of classifier labels.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from normalized labels.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, label := range labels {
		set[NormalizeLabel(label)] = struct{}{}
	}
	return set
}

// Contains reports whether label is allowed.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted lists the labels in lexicographic order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for label := range s {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// NormalizeLabel lowercases a label and turns spaces and dashes into underscores.
func NormalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return strings.ReplaceAll(normalized, " ", "_")
}

var (
	// EmotionLabels is the allow-list for emotion classifier output.
	EmotionLabels = NewLabelSet(
		EmotionAnxious, EmotionHappy, EmotionSad, EmotionAngry, EmotionFearful,
		EmotionOverwhelmed, EmotionConfident, EmotionHopeful, EmotionStressed, EmotionCalm,
	)
	// PatternLabels is the allow-list for pattern classifier output.
	PatternLabels = NewLabelSet(
		PatternAvoidance, PatternImpulsivity, PatternMoneyDyslexia, PatternFinancialAnxiety,
	)
)
