package diagnosis

import (
	"math"
	"sort"
)

// Scores maps a classifier label to its score.
type Scores map[string]float64

// Clone returns an independent copy. A nil receiver stays nil.
func (s Scores) Clone() Scores {
	if s == nil {
		return nil
	}
	out := make(Scores, len(s))
	for label, score := range s {
		out[label] = score
	}
	return out
}

// Labels returns the labels in lexicographic order.
func (s Scores) Labels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Dominant returns the highest scoring label. Ties resolve to the
// lexicographically smallest label so the result never depends on map order.
func (s Scores) Dominant() (string, float64, bool) {
	if len(s) == 0 {
		return "", 0, false
	}
	bestLabel := ""
	bestScore := math.Inf(-1)
	for _, label := range s.Labels() {
		if score := s[label]; score > bestScore {
			bestLabel = label
			bestScore = score
		}
	}
	return bestLabel, bestScore, true
}

// Normalize scales scores so the maximum becomes 1. All-zero input is returned unchanged.
func (s Scores) Normalize() Scores {
	if len(s) == 0 {
		return Scores{}
	}
	maxScore := 0.0
	for _, score := range s {
		if score > maxScore {
			maxScore = score
		}
	}
	out := make(Scores, len(s))
	for label, score := range s {
		if maxScore == 0 {
			out[label] = score
			continue
		}
		out[label] = score / maxScore
	}
	return out
}

// Positive drops labels whose score is not above zero.
func (s Scores) Positive() Scores {
	out := make(Scores, len(s))
	for label, score := range s {
		if score > 0 {
			out[label] = score
		}
	}
	return out
}

// Filter keeps labels present in allow with a finite, non-negative score.
// Labels that normalize to the same name keep the highest score. Every
// rejected label is returned in dropped, sorted.
func (s Scores) Filter(allow LabelSet) (kept Scores, dropped []string) {
	kept = make(Scores, len(s))
	for label, score := range s {
		normalized := NormalizeLabel(label)
		if !allow.Contains(normalized) || math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
			dropped = append(dropped, label)
			continue
		}
		if prev, ok := kept[normalized]; ok {
			score = math.Max(prev, score)
		}
		kept[normalized] = score
	}
	sort.Strings(dropped)
	return kept, dropped
}

// accumulate adds every score in delta into dst, creating entries as needed.
func accumulate(dst, delta Scores) {
	for label, score := range delta {
		dst[label] += score
	}
}
