package diagnosis

import "time"

// Disorder names one of the four diagnosable money disorders.
type Disorder string

const (
	DisorderAnxiety       Disorder = "anxiety"
	DisorderAvoidance     Disorder = "avoidance"
	DisorderImpulsivity   Disorder = "impulsivity"
	DisorderMoneyDyslexia Disorder = "money_dyslexia"
)

// DisorderPriority breaks ties between equal scores, first entry wins.
var DisorderPriority = []Disorder{
	DisorderAnxiety,
	DisorderAvoidance,
	DisorderImpulsivity,
	DisorderMoneyDyslexia,
}

// anxietyEmotions feed the anxiety score alongside the financial_anxiety pattern.
var anxietyEmotions = []string{EmotionAnxious, EmotionStressed, EmotionOverwhelmed, EmotionFearful}

// DisorderInsights is a point-in-time diagnostic snapshot.
type DisorderInsights struct {
	Avoidance        float64  `json:"avoidanceScore"`
	Impulsivity      float64  `json:"impulsivityScore"`
	Anxiety          float64  `json:"anxietyScore"`
	MoneyDyslexia    float64  `json:"moneyDyslexiaScore"`
	DominantDisorder Disorder `json:"dominantDisorder,omitempty"`
}

// InsightsFromSummaries derives the four disorder scores from session summaries.
func InsightsFromSummaries(patterns, emotions Scores) DisorderInsights {
	anxiety := patterns[PatternFinancialAnxiety]
	for _, tone := range anxietyEmotions {
		anxiety += emotions[tone]
	}
	return DisorderInsights{
		Avoidance:     patterns[PatternAvoidance],
		Impulsivity:   patterns[PatternImpulsivity],
		Anxiety:       anxiety,
		MoneyDyslexia: patterns[PatternMoneyDyslexia],
	}
}

// Score returns the score recorded for d.
func (d DisorderInsights) Score(disorder Disorder) float64 {
	switch disorder {
	case DisorderAnxiety:
		return d.Anxiety
	case DisorderAvoidance:
		return d.Avoidance
	case DisorderImpulsivity:
		return d.Impulsivity
	case DisorderMoneyDyslexia:
		return d.MoneyDyslexia
	default:
		return 0
	}
}

// CalculateDominantDisorder picks the highest score, resolving ties by
// DisorderPriority. With no signal at all it still answers anxiety; check
// HasSignal before treating the result as a finding.
func (d *DisorderInsights) CalculateDominantDisorder() Disorder {
	maxScore := d.Score(DisorderPriority[0])
	for _, disorder := range DisorderPriority[1:] {
		if s := d.Score(disorder); s > maxScore {
			maxScore = s
		}
	}
	for _, disorder := range DisorderPriority {
		if d.Score(disorder) == maxScore {
			d.DominantDisorder = disorder
			break
		}
	}
	return d.DominantDisorder
}

// HasSignal reports whether any disorder score is positive.
func (d DisorderInsights) HasSignal() bool {
	for _, disorder := range DisorderPriority {
		if d.Score(disorder) > 0 {
			return true
		}
	}
	return false
}

// DiagnosisSummary is the closing artifact of a session.
type DiagnosisSummary struct {
	SessionID           string           `json:"sessionId"`
	Timestamp           time.Time        `json:"timestamp"`
	DisorderInsights    DisorderInsights `json:"disorderInsights"`
	SuggestedActions    []string         `json:"suggestedActions,omitempty"`
	PatternObservations Scores           `json:"patternObservations,omitempty"`
	EmotionalTrends     Scores           `json:"emotionalTrends,omitempty"`
}

// Clone returns a deep copy of the summary.
func (s DiagnosisSummary) Clone() DiagnosisSummary {
	s.SuggestedActions = append([]string(nil), s.SuggestedActions...)
	s.PatternObservations = s.PatternObservations.Clone()
	s.EmotionalTrends = s.EmotionalTrends.Clone()
	return s
}
