package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDominantDisorderTieBreak(t *testing.T) {
	insights := DisorderInsights{Anxiety: 5, Avoidance: 5, Impulsivity: 2, MoneyDyslexia: 0}

	assert.Equal(t, DisorderAnxiety, insights.CalculateDominantDisorder())
	assert.Equal(t, DisorderAnxiety, insights.DominantDisorder)
}

func TestCalculateDominantDisorderPriorityIsNotAlphabetical(t *testing.T) {
	insights := DisorderInsights{Avoidance: 3, Impulsivity: 3, MoneyDyslexia: 3}
	assert.Equal(t, DisorderAvoidance, insights.CalculateDominantDisorder())

	insights = DisorderInsights{Impulsivity: 1, MoneyDyslexia: 1}
	assert.Equal(t, DisorderImpulsivity, insights.CalculateDominantDisorder())

	insights = DisorderInsights{MoneyDyslexia: 0.1}
	assert.Equal(t, DisorderMoneyDyslexia, insights.CalculateDominantDisorder())
}

func TestCalculateDominantDisorderAllZero(t *testing.T) {
	insights := DisorderInsights{}

	assert.Equal(t, DisorderAnxiety, insights.CalculateDominantDisorder())
	assert.False(t, insights.HasSignal())
}

func TestInsightsFromSummaries(t *testing.T) {
	insights := InsightsFromSummaries(
		Scores{"avoidance": 1.4, "impulsivity": 0.5, "money_dyslexia": 0.2, "financial_anxiety": 0.3},
		Scores{"anxious": 1.6, "stressed": 0.1, "happy": 2},
	)

	assert.InDelta(t, 1.4, insights.Avoidance, 1e-9)
	assert.InDelta(t, 0.5, insights.Impulsivity, 1e-9)
	assert.InDelta(t, 0.2, insights.MoneyDyslexia, 1e-9)
	assert.InDelta(t, 2.0, insights.Anxiety, 1e-9)
	assert.True(t, insights.HasSignal())
	assert.Equal(t, DisorderAnxiety, insights.CalculateDominantDisorder())
}

func TestInsightsFromNilSummaries(t *testing.T) {
	insights := InsightsFromSummaries(nil, nil)
	assert.False(t, insights.HasSignal())
}
