package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

func TestDetectAvoidance(t *testing.T) {
	scores := Detect("I usually ignore my statements and put off paying")
	assert.Equal(t, diagnosis.Scores{"avoidance": 1}, scores)
}

func TestDetectImpulsivityAndConfusion(t *testing.T) {
	scores := Detect("I buy things on impulse and then I forget what I spent")

	assert.InDelta(t, 1.0, scores[diagnosis.PatternImpulsivity], 1e-9)
	assert.InDelta(t, 1.0/3.0, scores[diagnosis.PatternMoneyDyslexia], 1e-9)
	assert.NotContains(t, scores, diagnosis.PatternAvoidance)
}

func TestDetectNothing(t *testing.T) {
	assert.Empty(t, Detect("hello there"))
}
