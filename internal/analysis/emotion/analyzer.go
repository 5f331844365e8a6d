package emotion

import (
	"github.com/capcoach/capcoach/backend/internal/analysis/keyword"
	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

var keywordBuckets = keyword.Buckets{
	diagnosis.EmotionAnxious: {
		"worried", "worry", "nervous", "anxious", "anxiety", "uneasy", "panic", "dread", "on edge",
	},
	diagnosis.EmotionHappy: {
		"happy", "joy", "excited", "pleased", "glad", "thrilled", "great", "love",
	},
	diagnosis.EmotionSad: {
		"sad", "unhappy", "depressed", "down", "miserable", "hopeless", "cry", "lonely",
	},
	diagnosis.EmotionAngry: {
		"angry", "mad", "frustrated", "upset", "furious", "annoyed", "irritated",
	},
	diagnosis.EmotionFearful: {
		"scared", "afraid", "fear", "terrified", "frightened",
	},
	diagnosis.EmotionOverwhelmed: {
		"overwhelmed", "too much", "drowning", "buried", "cant keep up", "swamped",
	},
	diagnosis.EmotionConfident: {
		"confident", "in control", "on track", "proud", "capable",
	},
	diagnosis.EmotionHopeful: {
		"hopeful", "hope", "optimistic", "looking forward", "better soon",
	},
	diagnosis.EmotionStressed: {
		"stressed", "stress", "pressure", "tense", "burned out", "exhausted",
	},
	diagnosis.EmotionCalm: {
		"calm", "relaxed", "at peace", "fine", "okay", "comfortable",
	},
}

var scorer = keyword.NewScorer(keywordBuckets)

// Analyze scores text against the emotion keyword buckets. Only emotions with
// at least one hit appear in the result, normalized so the strongest is 1.
func Analyze(text string) diagnosis.Scores {
	return scorer.Score(text)
}

// Keywords returns the keywords that triggered each emotion.
func Keywords(text string) map[string][]string {
	return scorer.Matches(text)
}
