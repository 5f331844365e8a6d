// Package pattern detects behavioural money patterns with keyword rules.
package pattern

import (
	"github.com/capcoach/capcoach/backend/internal/analysis/keyword"
	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

var keywordBuckets = keyword.Buckets{
	diagnosis.PatternAvoidance: {
		"ignore", "avoid", "delay", "put off", "procrastinat", "dont look", "dont check", "hide",
	},
	diagnosis.PatternImpulsivity: {
		"buy", "bought", "spend", "spent", "impulse", "urge", "splurge", "treat myself", "shopping",
	},
	diagnosis.PatternMoneyDyslexia: {
		"confused", "confusing", "mix up", "forget", "forgot", "dont understand", "lose track",
	},
	diagnosis.PatternFinancialAnxiety: {
		"debt", "cant afford", "broke", "bills", "overdraft", "paycheck to paycheck",
	},
}

var scorer = keyword.NewScorer(keywordBuckets)

// Detect scores text against the pattern keyword buckets.
func Detect(text string) diagnosis.Scores {
	return scorer.Score(text)
}
