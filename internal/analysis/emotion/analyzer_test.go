package emotion

import "testing"

func TestAnalyzeAnxiousUser(t *testing.T) {
	scores := Analyze("I'm so worried and nervous about checking my bank account")
	if scores["anxious"] != 1 {
		t.Fatalf("expected anxious to dominate with 1, got %v", scores)
	}
}

func TestAnalyzeMixedEmotions(t *testing.T) {
	scores := Analyze("I feel sad and a bit stressed, really stressed under pressure")
	if scores["stressed"] != 1 {
		t.Fatalf("expected stressed normalized to 1, got %v", scores)
	}
	if scores["sad"] <= 0 || scores["sad"] >= 1 {
		t.Fatalf("expected partial sad score, got %v", scores)
	}
}

func TestAnalyzeWithoutSignal(t *testing.T) {
	if scores := Analyze("the weather is cloudy"); len(scores) != 0 {
		t.Fatalf("expected no scores, got %v", scores)
	}
	if hits := Keywords("the weather is cloudy"); len(hits) != 0 {
		t.Fatalf("expected no keyword hits, got %v", hits)
	}
}

func TestKeywordsReportsTriggers(t *testing.T) {
	hits := Keywords("I'm scared and overwhelmed")
	if len(hits["fearful"]) != 1 || len(hits["overwhelmed"]) != 1 {
		t.Fatalf("unexpected keyword hits: %v", hits)
	}
}
