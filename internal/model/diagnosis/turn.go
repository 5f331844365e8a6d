package diagnosis

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidTurn marks a turn with an unknown speaker or blank text.
var ErrInvalidTurn = errors.New("invalid conversation turn")

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// Valid reports whether the speaker is user or ai.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAI
}

// ConversationTurn is one message of a diagnostic conversation.
type ConversationTurn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Emotions  Scores    `json:"emotions,omitempty"`
	Patterns  Scores    `json:"patterns,omitempty"`
	// EmotionKeywords maps an emotion to the words that triggered it.
	EmotionKeywords map[string][]string `json:"emotionKeywords,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// NewTurn builds a turn that owns copies of the supplied score maps.
func NewTurn(speaker Speaker, text string, emotions, patterns Scores, ts time.Time) ConversationTurn {
	return ConversationTurn{
		Speaker:   speaker,
		Text:      text,
		Emotions:  emotions.Clone(),
		Patterns:  patterns.Clone(),
		Timestamp: ts,
	}
}

// Validate returns ErrInvalidTurn when the turn must not enter the history.
func (t ConversationTurn) Validate() error {
	if !t.Speaker.Valid() {
		return ErrInvalidTurn
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrInvalidTurn
	}
	return nil
}

// MessageID derives the per-message identifier from the timestamp.
func (t ConversationTurn) MessageID() string {
	return t.Timestamp.UTC().Format(time.RFC3339Nano)
}

func (t ConversationTurn) sameMessage(other ConversationTurn) bool {
	return t.Speaker == other.Speaker && t.Text == other.Text && t.Timestamp.Equal(other.Timestamp)
}

func (t ConversationTurn) clone() ConversationTurn {
	t.Emotions = t.Emotions.Clone()
	t.Patterns = t.Patterns.Clone()
	t.EmotionKeywords = cloneKeywords(t.EmotionKeywords)
	return t
}

// WithEmotionKeywords returns a copy of t carrying the trigger words of
// every emotion it scored. Entries for unscored emotions are dropped.
func (t ConversationTurn) WithEmotionKeywords(keywords map[string][]string) ConversationTurn {
	t.EmotionKeywords = nil
	for tone, words := range keywords {
		if _, ok := t.Emotions[tone]; !ok || len(words) == 0 {
			continue
		}
		if t.EmotionKeywords == nil {
			t.EmotionKeywords = make(map[string][]string)
		}
		t.EmotionKeywords[tone] = append([]string(nil), words...)
	}
	return t
}

func cloneKeywords(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
