package diagnosis

import "time"

// ConversationContext is the full state of one diagnostic session.
//
// The flat summaries are running sums over every turn that carried data,
// including turns that were dropped from Turns. They stay nil until the first
// turn with the matching payload arrives.
type ConversationContext struct {
	SessionID               string             `json:"sessionId"`
	Turns                   []ConversationTurn `json:"turns"`
	EmotionalStateSummary   Scores             `json:"emotionalStateSummary,omitempty"`
	DetectedPatternsSummary Scores             `json:"detectedPatternsSummary,omitempty"`
	SessionEmotions         *SessionEmotions   `json:"sessionEmotions,omitempty"`
	SessionPatterns         *SessionPatterns   `json:"sessionPatterns,omitempty"`
}

// NewConversationContext returns an empty context for sessionID.
func NewConversationContext(sessionID string) *ConversationContext {
	return &ConversationContext{
		SessionID: sessionID,
		Turns:     make([]ConversationTurn, 0, 16),
	}
}

// AddTurn records a turn and folds its emotion and pattern payload into the
// summaries. It reports whether the turn entered the history: invalid turns and
// replays of the last stored turn are left out, but their payload still counts.
func (c *ConversationContext) AddTurn(turn ConversationTurn) bool {
	turn = turn.clone()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	last, hasLast := c.lastTurn()
	if hasLast && turn.Timestamp.Before(last.Timestamp) {
		turn.Timestamp = last.Timestamp
	}

	stored := false
	if turn.Validate() == nil && !(hasLast && last.sameMessage(turn)) {
		c.Turns = append(c.Turns, turn)
		stored = true
	}

	if len(turn.Emotions) > 0 {
		c.foldEmotions(turn)
	}
	if len(turn.Patterns) > 0 {
		c.foldPatterns(turn)
	}
	return stored
}

func (c *ConversationContext) foldEmotions(turn ConversationTurn) {
	if c.EmotionalStateSummary == nil {
		c.EmotionalStateSummary = Scores{}
	}
	accumulate(c.EmotionalStateSummary, turn.Emotions)

	if c.SessionEmotions == nil {
		c.SessionEmotions = &SessionEmotions{SessionID: c.SessionID}
	}
	c.SessionEmotions.Add(newMessageEmotions(turn.MessageID(), turn.Emotions, turn.EmotionKeywords))
}

func (c *ConversationContext) foldPatterns(turn ConversationTurn) {
	if c.DetectedPatternsSummary == nil {
		c.DetectedPatternsSummary = Scores{}
	}
	accumulate(c.DetectedPatternsSummary, turn.Patterns)

	if c.SessionPatterns == nil {
		c.SessionPatterns = &SessionPatterns{SessionID: c.SessionID}
	}
	c.SessionPatterns.Add(newMessagePatterns(turn.MessageID(), turn.Patterns))
}

func (c *ConversationContext) lastTurn() (ConversationTurn, bool) {
	if len(c.Turns) == 0 {
		return ConversationTurn{}, false
	}
	return c.Turns[len(c.Turns)-1], true
}

// RecomputeSummaries rebuilds the flat summaries from the per-message history.
// The result always matches the running summaries.
func (c *ConversationContext) RecomputeSummaries() (emotions, patterns Scores) {
	if c.SessionEmotions != nil {
		emotions = c.SessionEmotions.Aggregate()
	}
	if c.SessionPatterns != nil {
		patterns = c.SessionPatterns.Aggregate()
	}
	return emotions, patterns
}

// LastUserMessage returns the most recent user turn.
func (c *ConversationContext) LastUserMessage() (ConversationTurn, bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Speaker == SpeakerUser {
			return c.Turns[i].clone(), true
		}
	}
	return ConversationTurn{}, false
}

// RecentTurns returns up to n of the latest turns in conversation order.
func (c *ConversationContext) RecentTurns(n int) []ConversationTurn {
	if n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	start := len(c.Turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]ConversationTurn, 0, len(c.Turns)-start)
	for _, turn := range c.Turns[start:] {
		out = append(out, turn.clone())
	}
	return out
}

// Len is the number of stored turns.
func (c *ConversationContext) Len() int {
	return len(c.Turns)
}

// UserTurns returns the user's turns in order.
func (c *ConversationContext) UserTurns() []ConversationTurn {
	return c.turnsBy(SpeakerUser)
}

// AITurns returns the assistant's turns in order.
func (c *ConversationContext) AITurns() []ConversationTurn {
	return c.turnsBy(SpeakerAI)
}

func (c *ConversationContext) turnsBy(speaker Speaker) []ConversationTurn {
	var out []ConversationTurn
	for _, turn := range c.Turns {
		if turn.Speaker == speaker {
			out = append(out, turn.clone())
		}
	}
	return out
}

// Clear drops all turns and resets every summary while keeping SessionID.
func (c *ConversationContext) Clear() {
	c.Turns = make([]ConversationTurn, 0, 16)
	c.EmotionalStateSummary = nil
	c.DetectedPatternsSummary = nil
	c.SessionEmotions = nil
	c.SessionPatterns = nil
}

// Clone returns a deep copy that shares no memory with c.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	turns := make([]ConversationTurn, len(c.Turns), cap(c.Turns))
	for i, turn := range c.Turns {
		turns[i] = turn.clone()
	}
	return &ConversationContext{
		SessionID:               c.SessionID,
		Turns:                   turns,
		EmotionalStateSummary:   c.EmotionalStateSummary.Clone(),
		DetectedPatternsSummary: c.DetectedPatternsSummary.Clone(),
		SessionEmotions:         c.SessionEmotions.clone(),
		SessionPatterns:         c.SessionPatterns.clone(),
	}
}
