package diagnosis

// Pattern is one behavioural money pattern detected in a message.
type Pattern struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// MessagePatterns holds every pattern detected for a single message.
type MessagePatterns struct {
	MessageID string    `json:"messageId"`
	Patterns  []Pattern `json:"patterns"`
}

// Dominant returns the highest scoring pattern of the message.
func (m MessagePatterns) Dominant() (Pattern, bool) {
	if len(m.Patterns) == 0 {
		return Pattern{}, false
	}
	best := m.Patterns[0]
	for _, p := range m.Patterns[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}

// SessionPatterns is the per-message pattern history of a session.
type SessionPatterns struct {
	SessionID string            `json:"sessionId"`
	Messages  []MessagePatterns `json:"messages"`
}

// Add appends the patterns of one message.
func (s *SessionPatterns) Add(msg MessagePatterns) {
	s.Messages = append(s.Messages, msg)
}

// Aggregate sums every pattern type across all messages.
func (s *SessionPatterns) Aggregate() Scores {
	out := Scores{}
	for _, msg := range s.Messages {
		for _, p := range msg.Patterns {
			out[p.Type] += p.Score
		}
	}
	return out
}

// DominantOverall returns the single highest scoring pattern occurrence.
func (s *SessionPatterns) DominantOverall() (Pattern, bool) {
	if s == nil {
		return Pattern{}, false
	}
	var (
		best  Pattern
		found bool
	)
	for _, msg := range s.Messages {
		if d, ok := msg.Dominant(); ok && (!found || d.Score > best.Score) {
			best, found = d, true
		}
	}
	return best, found
}

func newMessagePatterns(messageID string, scores Scores) MessagePatterns {
	patterns := make([]Pattern, 0, len(scores))
	for _, kind := range scores.Labels() {
		patterns = append(patterns, Pattern{Type: kind, Score: scores[kind]})
	}
	return MessagePatterns{MessageID: messageID, Patterns: patterns}
}

func (s *SessionPatterns) clone() *SessionPatterns {
	if s == nil {
		return nil
	}
	out := &SessionPatterns{SessionID: s.SessionID, Messages: make([]MessagePatterns, len(s.Messages))}
	for i, msg := range s.Messages {
		out.Messages[i] = MessagePatterns{
			MessageID: msg.MessageID,
			Patterns:  append([]Pattern(nil), msg.Patterns...),
		}
	}
	return out
}
