package diagnosis

// EmotionalAnalysis is one detected tone within a message.
type EmotionalAnalysis struct {
	Tone      string   `json:"tone"`
	Intensity float64  `json:"intensity"`
	Keywords  []string `json:"keywords,omitempty"`
}

// MessageEmotions holds every tone detected for a single message.
type MessageEmotions struct {
	MessageID string              `json:"messageId"`
	Emotions  []EmotionalAnalysis `json:"emotions"`
}

// Dominant returns the most intense tone of the message.
func (m MessageEmotions) Dominant() (EmotionalAnalysis, bool) {
	if len(m.Emotions) == 0 {
		return EmotionalAnalysis{}, false
	}
	best := m.Emotions[0]
	for _, e := range m.Emotions[1:] {
		if e.Intensity > best.Intensity {
			best = e
		}
	}
	return best, true
}

// SessionEmotions is the per-message emotion history of a session.
type SessionEmotions struct {
	SessionID string            `json:"sessionId"`
	Messages  []MessageEmotions `json:"messages"`
}

// Add appends the emotions of one message.
func (s *SessionEmotions) Add(msg MessageEmotions) {
	s.Messages = append(s.Messages, msg)
}

// OverallDominant returns the single most intense tone seen in the session.
func (s *SessionEmotions) OverallDominant() (EmotionalAnalysis, bool) {
	if s == nil {
		return EmotionalAnalysis{}, false
	}
	var (
		best  EmotionalAnalysis
		found bool
	)
	for _, msg := range s.Messages {
		if d, ok := msg.Dominant(); ok && (!found || d.Intensity > best.Intensity) {
			best, found = d, true
		}
	}
	return best, found
}

// MostIntense finds the message in which tone peaked.
func (s *SessionEmotions) MostIntense(tone string) (string, float64, bool) {
	if s == nil {
		return "", 0, false
	}
	var (
		messageID string
		peak      float64
		found     bool
	)
	for _, msg := range s.Messages {
		for _, e := range msg.Emotions {
			if e.Tone == tone && (!found || e.Intensity > peak) {
				messageID, peak, found = msg.MessageID, e.Intensity, true
			}
		}
	}
	return messageID, peak, found
}

// Aggregate sums every tone across all messages.
func (s *SessionEmotions) Aggregate() Scores {
	out := Scores{}
	for _, msg := range s.Messages {
		for _, e := range msg.Emotions {
			out[e.Tone] += e.Intensity
		}
	}
	return out
}

func newMessageEmotions(messageID string, scores Scores, keywords map[string][]string) MessageEmotions {
	emotions := make([]EmotionalAnalysis, 0, len(scores))
	for _, tone := range scores.Labels() {
		emotions = append(emotions, EmotionalAnalysis{
			Tone:      tone,
			Intensity: scores[tone],
			Keywords:  append([]string(nil), keywords[tone]...),
		})
	}
	return MessageEmotions{MessageID: messageID, Emotions: emotions}
}

func (s *SessionEmotions) clone() *SessionEmotions {
	if s == nil {
		return nil
	}
	out := &SessionEmotions{SessionID: s.SessionID, Messages: make([]MessageEmotions, len(s.Messages))}
	for i, msg := range s.Messages {
		emotions := make([]EmotionalAnalysis, len(msg.Emotions))
		for j, e := range msg.Emotions {
			e.Keywords = append([]string(nil), e.Keywords...)
			emotions[j] = e
		}
		out.Messages[i] = MessageEmotions{MessageID: msg.MessageID, Emotions: emotions}
	}
	return out
}
