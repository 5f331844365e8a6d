package diagnosis

import model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"

// QuestionTypeGeneral marks questions not tied to a detected pattern.
const QuestionTypeGeneral = "general"

// Question is the next prompt to put to the user.
type Question struct {
	Type string `json:"type"`
	Text string `json:"questionText"`
}

// NextQuestion picks the follow-up question for the session. The pattern with
// the highest cumulative score wins; ties go to the lexicographically smallest
// label.
func NextQuestion(c *model.ConversationContext, bank *QuestionBank) Question {
	if c == nil || len(c.Turns) == 0 {
		return Question{Type: QuestionTypeGeneral, Text: bank.General}
	}

	label, _, ok := c.DetectedPatternsSummary.Dominant()
	if !ok {
		return Question{Type: QuestionTypeGeneral, Text: bank.FollowUp}
	}
	return Question{Type: label, Text: bank.PatternQuestion(label)}
}
