package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

// TemplateReplier builds an empathetic reply without a language model.
type TemplateReplier struct{}

// Generate acknowledges the dominant emotion, names the detected patterns and
// ends with the next question.
func (TemplateReplier) Generate(ctx context.Context, req ReplyRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var parts []string
	if emotion, _, ok := req.Emotions.Positive().Dominant(); ok {
		parts = append(parts, fmt.Sprintf("I hear that you're feeling %s.", humanizeLabel(emotion)))
	} else {
		parts = append(parts, "Thank you for sharing that with me.")
	}

	if patterns := rankedLabels(req.Patterns.Positive()); len(patterns) > 0 {
		parts = append(parts, fmt.Sprintf("It sounds like %s may be part of the picture.", joinLabels(patterns)))
	}

	if question := strings.TrimSpace(req.NextQuestion.Text); question != "" {
		parts = append(parts, question)
	}
	return strings.Join(parts, " "), nil
}

// rankedLabels orders labels by score, highest first, then by name.
func rankedLabels(scores model.Scores) []string {
	labels := scores.Labels()
	sort.SliceStable(labels, func(i, j int) bool {
		return scores[labels[i]] > scores[labels[j]]
	})
	return labels
}

func joinLabels(labels []string) string {
	human := make([]string, len(labels))
	for i, label := range labels {
		human[i] = humanizeLabel(label)
	}
	switch len(human) {
	case 1:
		return human[0]
	case 2:
		return human[0] + " and " + human[1]
	default:
		return strings.Join(human[:len(human)-1], ", ") + " and " + human[len(human)-1]
	}
}

func humanizeLabel(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}
