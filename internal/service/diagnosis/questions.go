package diagnosis

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// QuestionBank holds every fixed text the engine speaks.
type QuestionBank struct {
	Welcome        string              `yaml:"welcome"`
	FirstQuestion  string              `yaml:"first_question"`
	General        string              `yaml:"general"`
	FollowUp       string              `yaml:"follow_up"`
	Fallback       string              `yaml:"fallback"`
	Patterns       map[string]string   `yaml:"patterns"`
	Actions        map[string][]string `yaml:"actions"`
	GeneralActions []string            `yaml:"general_actions"`
}

// DefaultQuestionBank returns a fresh copy of the embedded bank.
func DefaultQuestionBank() *QuestionBank {
	bank, err := parseQuestionBank(defaultQuestionsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank: %v", err))
	}
	return bank
}

// LoadQuestionBank reads a bank from path. Fields left empty in the file keep
// their embedded defaults. An empty path returns the default bank.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultQuestionBank(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	bank, err := parseQuestionBank(raw)
	if err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}
	bank.mergeDefaults(DefaultQuestionBank())
	return bank, nil
}

func parseQuestionBank(raw []byte) (*QuestionBank, error) {
	bank := &QuestionBank{}
	if err := yaml.Unmarshal(raw, bank); err != nil {
		return nil, err
	}

	patterns := make(map[string]string, len(bank.Patterns))
	for label, text := range bank.Patterns {
		patterns[model.NormalizeLabel(label)] = strings.TrimSpace(text)
	}
	bank.Patterns = patterns
	return bank, nil
}

func (b *QuestionBank) mergeDefaults(def *QuestionBank) {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&b.Welcome, def.Welcome)
	fill(&b.FirstQuestion, def.FirstQuestion)
	fill(&b.General, def.General)
	fill(&b.FollowUp, def.FollowUp)
	fill(&b.Fallback, def.Fallback)

	if len(b.Patterns) == 0 {
		b.Patterns = def.Patterns
	}
	if b.Actions == nil {
		b.Actions = make(map[string][]string, len(def.Actions))
	}
	for disorder, actions := range def.Actions {
		if len(b.Actions[disorder]) == 0 {
			b.Actions[disorder] = actions
		}
	}
	if len(b.GeneralActions) == 0 {
		b.GeneralActions = def.GeneralActions
	}
}

// PatternQuestion returns the question for label, or the fallback.
func (b *QuestionBank) PatternQuestion(label string) string {
	if text, ok := b.Patterns[model.NormalizeLabel(label)]; ok && text != "" {
		return text
	}
	return b.Fallback
}

// SuggestedActions returns the actions for the dominant disorder. Without any
// signal the general actions are returned.
func (b *QuestionBank) SuggestedActions(insights model.DisorderInsights) []string {
	if !insights.HasSignal() {
		return append([]string(nil), b.GeneralActions...)
	}
	return append([]string(nil), b.Actions[string(insights.DominantDisorder)]...)
}
