package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
	"github.com/capcoach/capcoach/backend/internal/provider"
)

// ErrEmptyOutput is returned when the model answers with nothing usable.
var ErrEmptyOutput = errors.New("classifier returned empty output")

// Config controls an LLM-backed classifier.
type Config struct {
	Kind            Kind
	Enabled         bool
	FallbackEnabled bool
}

// Service classifies text with a chat model. When the model is disabled the
// keyword analyzer answers instead; when the model fails the keyword analyzer
// is used only if FallbackEnabled is set.
type Service struct {
	kind            Kind
	enabled         bool
	fallbackEnabled bool
	classifier      compose.Runnable[map[string]any, *schema.Message]
	keyword         *KeywordClassifier
	schemaText      string
}

// NewService creates a classifier. chatModel may be shared with the coach.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config) (*Service, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindEmotion
	}
	if cfg.Kind != KindEmotion && cfg.Kind != KindPattern {
		return nil, fmt.Errorf("unknown classifier kind %q", cfg.Kind)
	}

	svc := &Service{
		kind:            cfg.Kind,
		enabled:         cfg.Enabled && chatModel != nil,
		fallbackEnabled: cfg.FallbackEnabled,
		keyword:         NewKeywordClassifier(cfg.Kind),
	}
	if !svc.enabled {
		return svc, nil
	}

	schemaText, err := provider.SchemaText[classifierPayload]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s classifier schema: %w", cfg.Kind, err)
	}
	svc.schemaText = schemaText

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s classifier chain: %w", cfg.Kind, err)
	}
	svc.classifier = runnable
	return svc, nil
}

// Enabled reports whether the chat model is consulted.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Kind reports the label family.
func (s *Service) Kind() Kind { return s.kind }

// Analyze classifies text. Cancellation is always returned as an error.
func (s *Service) Analyze(ctx context.Context, text string) (Result, error) {
	if !s.Enabled() {
		return s.keyword.Analyze(ctx, text)
	}

	input := map[string]any{
		"kind":   string(s.kind),
		"labels": strings.Join(s.kind.Labels().Sorted(), ", "),
		"schema": s.schemaText,
		"text":   strings.TrimSpace(text),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		return s.degrade(ctx, text, fmt.Errorf("invoke %s classifier: %w", s.kind, err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.degrade(ctx, text, ErrEmptyOutput)
	}

	scores, err := parseClassifierOutput(msg.Content)
	if err != nil {
		return s.degrade(ctx, text, fmt.Errorf("parse %s classifier output: %w", s.kind, err))
	}
	return Result{Scores: scores, Source: SourceLLM}, nil
}

func (s *Service) degrade(ctx context.Context, text string, cause error) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if !s.fallbackEnabled {
		return Result{}, cause
	}

	log.Warn().Str("component", "classifier").Str("kind", string(s.kind)).Err(cause).Msg("falling back to keyword analyzer")
	result, err := s.keyword.Analyze(ctx, text)
	if err != nil {
		return Result{}, err
	}
	result.Degraded = true
	return result, nil
}

type labelScore struct {
	Label string  `json:"label" jsonschema:"required,description=one label from the allowed list"`
	Score float64 `json:"score" jsonschema:"required,minimum=0,maximum=1"`
}

type classifierPayload struct {
	Scores []labelScore `json:"scores" jsonschema:"required"`
}

// parseClassifierOutput extracts the JSON object from the model output. Both
// the schema shape and a flat label->score object are accepted.
func parseClassifierOutput(content string) (diagnosis.Scores, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}
	raw := []byte(trimmed[start : end+1])

	scores := diagnosis.Scores{}
	payload := &classifierPayload{}
	if err := json.Unmarshal(raw, payload); err == nil && payload.Scores != nil {
		for _, item := range payload.Scores {
			addScore(scores, item.Label, item.Score)
		}
		return scores, nil
	}

	flat := map[string]float64{}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	for label, score := range flat {
		addScore(scores, label, score)
	}
	return scores, nil
}

func addScore(scores diagnosis.Scores, label string, score float64) {
	label = diagnosis.NormalizeLabel(label)
	if label == "" || math.IsNaN(score) {
		return
	}
	scores[label] = math.Max(scores[label], score)
}

const classifierSystemPrompt = "You classify messages from a personal finance coaching conversation. Score how strongly the message expresses each {kind} label on a 0 to 1 scale.\nAllowed labels: {labels}.\nOnly include labels with a score above 0. Never invent labels.\nRespond with a single JSON object that matches this schema and nothing else:\n{schema}"

const classifierUserPrompt = "Message:\n{text}"
