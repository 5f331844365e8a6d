package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/capcoach/capcoach/backend/internal/config"
	"github.com/capcoach/capcoach/backend/internal/model/coach"
	diagnosismodel "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
	"github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

// Service writes coach replies and greetings with a chat model.
type Service struct {
	chatModel model.BaseChatModel
	coach     coach.Coach
	prompts   *CoachPromptManager
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

var (
	_ diagnosis.ReplyGenerator = (*Service)(nil)
	_ diagnosis.ReplyStreamer  = (*Service)(nil)
	_ diagnosis.Greeter        = (*Service)(nil)
)

// NewService creates a new AI service backed by the configured provider.
func NewService(ctx context.Context, coaches coach.Catalog, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, coaches, cfg)
}

// NewServiceWithModel builds the service around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, coaches coach.Catalog, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	profile, err := coaches.Resolve(cfg.CoachPersona)
	if err != nil {
		return nil, err
	}
	if cfg.CoachPersona != "" && profile.ID != strings.TrimSpace(cfg.CoachPersona) {
		log.Warn().Str("component", "ai").Str("coach", cfg.CoachPersona).Str("using", profile.ID).Msg("unknown coach persona, using default")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		coach:     profile,
		prompts:   NewCoachPromptManager(),
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether replies are streamed from the model.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Coach returns the active coach profile.
func (s *Service) Coach() coach.Coach {
	return s.coach
}

// GetChatModel returns the underlying chat model, shared with the classifiers.
func (s *Service) GetChatModel() model.BaseChatModel {
	return s.chatModel
}

// Generate writes the reply for one user message.
func (s *Service) Generate(ctx context.Context, req diagnosis.ReplyRequest) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Debug().Str("component", "ai").Str("session_id", req.SessionID).Str("coach", s.coach.ID).Int("length", len(response.Content)).Msg("generated reply")
	return response.Content, nil
}

// StreamReply streams the reply, passing each non-empty chunk to onDelta.
func (s *Service) StreamReply(ctx context.Context, req diagnosis.ReplyRequest, onDelta func(string) error) (string, error) {
	if !s.StreamingEnabled() {
		text, err := s.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		return text, onDelta(text)
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}
	if len(chunks) == 0 {
		return "", errors.New("empty stream")
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Greet writes the welcome message for a new session.
func (s *Service) Greet(ctx context.Context, user diagnosis.UserContext) (string, error) {
	query := "Write a two sentence welcome for a new user starting a money habits check-in. Do not ask a question."
	if name := strings.TrimSpace(user.Name); name != "" {
		query += fmt.Sprintf(" Their name is %s.", name)
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  s.prompts.BuildSystemPrompt(s.coach),
		"history": []*schema.Message(nil),
		"query":   query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run greeting chain: %w", err)
	}
	return response.Content, nil
}

func (s *Service) buildChainInput(req diagnosis.ReplyRequest) map[string]any {
	return map[string]any{
		"system":  s.buildSystemPrompt(req),
		"history": s.buildHistoryMessages(req.History),
		"query":   req.UserText,
	}
}

// buildSystemPrompt appends the classifier findings and the next question to
// the coach prompt.
func (s *Service) buildSystemPrompt(req diagnosis.ReplyRequest) string {
	var builder strings.Builder
	builder.WriteString(s.prompts.BuildSystemPrompt(s.coach))

	builder.WriteString("\n\nWhat the user's latest message shows:")
	if emotions := describeScores(req.Emotions); emotions != "" {
		builder.WriteString("\n- Emotions: ")
		builder.WriteString(emotions)
		if tone, _, ok := req.Emotions.Positive().Dominant(); ok {
			if hint := describeEmotion(tone); hint != "" {
				builder.WriteString("\n- ")
				builder.WriteString(hint)
			}
		}
	} else {
		builder.WriteString("\n- Emotions: none detected")
	}
	if patterns := describeScores(req.Patterns); patterns != "" {
		builder.WriteString("\n- Money patterns: ")
		builder.WriteString(patterns)
	} else {
		builder.WriteString("\n- Money patterns: none detected yet")
	}

	if question := strings.TrimSpace(req.NextQuestion.Text); question != "" {
		builder.WriteString("\n\nEnd your reply by asking, in your own words: ")
		builder.WriteString(question)
	}
	return builder.String()
}

func (s *Service) buildHistoryMessages(turns []diagnosismodel.ConversationTurn) []*schema.Message {
	historyLimit := s.cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Speaker {
		case diagnosismodel.SpeakerUser:
			history = append(history, schema.UserMessage(turn.Text))
		case diagnosismodel.SpeakerAI:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}

func describeScores(scores diagnosismodel.Scores) string {
	positive := scores.Positive()
	if len(positive) == 0 {
		return ""
	}
	parts := make([]string, 0, len(positive))
	for _, label := range positive.Labels() {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", strings.ReplaceAll(label, "_", " "), positive[label]))
	}
	return strings.Join(parts, ", ")
}

func describeEmotion(label string) string {
	switch label {
	case diagnosismodel.EmotionAnxious, diagnosismodel.EmotionFearful:
		return "The user sounds worried; reassure them before exploring further."
	case diagnosismodel.EmotionStressed, diagnosismodel.EmotionOverwhelmed:
		return "The user sounds overloaded; keep the reply short and break things into small steps."
	case diagnosismodel.EmotionSad:
		return "The user sounds low; respond with warmth and patience."
	case diagnosismodel.EmotionAngry:
		return "The user sounds frustrated; stay calm and acknowledge the frustration."
	case diagnosismodel.EmotionHappy, diagnosismodel.EmotionConfident, diagnosismodel.EmotionHopeful:
		return "The user sounds positive; affirm their progress."
	case diagnosismodel.EmotionCalm:
		return "The user sounds settled; keep a clear, friendly tone."
	default:
		return ""
	}
}
