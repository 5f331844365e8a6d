// Package provider adapts OpenAI-compatible endpoints (OpenAI, Groq) to eino.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/rs/zerolog/log"
)

// OpenAIConfig describes an OpenAI-compatible Responses endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	MaxTokens   *int
	MaxRetries  int
}

// OpenAIChatModel implements eino's model.ChatModel on top of openai-go.
type OpenAIChatModel struct {
	client     *openai.Client
	cfg        OpenAIConfig
	retryWaits []time.Duration
}

var _ model.ChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel creates the adapter. BaseURL may point at any
// OpenAI-compatible service.
func NewOpenAIChatModel(cfg OpenAIConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is empty")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIChatModel{
		client:     &client,
		cfg:        cfg,
		retryWaits: []time.Duration{time.Second, 3 * time.Second, 9 * time.Second},
	}, nil
}

// Generate sends the conversation and returns the assistant message.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
		Model:       &m.cfg.Model,
	}, opts...)

	req, err := buildRequest(input, options)
	if err != nil {
		return nil, err
	}

	resp, err := m.callWithRetry(ctx, req.params())
	if err != nil {
		return nil, fmt.Errorf("openai responses call: %w", err)
	}
	return schema.AssistantMessage(resp.OutputText(), nil), nil
}

// Stream returns the full response as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported; the coach never calls tools.
func (m *OpenAIChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("openai: tool calling not supported")
}

type requestMessage struct {
	role    responses.EasyInputMessageRole
	content string
}

type responseRequest struct {
	model        string
	instructions string
	messages     []requestMessage
	temperature  *float32
	maxTokens    *int
}

// buildRequest folds system messages into instructions and keeps the rest in order.
func buildRequest(input []*schema.Message, options *model.Options) (*responseRequest, error) {
	req := &responseRequest{
		temperature: options.Temperature,
		maxTokens:   options.MaxTokens,
	}
	if options.Model != nil {
		req.model = *options.Model
	}

	var instructions []string
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			if text := strings.TrimSpace(msg.Content); text != "" {
				instructions = append(instructions, text)
			}
		case schema.User:
			req.messages = append(req.messages, requestMessage{role: responses.EasyInputMessageRoleUser, content: msg.Content})
		case schema.Assistant:
			req.messages = append(req.messages, requestMessage{role: responses.EasyInputMessageRoleAssistant, content: msg.Content})
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", msg.Role)
		}
	}
	if len(req.messages) == 0 {
		return nil, errors.New("openai: no user or assistant messages")
	}
	req.instructions = strings.Join(instructions, "\n\n")
	return req, nil
}

func (r *responseRequest) params() responses.ResponseNewParams {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(r.messages))
	for _, msg := range r.messages {
		items = append(items, responses.ResponseInputItemParamOfMessage(msg.content, msg.role))
	}

	params := responses.ResponseNewParams{
		Model: r.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if r.instructions != "" {
		params.Instructions = openai.String(r.instructions)
	}
	if r.temperature != nil {
		params.Temperature = openai.Float(float64(*r.temperature))
	}
	if r.maxTokens != nil {
		params.MaxOutputTokens = openai.Int(int64(*r.maxTokens))
	}
	return params
}

func (m *OpenAIChatModel) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		resp, err := m.client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) || attempt == m.cfg.MaxRetries-1 {
			return nil, err
		}

		wait := m.retryWaits[min(attempt, len(m.retryWaits)-1)]
		log.Warn().Str("component", "openai").Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying responses call")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("failed after %d attempts", m.cfg.MaxRetries)
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
