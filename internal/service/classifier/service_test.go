package classifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

type fakeChatModel struct {
	reply string
	err   error
	calls atomic.Int32
	last  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls.Add(1)
	f.last = input
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestServiceParsesSchemaOutput(t *testing.T) {
	chatModel := &fakeChatModel{reply: `Sure! {"scores":[{"label":"Anxious","score":0.8},{"label":"stressed","score":0.4}]}`}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindEmotion, Enabled: true})
	require.NoError(t, err)
	require.True(t, svc.Enabled())

	result, err := svc.Analyze(context.Background(), "I can't sleep because of my debt")
	require.NoError(t, err)

	assert.Equal(t, SourceLLM, result.Source)
	assert.False(t, result.Degraded)
	assert.Equal(t, diagnosis.Scores{"anxious": 0.8, "stressed": 0.4}, result.Scores)
	assert.EqualValues(t, 1, chatModel.calls.Load())

	require.Len(t, chatModel.last, 2)
	assert.Contains(t, chatModel.last[0].Content, "anxious, calm")
	assert.Contains(t, chatModel.last[0].Content, `"scores"`)
	assert.Contains(t, chatModel.last[1].Content, "I can't sleep because of my debt")
}

func TestServiceAcceptsFlatObject(t *testing.T) {
	chatModel := &fakeChatModel{reply: `{"avoidance": 0.7, "money-dyslexia": 0.2}`}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindPattern, Enabled: true})
	require.NoError(t, err)

	result, err := svc.Analyze(context.Background(), "I never open my statements")
	require.NoError(t, err)
	assert.Equal(t, diagnosis.Scores{"avoidance": 0.7, "money_dyslexia": 0.2}, result.Scores)
}

func TestServiceFailureWithoutFallback(t *testing.T) {
	chatModel := &fakeChatModel{err: errors.New("upstream 500")}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindEmotion, Enabled: true})
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), "I feel worried")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestServiceFailureWithFallback(t *testing.T) {
	chatModel := &fakeChatModel{reply: "I think they are anxious"}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindEmotion, Enabled: true, FallbackEnabled: true})
	require.NoError(t, err)

	result, err := svc.Analyze(context.Background(), "I feel worried")
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, SourceKeyword, result.Source)
	assert.Equal(t, 1.0, result.Scores[diagnosis.EmotionAnxious])
	assert.Equal(t, map[string][]string{diagnosis.EmotionAnxious: {"worried"}}, result.Keywords)
}

func TestServiceCancellationNeverFallsBack(t *testing.T) {
	chatModel := &fakeChatModel{reply: `{"scores":[]}`}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindEmotion, Enabled: true, FallbackEnabled: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Analyze(ctx, "I feel worried")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceDisabledUsesKeywords(t *testing.T) {
	chatModel := &fakeChatModel{}
	svc, err := NewService(context.Background(), chatModel, Config{Kind: KindPattern})
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	result, err := svc.Analyze(context.Background(), "I buy things on impulse")
	require.NoError(t, err)
	assert.Equal(t, SourceKeyword, result.Source)
	assert.False(t, result.Degraded)
	assert.Equal(t, 1.0, result.Scores[diagnosis.PatternImpulsivity])
	assert.Zero(t, chatModel.calls.Load())
}

func TestNewServiceRejectsUnknownKind(t *testing.T) {
	_, err := NewService(context.Background(), nil, Config{Kind: "mood"})
	assert.Error(t, err)
}

func TestParseClassifierOutput(t *testing.T) {
	_, err := parseClassifierOutput("no json here")
	assert.Error(t, err)

	scores, err := parseClassifierOutput(`{"scores":[]}`)
	require.NoError(t, err)
	assert.Empty(t, scores)

	scores, err = parseClassifierOutput(`{"scores":[{"label":"sad","score":0.2},{"label":"SAD","score":0.5}]}`)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.Scores{"sad": 0.5}, scores)
}

func TestKeywordClassifierHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeywordClassifier(KindEmotion).Analyze(ctx, "worried")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeywordClassifierReportsEmotionTriggers(t *testing.T) {
	result, err := NewKeywordClassifier(KindEmotion).Analyze(context.Background(), "I'm scared and overwhelmed")
	require.NoError(t, err)
	assert.Equal(t, []string{"scared"}, result.Keywords[diagnosis.EmotionFearful])
	assert.Equal(t, []string{"overwhelmed"}, result.Keywords[diagnosis.EmotionOverwhelmed])

	result, err = NewKeywordClassifier(KindEmotion).Analyze(context.Background(), "nothing to report")
	require.NoError(t, err)
	assert.Nil(t, result.Keywords)

	result, err = NewKeywordClassifier(KindPattern).Analyze(context.Background(), "I buy things on impulse")
	require.NoError(t, err)
	assert.Nil(t, result.Keywords)
}

func TestClassifierKinds(t *testing.T) {
	assert.Equal(t, KindPattern, NewKeywordClassifier(KindPattern).Kind())

	svc, err := NewService(context.Background(), &fakeChatModel{}, Config{Kind: KindEmotion})
	require.NoError(t, err)
	assert.Equal(t, KindEmotion, svc.Kind())
}
