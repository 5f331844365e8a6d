package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "AI_PROVIDER", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "GROQ_API_KEY", "GROQ_BASE_URL",
		"AI_TEMPERATURE", "AI_MAX_TOKENS", "ARK_TOP_P", "ARK_STREAM",
		"AI_EMOTION_LLM_ENABLED", "AI_PATTERN_LLM_ENABLED", "AI_FALLBACK_ENABLED",
		"AI_CALL_TIMEOUT", "AI_HISTORY_LIMIT", "COACH_PERSONA",
		"SESSION_TTL", "SESSION_MAX_ACTIVE", "SESSION_SWEEP_INTERVAL",
		"DIAGNOSIS_QUESTIONS_FILE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.True(t, cfg.AI.StreamResponse)
	assert.False(t, cfg.AI.FallbackEnabled)
	assert.Equal(t, 30*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, 10, cfg.AI.HistoryLimit)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10000, cfg.Session.MaxActive)
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	t.Setenv("OPENAI_MODEL", "llama-3.1-8b-instant")
	t.Setenv("AI_TEMPERATURE", "0.4")
	t.Setenv("AI_MAX_TOKENS", "512")
	t.Setenv("AI_FALLBACK_ENABLED", "true")
	t.Setenv("AI_CALL_TIMEOUT", "5s")
	t.Setenv("AI_HISTORY_LIMIT", "0")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("SESSION_MAX_ACTIVE", "50")
	t.Setenv("DIAGNOSIS_QUESTIONS_FILE", "/etc/capcoach/questions.yaml")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gsk-test", cfg.AI.OpenAIAPIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.AI.OpenAIBaseURL)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.4, *cfg.AI.Temperature, 1e-9)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.True(t, cfg.AI.FallbackEnabled)
	assert.Equal(t, 5*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, 1, cfg.AI.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 50, cfg.Session.MaxActive)
	assert.Equal(t, "/etc/capcoach/questions.yaml", cfg.Diagnosis.QuestionsFile)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.AI.Enabled())
}

func TestOpenAIKeyTakesPrecedenceOverGroq(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GROQ_API_KEY", "gsk-groq")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.AI.OpenAIAPIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                "80 80",
		"AI_PROVIDER":         "bedrock",
		"AI_TEMPERATURE":      "warm",
		"AI_MAX_TOKENS":       "lots",
		"ARK_STREAM":          "maybe",
		"AI_CALL_TIMEOUT":     "soon",
		"SESSION_TTL":         "-5m",
		"SESSION_MAX_ACTIVE":  "-1",
		"LOG_FORMAT":          "xml",
		"AI_FALLBACK_ENABLED": "sometimes",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	_, err := AIConfig{Provider: ProviderArk}.NewChatModel(context.Background())
	assert.ErrorContains(t, err, "ark credentials missing")

	_, err = AIConfig{Provider: ProviderOpenAI}.NewChatModel(context.Background())
	assert.ErrorContains(t, err, "openai credentials missing")
}

func TestNewChatModelOpenAI(t *testing.T) {
	temp := 0.2
	chatModel, err := AIConfig{
		Provider:     ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
		OpenAIModel:  "gpt-4o-mini",
		Temperature:  &temp,
	}.NewChatModel(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, chatModel)
}

func TestEnabled(t *testing.T) {
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, AIConfig{Model: "m", AccessKey: "a"}.Enabled())
	assert.False(t, AIConfig{Provider: ProviderOpenAI, OpenAIAPIKey: "k"}.Enabled())
}
