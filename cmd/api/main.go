package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/capcoach/capcoach/backend/internal/config"
	"github.com/capcoach/capcoach/backend/internal/handler"
	"github.com/capcoach/capcoach/backend/internal/model/coach"
	"github.com/capcoach/capcoach/backend/internal/service/ai"
	"github.com/capcoach/capcoach/backend/internal/service/classifier"
	"github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.Logging)

	coachStore, err := coach.NewRoster(coach.Seed())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load coaches")
	}

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, coachStore, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI service, continuing with template replies")
		} else {
			log.Info().Str("provider", cfg.AI.Provider).Str("coach", aiService.Coach().ID).Msg("AI service initialized")
		}
	} else {
		log.Info().Str("provider", cfg.AI.Provider).Msg("chat model credentials not configured, using template replies")
	}

	var chatModel model.BaseChatModel
	if aiService != nil {
		chatModel = aiService.GetChatModel()
	}

	emotions, err := classifier.NewService(ctx, chatModel, classifier.Config{
		Kind:            classifier.KindEmotion,
		Enabled:         cfg.AI.EmotionLLMEnabled,
		FallbackEnabled: cfg.AI.FallbackEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize emotion classifier")
	}
	patterns, err := classifier.NewService(ctx, chatModel, classifier.Config{
		Kind:            classifier.KindPattern,
		Enabled:         cfg.AI.PatternLLMEnabled,
		FallbackEnabled: cfg.AI.FallbackEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pattern classifier")
	}
	log.Info().
		Bool("emotion_llm", emotions.Enabled()).
		Bool("pattern_llm", patterns.Enabled()).
		Bool("fallback", cfg.AI.FallbackEnabled).
		Msg("classifiers ready")

	questions, err := diagnosis.LoadQuestionBank(cfg.Diagnosis.QuestionsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load question bank")
	}

	store := diagnosis.NewStore(diagnosis.StoreOptions{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxActive,
	})
	go store.RunJanitor(ctx, cfg.Session.SweepInterval)

	opts := diagnosis.Options{
		Emotions:        emotions,
		Patterns:        patterns,
		Replies:         diagnosis.TemplateReplier{},
		Questions:       questions,
		FallbackEnabled: cfg.AI.FallbackEnabled,
		CallTimeout:     cfg.AI.CallTimeout,
		HistoryLimit:    cfg.AI.HistoryLimit,
	}
	activeCoach := coach.DefaultID
	if aiService != nil {
		opts.Replies = aiService
		opts.Greeter = aiService
		activeCoach = aiService.Coach().ID
	}

	engine, err := diagnosis.NewEngine(store, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize diagnosis engine")
	}

	router := handler.NewRouter(handler.Dependencies{
		Engine:      engine,
		Coaches:     coachStore,
		ActiveCoach: activeCoach,
	})

	startServer(ctx, cfg.Server, router)
}

func setupLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("CAPcoach backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
