package diagnosis

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
	"github.com/capcoach/capcoach/backend/pkg/utils"
)

// Engine is the part of the diagnosis engine the HTTP API drives.
type Engine interface {
	CreateSession(ctx context.Context, user diagnosisService.UserContext) (diagnosisService.SessionStart, error)
	SubmitUserMessage(ctx context.Context, sessionID, text string) (diagnosisService.Reply, error)
	CloseSession(ctx context.Context, sessionID string) (model.DiagnosisSummary, error)
	Snapshot(ctx context.Context, sessionID string) (diagnosisService.SessionSnapshot, error)
	Progress(ctx context.Context, sessionID string) (float64, error)
	NextQuestion(ctx context.Context, sessionID string) (diagnosisService.Question, error)
	Insights(ctx context.Context, sessionID string) (diagnosisService.Insights, error)
	ClearConversation(ctx context.Context, sessionID string) error
	AnalyzeEmotions(ctx context.Context, text string) (diagnosisService.EmotionAnalysis, error)
	Health() diagnosisService.Health
}

// Handler serves the diagnostic session API.
type Handler struct {
	engine Engine
}

// New creates the diagnosis handler.
func New(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/session/start", h.handleStartSession)
	r.Post("/chat/send", h.handleSendMessage)
	r.Post("/analyze-emotions", h.handleAnalyzeEmotions)

	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Get("/insights", h.handleInsights)
		r.Get("/progress", h.handleProgress)
		r.Post("/close", h.handleCloseSession)
		r.Post("/clear", h.handleClearSession)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"engine": h.engine.Health(),
	})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload diagnosisService.UserContext
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := h.engine.CreateSession(r.Context(), payload)
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, start)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.engine.SubmitUserMessage(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleAnalyzeEmotions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	analysis, err := h.engine.AnalyzeEmotions(r.Context(), payload.Text)
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, analysis)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.engine.Insights(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, insights)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	progress, err := h.engine.Progress(r.Context(), sessionID)
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	question, err := h.engine.NextQuestion(r.Context(), sessionID)
	if err != nil {
		RespondEngineError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId":    sessionID,
		"progress":     progress,
		"maxTurns":     diagnosisService.MaxTurns,
		"complete":     progress >= 1,
		"nextQuestion": question,
	})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.CloseSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.engine.ClearConversation(r.Context(), sessionID); err != nil {
		RespondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared", "sessionId": sessionID})
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, diagnosisService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, diagnosisService.ErrDuplicateSession), errors.Is(err, diagnosisService.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, diagnosisService.ErrInvalidTurn):
		return http.StatusBadRequest
	case errors.Is(err, diagnosisService.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RespondEngineError writes err with the matching status.
func RespondEngineError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Str("component", "diagnosis_handler").Err(err).Int("status", status).Msg("request failed")
	}
	utils.RespondError(w, status, err.Error())
}
