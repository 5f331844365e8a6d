package stream

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	diagnosisHandler "github.com/capcoach/capcoach/backend/internal/handler/diagnosis"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
	"github.com/capcoach/capcoach/backend/pkg/utils"
)

// Engine is the streaming surface of the diagnosis engine.
type Engine interface {
	StreamUserMessage(ctx context.Context, sessionID, text string, onDelta func(string) error) (diagnosisService.Reply, error)
	Insights(ctx context.Context, sessionID string) (diagnosisService.Insights, error)
}

// Handler streams coach replies via Server-Sent Events.
type Handler struct {
	engine Engine
}

// New creates a new stream handler.
func New(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes mounts the stream route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	s := &sseWriter{w: w, flusher: flusher, sessionID: sessionID}
	reply, err := h.engine.StreamUserMessage(r.Context(), sessionID, message, func(delta string) error {
		if err := s.open(); err != nil {
			return err
		}
		return s.send(StreamResponse{Event: "delta", Content: delta})
	})
	if err != nil {
		if !s.started {
			// nothing streamed yet, so the client still gets a plain status
			diagnosisHandler.RespondEngineError(w, err)
			return
		}
		log.Warn().Str("component", "stream").Str("session_id", sessionID).Err(err).Msg("stream aborted")
		_ = s.send(StreamResponse{Event: "error", Error: err.Error()})
		return
	}

	if err := s.open(); err != nil {
		return
	}
	if reply.StreamReset {
		// deltas sent so far belong to an abandoned reply
		if err := s.send(StreamResponse{Event: "reset"}); err != nil {
			return
		}
	}
	if err := s.send(StreamResponse{Event: "message", Content: reply.AIReplyText, Data: reply}); err != nil {
		return
	}

	if insights, err := h.engine.Insights(r.Context(), sessionID); err == nil {
		_ = s.send(StreamResponse{Event: "insights", Data: insights})
	} else {
		log.Warn().Str("component", "stream").Str("session_id", sessionID).Err(err).Msg("insights unavailable")
	}

	_ = s.send(StreamResponse{Event: "end", Finished: true})
	log.Debug().Str("component", "stream").Str("session_id", sessionID).Msg("stream completed")
}

// sseWriter defers the event-stream headers until there is something to send.
type sseWriter struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	sessionID string
	started   bool
}

func (s *sseWriter) open() error {
	if s.started {
		return nil
	}
	s.started = true
	utils.SetupSSEHeaders(s.w)
	s.w.WriteHeader(http.StatusOK)
	return s.send(StreamResponse{Event: "start"})
}

func (s *sseWriter) send(resp StreamResponse) error {
	resp.SessionID = s.sessionID
	return utils.SendSSEChunk(s.w, s.flusher, resp)
}
