package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diagnosisHandler "github.com/capcoach/capcoach/backend/internal/handler/diagnosis"
	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

const (
	defaultReadTimeout = 60 * time.Second
	writeTimeout       = 10 * time.Second
)

// Engine is the part of the diagnosis engine a live connection drives.
type Engine interface {
	Snapshot(ctx context.Context, sessionID string) (diagnosisService.SessionSnapshot, error)
	StreamUserMessage(ctx context.Context, sessionID, text string, onDelta func(string) error) (diagnosisService.Reply, error)
	Insights(ctx context.Context, sessionID string) (diagnosisService.Insights, error)
	CloseSession(ctx context.Context, sessionID string) (model.DiagnosisSummary, error)
}

// Handler runs a diagnostic conversation over a websocket.
type Handler struct {
	engine      Engine
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// New creates the websocket handler.
func New(engine Engine) *Handler {
	return &Handler{
		engine:      engine,
		readTimeout: defaultReadTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type textPayload struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(kind string, data any) error {
	payload, err := json.Marshal(outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *connection) sendError(err error) {
	data := map[string]any{
		"message": err.Error(),
		"status":  diagnosisHandler.StatusFor(err),
	}
	if sendErr := c.send("error", data); sendErr != nil {
		log.Debug().Str("component", "websocket").Str("session_id", c.sessionID).Err(sendErr).Msg("write error frame failed")
	}
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.engine.Snapshot(r.Context(), sessionID); err != nil {
		diagnosisHandler.RespondEngineError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "websocket").Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "websocket").Str("session_id", sessionID).Logger()
	logger.Info().Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	c := &connection{conn: conn, sessionID: sessionID}
	go h.pingLoop(ctx, c)

	if err := c.send("connected", map[string]any{"maxTurns": diagnosisService.MaxTurns}); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(errors.New("invalid message"))
			continue
		}

		if done := h.handleMessage(ctx, c, msg); done {
			_ = c.closeNormally()
			logger.Info().Msg("connection closed by client request")
			return
		}
		// a slow exchange must not eat into the next read
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// handleMessage processes one inbound frame and reports whether the
// connection should end.
func (h *Handler) handleMessage(ctx context.Context, c *connection, msg inboundMessage) bool {
	switch msg.Type {
	case "message":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || strings.TrimSpace(payload.Text) == "" {
			c.sendError(errors.New("message text is required"))
			return false
		}
		h.handleText(ctx, c, payload.Text)
	case "ping":
		_ = c.send("pong", nil)
	case "close":
		summary, err := h.engine.CloseSession(ctx, c.sessionID)
		if err != nil {
			c.sendError(err)
			return false
		}
		_ = c.send("summary", summary)
		return true
	default:
		c.sendError(errors.New("unsupported message type: " + msg.Type))
	}
	return false
}

func (h *Handler) handleText(ctx context.Context, c *connection, text string) {
	reply, err := h.engine.StreamUserMessage(ctx, c.sessionID, text, func(delta string) error {
		return c.send("delta", map[string]string{"content": delta})
	})
	if err != nil {
		c.sendError(err)
		return
	}
	if reply.StreamReset {
		if err := c.send("reset", nil); err != nil {
			return
		}
	}
	if err := c.send("reply", reply); err != nil {
		return
	}

	insights, err := h.engine.Insights(ctx, c.sessionID)
	if err != nil {
		c.sendError(err)
		return
	}
	_ = c.send("insights", insights)
}

func (c *connection) closeNormally() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	return c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

func (h *Handler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(h.readTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
