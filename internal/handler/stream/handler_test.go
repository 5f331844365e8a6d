package stream

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capcoach/capcoach/backend/internal/service/classifier"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

type chunkedReplier struct {
	chunks []string
	failAt int
}

func (c chunkedReplier) Generate(_ context.Context, _ diagnosisService.ReplyRequest) (string, error) {
	return strings.Join(c.chunks, ""), nil
}

func (c chunkedReplier) StreamReply(_ context.Context, _ diagnosisService.ReplyRequest, onDelta func(string) error) (string, error) {
	var b strings.Builder
	for i, chunk := range c.chunks {
		if c.failAt > 0 && i == c.failAt {
			return "", errors.New("model went away")
		}
		if err := onDelta(chunk); err != nil {
			return "", err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

func newTestEngine(t *testing.T, replies diagnosisService.ReplyGenerator) (*diagnosisService.Engine, string) {
	t.Helper()
	return newTestEngineWith(t, diagnosisService.Options{Replies: replies})
}

func newTestEngineWith(t *testing.T, opts diagnosisService.Options) (*diagnosisService.Engine, string) {
	t.Helper()

	opts.Emotions = classifier.NewKeywordClassifier(classifier.KindEmotion)
	opts.Patterns = classifier.NewKeywordClassifier(classifier.KindPattern)
	engine, err := diagnosisService.NewEngine(diagnosisService.NewStore(diagnosisService.StoreOptions{}), opts)
	require.NoError(t, err)

	start, err := engine.CreateSession(context.Background(), diagnosisService.UserContext{})
	require.NoError(t, err)
	return engine, start.SessionID
}

func serve(engine Engine, sessionID, message string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(engine).RegisterRoutes(r)

	target := "/stream/" + sessionID
	if message != "" {
		target += "?message=" + url.QueryEscape(message)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func readFrames(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var frames []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func events(frames []StreamResponse) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestStreamDeliversDeltasAndReply(t *testing.T) {
	engine, sessionID := newTestEngine(t, chunkedReplier{chunks: []string{"That sounds ", "hard. ", "What happens next?"}})

	rec := serve(engine, sessionID, "I ignore my statements")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := readFrames(t, rec.Body.String())
	assert.Equal(t, []string{"start", "delta", "delta", "delta", "message", "insights", "end"}, events(frames))
	assert.Equal(t, "hard. ", frames[2].Content)
	assert.Equal(t, "That sounds hard. What happens next?", frames[4].Content)
	for _, f := range frames {
		assert.Equal(t, sessionID, f.SessionID)
	}
	assert.True(t, frames[len(frames)-1].Finished)

	snapshot, err := engine.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Context.Turns, 2)
}

func TestStreamWithoutStreamingReplier(t *testing.T) {
	engine, sessionID := newTestEngine(t, diagnosisService.TemplateReplier{})

	frames := readFrames(t, serve(engine, sessionID, "hello there").Body.String())
	assert.Equal(t, []string{"start", "delta", "message", "insights", "end"}, events(frames))
	assert.Equal(t, frames[1].Content, frames[2].Content)
}

func TestStreamFailureBeforeFirstDelta(t *testing.T) {
	engine, _ := newTestEngine(t, diagnosisService.TemplateReplier{})

	rec := serve(engine, "missing", "hello")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestStreamFailureMidway(t *testing.T) {
	engine, sessionID := newTestEngine(t, chunkedReplier{chunks: []string{"one ", "two"}, failAt: 1})

	rec := serve(engine, sessionID, "hello")
	require.Equal(t, http.StatusOK, rec.Code)

	frames := readFrames(t, rec.Body.String())
	assert.Equal(t, []string{"start", "delta", "error"}, events(frames))
	assert.NotEmpty(t, frames[2].Error)

	snapshot, err := engine.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Context.Turns)
}

func TestStreamFallbackAfterPartialReplySendsReset(t *testing.T) {
	engine, sessionID := newTestEngineWith(t, diagnosisService.Options{
		Replies:         chunkedReplier{chunks: []string{"one ", "two"}, failAt: 1},
		FallbackEnabled: true,
	})

	rec := serve(engine, sessionID, "I ignore my statements")
	require.Equal(t, http.StatusOK, rec.Code)

	frames := readFrames(t, rec.Body.String())
	assert.Equal(t, []string{"start", "delta", "reset", "message", "insights", "end"}, events(frames))

	snapshot, err := engine.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, snapshot.Context.Turns, 2)
	assert.Equal(t, snapshot.Context.Turns[1].Text, frames[3].Content)
	assert.NotContains(t, frames[3].Content, "one ")
}

func TestStreamRequiresMessage(t *testing.T) {
	engine, sessionID := newTestEngine(t, diagnosisService.TemplateReplier{})

	rec := serve(engine, sessionID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
