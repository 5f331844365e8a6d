package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capcoach/capcoach/backend/internal/model/coach"
	"github.com/capcoach/capcoach/backend/internal/service/classifier"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	engine, err := diagnosisService.NewEngine(diagnosisService.NewStore(diagnosisService.StoreOptions{}), diagnosisService.Options{
		Emotions: classifier.NewKeywordClassifier(classifier.KindEmotion),
		Patterns: classifier.NewKeywordClassifier(classifier.KindPattern),
		Replies:  diagnosisService.TemplateReplier{},
	})
	require.NoError(t, err)

	return NewRouter(Dependencies{
		Engine:      engine,
		Coaches:     coach.MustNewRoster(coach.Seed()),
		ActiveCoach: coach.DefaultID,
	})
}

func TestRouterMountsRoutes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/ai/health", "", http.StatusOK},
		{http.MethodGet, "/api/ai/coaches", "", http.StatusOK},
		{http.MethodPost, "/api/ai/session/start", "{}", http.StatusCreated},
		{http.MethodGet, "/api/ai/session/missing", "", http.StatusNotFound},
		{http.MethodGet, "/api/ai/stream/missing?message=hi", "", http.StatusNotFound},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterAppliesCORS(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/ai/chat/send", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
