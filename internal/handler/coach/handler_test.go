package coach

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/capcoach/capcoach/backend/internal/model/coach"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	New(coach.MustNewRoster(coach.Seed()), coach.DefaultID).RegisterRoutes(r)
	return r
}

func TestListCoaches(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coaches", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Active  string        `json:"active"`
		Coaches []coach.Coach `json:"coaches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Active != coach.DefaultID {
		t.Fatalf("expected active coach %s, got %s", coach.DefaultID, body.Active)
	}
	if len(body.Coaches) != len(coach.Seed()) {
		t.Fatalf("expected %d coaches, got %d", len(coach.Seed()), len(body.Coaches))
	}
}

func TestGetCoach(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coaches/gentle-guide", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got coach.Coach
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "gentle-guide" {
		t.Fatalf("unexpected coach %q", got.ID)
	}

	rec = httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coaches/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
