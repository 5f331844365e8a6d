package coach

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capcoach/capcoach/backend/internal/model/coach"
	"github.com/capcoach/capcoach/backend/pkg/utils"
)

// Handler serves the coach catalogue.
type Handler struct {
	coaches coach.Catalog
	active  string
}

// New creates the coach handler. active is the coach currently voicing replies.
func New(coaches coach.Catalog, active string) *Handler {
	return &Handler{coaches: coaches, active: active}
}

// RegisterRoutes mounts the coach routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/coaches", h.handleListCoaches)
	r.Get("/coaches/{coachID}", h.handleGetCoach)
}

func (h *Handler) handleListCoaches(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"active":  h.active,
		"coaches": h.coaches.List(),
	})
}

func (h *Handler) handleGetCoach(w http.ResponseWriter, r *http.Request) {
	item, ok := h.coaches.FindByID(chi.URLParam(r, "coachID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "coach not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}
