package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	coachHandler "github.com/capcoach/capcoach/backend/internal/handler/coach"
	diagnosisHandler "github.com/capcoach/capcoach/backend/internal/handler/diagnosis"
	"github.com/capcoach/capcoach/backend/internal/handler/stream"
	"github.com/capcoach/capcoach/backend/internal/handler/ws"
	middlewarePkg "github.com/capcoach/capcoach/backend/internal/middleware"
	"github.com/capcoach/capcoach/backend/internal/model/coach"
	diagnosisService "github.com/capcoach/capcoach/backend/internal/service/diagnosis"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Engine      *diagnosisService.Engine
	Coaches     coach.Catalog
	ActiveCoach string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Route("/ai", func(ai chi.Router) {
			if deps.Coaches != nil {
				coachHandler.New(deps.Coaches, deps.ActiveCoach).RegisterRoutes(ai)
			}
			diagnosisHandler.New(deps.Engine).RegisterRoutes(ai)
			stream.New(deps.Engine).RegisterRoutes(ai)
			ws.New(deps.Engine).RegisterRoutes(ai)
		})
	})

	return r
}
