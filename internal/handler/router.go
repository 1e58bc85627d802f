package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	agenthandler "github.com/rollcall-app/rollcall/backend/internal/handler/agent"
	"github.com/rollcall-app/rollcall/backend/internal/middleware"
	agentservice "github.com/rollcall-app/rollcall/backend/internal/service/agent"
	"github.com/rollcall-app/rollcall/backend/internal/store"
	"github.com/rollcall-app/rollcall/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. agentSvc may be nil when
// the chat model is not configured.
func NewRouter(agentSvc *agentservice.Service, repo store.Repository, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.Identity)

	agentHandler := agenthandler.New(agentSvc)

	r.Route("/api", func(api chi.Router) {
		agentHandler.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			if repo != nil {
				if err := repo.Ping(req.Context()); err != nil {
					utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
					return
				}
			}
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
