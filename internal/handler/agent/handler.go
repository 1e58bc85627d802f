// Package agent exposes the natural-language attendance assistant over HTTP.
package agent

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rollcall-app/rollcall/backend/internal/middleware"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
	agentservice "github.com/rollcall-app/rollcall/backend/internal/service/agent"
	"github.com/rollcall-app/rollcall/backend/pkg/utils"
)

// Handler serves POST /agent/send.
type Handler struct {
	svc *agentservice.Service
}

// New creates the agent handler. svc may be nil when the chat model is not
// configured; the endpoint then reports the assistant unavailable.
func New(svc *agentservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/agent/send", h.handleSend)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		utils.RespondJSON(w, http.StatusServiceUnavailable, agentmodel.ChatResponse{
			Success: false,
			Message: "The AI assistant is not configured on this server.",
		})
		return
	}

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		utils.RespondJSON(w, http.StatusUnauthorized, agentmodel.ChatResponse{
			Success: false,
			Message: "You must be signed in to use the assistant.",
		})
		return
	}

	var req agentmodel.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := actor.Claims{UserID: principal.UserID, Roles: principal.Roles}
	resp := h.svc.HandleMessage(r.Context(), claims, req)
	utils.RespondJSON(w, http.StatusOK, resp)
}
