package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/hub"
	"github.com/reqfaster-debug/bunker-ws/internal/narrator"
	"github.com/reqfaster-debug/bunker-ws/internal/registry"
	"github.com/reqfaster-debug/bunker-ws/internal/ws"
)

func SetupRoutes(h *hub.Hub, reg *registry.Registry, nar narrator.Narrator, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/api/lobby", CreateLobby(h, log))
	r.Get("/api/lobby/{id}", GetLobby(h))
	r.Get("/api/player/{id}", GetPlayer(h, reg))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, reg, nar, log))
	return r
}
