package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/game"
	"github.com/reqfaster-debug/bunker-ws/internal/hub"
	"github.com/reqfaster-debug/bunker-ws/internal/lobby"
	"github.com/reqfaster-debug/bunker-ws/internal/registry"
)

type createLobbyRequest struct {
	Nickname string `json:"nickname"`
}

type createLobbyResponse struct {
	LobbyID string `json:"lobbyId"`
	HostID  string `json:"hostId"`
}

func CreateLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateLobby{HostName: req.Nickname, Reply: reply}
		res := <-reply
		if res.Err != nil {
			http.Error(w, res.Err.Error(), http.StatusBadRequest)
			return
		}

		log.Info("lobby created over http", zap.String("lobby", res.LobbyID))
		writeJSON(w, http.StatusCreated, createLobbyResponse{LobbyID: res.LobbyID, HostID: res.HostID})
	}
}

// GetLobby returns the lobby's current snapshot, the same shape the
// socket broadcasts.
func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lookupLobby(h, chi.URLParam(r, "id"))
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		reply := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetState{Reply: reply}
		v := <-reply

		writeJSON(w, http.StatusOK, struct {
			Version int             `json:"version"`
			Clients int             `json:"clients"`
			State   json.RawMessage `json:"state"`
		}{Version: v.Version, Clients: v.NumClients, State: v.State})
	}
}

type playerProbeResponse struct {
	LobbyID string `json:"lobbyId"`
	IsHost  bool   `json:"isHost"`
	Status  string `json:"status"`
}

// GetPlayer is the recovery probe: given a player id it reports which
// lobby the player belongs to, so a client that lost everything but
// its id can find its way back.
func GetPlayer(h *hub.Hub, reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := chi.URLParam(r, "id")
		lobbyID, ok := reg.RoomOf(playerID)
		if !ok {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}
		lb := lookupLobby(h, lobbyID)
		if lb == nil {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}

		reply := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetState{Reply: reply}
		v := <-reply

		var state game.State
		if err := json.Unmarshal(v.State, &state); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		p := state.Player(playerID)
		if p == nil || p.Kicked() {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, playerProbeResponse{
			LobbyID: lobbyID,
			IsHost:  state.IsHost(playerID),
			Status:  string(p.Status),
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookupLobby(h *hub.Hub, id string) *lobby.Lobby {
	if id == "" {
		return nil
	}
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{ID: id, Reply: reply}
	return <-reply
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
