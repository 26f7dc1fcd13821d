package hub

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
	"github.com/reqfaster-debug/bunker-ws/internal/lobby"
	"github.com/reqfaster-debug/bunker-ws/internal/registry"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	HostName string
	Reply    chan CreateResult
}

type CreateResult struct {
	Lobby   *lobby.Lobby
	LobbyID string
	HostID  string
	Err     error
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	ID string
}

// SnapshotAll asks every lobby to enqueue a persistence snapshot.
type SnapshotAll struct{}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (SnapshotAll) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Deps is everything a hub needs to assemble a lobby.
type Deps struct {
	Rules    game.Rules
	Tables   character.Tables
	Params   character.Params
	Persist  lobby.Persister
	Registry *registry.Registry
	Log      *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	deps    Deps
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Rehydrate rebuilds lobbies from persisted snapshots. Every player
// comes back offline and is routed to their lobby so reconnects work
// without naming it. Call before serving traffic.
func (h *Hub) Rehydrate(snapshots map[string][]byte) {
	for id, raw := range snapshots {
		var state game.State
		if err := json.Unmarshal(raw, &state); err != nil {
			h.deps.Log.Warn("skipping corrupt snapshot", zap.String("lobby", id), zap.Error(err))
			continue
		}
		for _, p := range state.Players {
			p.Online = false
			if !p.Kicked() {
				h.deps.Registry.SetRoom(p.ID, state.ID)
			}
		}
		h.lobbies[state.ID] = h.newLobby(&state)
		h.deps.Log.Info("rehydrated lobby",
			zap.String("lobby", state.ID),
			zap.Int("players", len(state.Players)),
			zap.String("status", string(state.Status)))
	}
}

func (h *Hub) newLobby(state *game.State) *lobby.Lobby {
	gen := character.NewGenerator(h.deps.Tables, h.deps.Params, rand.New(rand.NewSource(time.Now().UnixNano())))
	return lobby.New(h.ctx, state, gen, h.deps.Persist, h.deps.Log.With(zap.String("lobby", state.ID)))
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				name := strings.TrimSpace(msg.HostName)
				if name == "" || utf8.RuneCountInString(name) > h.deps.Rules.NameLimit {
					msg.Reply <- CreateResult{Err: game.ErrInvalidName}
					break
				}
				state := game.NewState(name, h.deps.Rules)
				lb := h.newLobby(state)
				h.lobbies[state.ID] = lb
				h.deps.Registry.SetRoom(state.HostID, state.ID)
				h.deps.Log.Info("created lobby", zap.String("lobby", state.ID))
				msg.Reply <- CreateResult{Lobby: lb, LobbyID: state.ID, HostID: state.HostID}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.ID] // may be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.ID]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.ID)
					h.deps.Registry.DropRoom(msg.ID)
				}

			case SnapshotAll:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Persist{}
				}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}
