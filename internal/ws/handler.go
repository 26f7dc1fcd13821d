package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
	"github.com/reqfaster-debug/bunker-ws/internal/hub"
	"github.com/reqfaster-debug/bunker-ws/internal/lobby"
	"github.com/reqfaster-debug/bunker-ws/internal/narrator"
	"github.com/reqfaster-debug/bunker-ws/internal/registry"
	"github.com/reqfaster-debug/bunker-ws/internal/types"
)

const (
	joinTimeout  = 10 * time.Second
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
)

// kickable adapts a websocket connection to the registry's eviction
// hook. Closing the connection is enough: the reader loop exits and
// the deferred unbind is a no-op because the binding moved on.
type kickable struct {
	conn *websocket.Conn
}

func (k kickable) Kick(reason string) {
	_ = k.conn.Close(websocket.StatusPolicyViolation, reason)
}

func Handler(h *hub.Hub, reg *registry.Registry, nar narrator.Narrator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// First message decides who we are and which lobby we serve.
		first, err := readMessage(r.Context(), conn, joinTimeout)
		if err != nil {
			return
		}

		lobbyID := first.LobbyID
		switch first.Type {
		case "join":
		case "reconnect":
			room, ok := reg.RoomOf(first.PlayerID)
			if !ok {
				writeError(r.Context(), conn, "unknown player")
				return
			}
			lobbyID = room
		default:
			writeError(r.Context(), conn, "expected join or reconnect")
			return
		}

		lbReply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{ID: lobbyID, Reply: lbReply}
		lb := <-lbReply
		if lb == nil {
			writeError(r.Context(), conn, "lobby not found")
			return
		}

		outbox := make(chan lobby.Outbound, 32)
		attachReply := make(chan lobby.AttachResult, 1)
		lb.Inbox() <- lobby.Attach{
			PlayerID: first.PlayerID,
			Name:     first.Nickname,
			Outbox:   outbox,
			Reply:    attachReply,
		}
		res := <-attachReply
		if res.Err != nil {
			writeError(r.Context(), conn, res.Err.Error())
			return
		}
		playerID := res.PlayerID

		connID := uuid.NewString()
		reg.SetRoom(playerID, lobbyID)
		if old := reg.Bind(connID, playerID, kickable{conn}); old != nil {
			old.Kick("connected elsewhere")
		}
		defer func() {
			if pid, ok := reg.Unbind(connID); ok {
				lb.Inbox() <- lobby.Detach{PlayerID: pid, Outbox: outbox}
			}
		}()

		writeMessage(r.Context(), conn, types.ServerMessage{
			Type: "joined", PlayerID: playerID, LobbyID: lobbyID,
		})

		log.Debug("client attached",
			zap.String("lobby", lobbyID), zap.String("player", playerID))

		// Writer goroutine. The lobby closing the outbox (kick, lobby
		// shutdown, replaced subscription) closes the connection.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for out := range outbox {
				writeMessage(writeCtx, conn, toServerMessage(out))
			}
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
		}()

		// Reader loop.
		for {
			cm, err := readMessage(r.Context(), conn, readTimeout)
			if err != nil {
				return
			}
			cmd, ok := toCommand(cm, playerID)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			if cmd.Type == game.CmdAddEvent {
				cmd.Text = narrateEvent(r.Context(), lb, nar, playerID)
			}
			lb.Inbox() <- lobby.FromClient{Cmd: cmd}
		}
	}
}

func readMessage(ctx context.Context, conn *websocket.Conn, within time.Duration) (types.ClientMessage, error) {
	rctx, cancel := context.WithTimeout(ctx, within)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		return types.ClientMessage{}, err
	}
	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return types.ClientMessage{}, err
	}
	return cm, nil
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, text string) {
	writeMessage(ctx, conn, types.ServerMessage{Type: "error", Error: text})
}

func toServerMessage(out lobby.Outbound) types.ServerMessage {
	switch {
	case out.Error != "":
		return types.ServerMessage{Type: "error", Error: out.Error}
	case out.Event != nil:
		return types.ServerMessage{Type: "event", Version: out.Version, Event: out.Event}
	default:
		return types.ServerMessage{Type: "snapshot", Version: out.Version, State: out.State}
	}
}

// narrateEvent asks the narrator for a feed line about the current
// game. A narrator failure falls back to the bare prompt rather than
// swallowing the host's action. Non-hosts never reach the narrator:
// the lobby will reject their command anyway, so the potentially
// expensive call is skipped up front.
func narrateEvent(ctx context.Context, lb *lobby.Lobby, nar narrator.Narrator, actorID string) string {
	reply := make(chan lobby.View, 1)
	lb.Inbox() <- lobby.GetState{Reply: reply}
	var state game.State
	select {
	case v := <-reply:
		_ = json.Unmarshal(v.State, &state)
	case <-time.After(writeTimeout):
	}
	if !state.IsHost(actorID) {
		return ""
	}
	prompt := narrator.BuildPrompt(&state)
	line, err := nar.Line(ctx, prompt)
	if err != nil || line == "" {
		return prompt
	}
	return line
}

func toCommand(m types.ClientMessage, actorID string) (game.Command, bool) {
	switch m.Type {
	case "start_game":
		return game.Command{Type: game.CmdStartGame, ActorID: actorID}, true
	case "reveal_trait":
		target := m.TargetID
		if target == "" {
			target = actorID
		}
		return game.Command{Type: game.CmdRevealTrait, ActorID: actorID, PlayerID: target, Trait: character.TraitName(m.Trait)}, true
	case "mutate_trait":
		return game.Command{
			Type:     game.CmdMutateTrait,
			ActorID:  actorID,
			PlayerID: m.TargetID,
			Trait:    character.TraitName(m.Trait),
			Op:       game.TraitOp(m.Op),
			Value:    m.Value,
			Severity: character.Severity(m.Severity),
			Index:    m.Index,
		}, true
	case "set_status":
		return game.Command{Type: game.CmdSetStatus, ActorID: actorID, PlayerID: m.TargetID, Status: game.PlayerStatus(m.Status)}, true
	case "transfer_host":
		return game.Command{Type: game.CmdTransferHost, ActorID: actorID, PlayerID: m.TargetID}, true
	case "start_voting":
		return game.Command{Type: game.CmdStartVoting, ActorID: actorID}, true
	case "vote":
		return game.Command{Type: game.CmdCastVote, ActorID: actorID, PlayerID: m.TargetID}, true
	case "cancel_voting":
		return game.Command{Type: game.CmdCancelVoting, ActorID: actorID}, true
	case "add_event":
		return game.Command{Type: game.CmdAddEvent, ActorID: actorID}, true
	case "play_sound":
		return game.Command{Type: game.CmdPlaySound, ActorID: actorID, Sound: m.Sound}, true
	default:
		return game.Command{}, false
	}
}
