package types

import (
	"encoding/json"

	"github.com/reqfaster-debug/bunker-ws/internal/game"
)

// ClientMessage is every action a client can send over the socket. The
// first message must be "join" or "reconnect"; everything after that
// acts on the lobby the connection is bound to.
type ClientMessage struct {
	Type     string `json:"type"`
	LobbyID  string `json:"lobby_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Trait    string `json:"trait,omitempty"`
	Op       string `json:"op,omitempty"`
	Value    string `json:"value,omitempty"`
	Severity string `json:"severity,omitempty"`
	Index    int    `json:"index,omitempty"`
	Status   string `json:"status,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Sound    string `json:"sound,omitempty"`
}

type ServerMessage struct {
	Type     string          `json:"type"` // "joined" | "snapshot" | "event" | "error"
	Version  int             `json:"version,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Event    *game.Event     `json:"event,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	LobbyID  string          `json:"lobby_id,omitempty"`
	Error    string          `json:"error,omitempty"`
}
