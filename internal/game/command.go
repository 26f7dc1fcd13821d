package game

import (
	"time"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
)

type CommandType string

const (
	CmdJoin          CommandType = "Join"
	CmdStartGame     CommandType = "StartGame"
	CmdRevealTrait   CommandType = "RevealTrait"
	CmdMutateTrait   CommandType = "MutateTrait"
	CmdSetStatus     CommandType = "SetStatus"
	CmdTransferHost  CommandType = "TransferHost"
	CmdStartVoting   CommandType = "StartVoting"
	CmdCastVote      CommandType = "CastVote"
	CmdCancelVoting  CommandType = "CancelVoting"
	CmdVotingTimeout CommandType = "VotingTimeout" // internal, posted by the timer
	CmdAddEvent      CommandType = "AddEvent"
	CmdPlaySound     CommandType = "PlaySound"
	CmdSetOnline     CommandType = "SetOnline" // internal, connection lifecycle
)

type TraitOp string

const (
	OpRandomize TraitOp = "randomize"
	OpSet       TraitOp = "set"
	OpAppend    TraitOp = "append"
	OpRemove    TraitOp = "remove"
	OpAdd       TraitOp = "add"      // health only
	OpStepUp    TraitOp = "stepUp"   // health only: worsen one ordinal
	OpStepDown  TraitOp = "stepDown" // health only: improve one ordinal
)

type Command struct {
	Type    CommandType
	ActorID string // resolved from the connection; "" only for joins

	PlayerID string // target player where applicable
	Name     string // display name on join

	Trait    character.TraitName
	Op       TraitOp
	Value    string
	Severity character.Severity
	Index    int

	Status PlayerStatus // SetStatus target state
	Text   string       // AddEvent narrator line
	Sound  string       // PlaySound relay payload
	Online bool         // SetOnline flag

	// At is the command's wall-clock time, stamped by the lobby actor
	// so Apply stays deterministic under test.
	At time.Time
}

type EventType string

const (
	EvtPlayerJoined    EventType = "player_joined"
	EvtPlayerOffline   EventType = "player_offline"
	EvtGameStarted     EventType = "game_started"
	EvtTraitRevealed   EventType = "trait_revealed"
	EvtTraitChanged    EventType = "trait_changed"
	EvtPlayerStatus    EventType = "player_status"
	EvtPlayerKicked    EventType = "player_kicked"
	EvtHealthCritical  EventType = "health_critical"
	EvtHostChanged     EventType = "host_changed"
	EvtVotingStarted   EventType = "voting_started"
	EvtVoteCast        EventType = "vote_cast"
	EvtVotingClosed    EventType = "voting_closed"
	EvtVotingCancelled EventType = "voting_cancelled"
	EvtEventAdded      EventType = "event_added"
	EvtPlaySound       EventType = "play_sound"
)

type VoteTally struct {
	TargetID string `json:"targetId"`
	Votes    int    `json:"votes"`
	Percent  int    `json:"percent"`
}

// Event is a narrow notification broadcast alongside the full
// snapshot. Fields are populated per type; zero values are omitted on
// the wire.
type Event struct {
	Type     EventType           `json:"type"`
	PlayerID string              `json:"playerId,omitempty"`
	Trait    character.TraitName `json:"trait,omitempty"`
	Status   PlayerStatus        `json:"status,omitempty"`
	HostID   string              `json:"hostId,omitempty"`
	VoterID  string              `json:"voterId,omitempty"`
	TargetID string              `json:"targetId,omitempty"`
	EndsAt   time.Time           `json:"endsAt,omitzero"`
	Results  []VoteTally         `json:"results,omitempty"`
	Text     string              `json:"text,omitempty"`
	Sound    string              `json:"sound,omitempty"`
}
