package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
)

type PlayerStatus string

const (
	PlayerActive PlayerStatus = "active"
	PlayerDead   PlayerStatus = "dead"
	PlayerKicked PlayerStatus = "kicked"
)

type Player struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Online    bool                 `json:"online"`
	Alive     bool                 `json:"alive"`
	Status    PlayerStatus         `json:"status"`
	Character *character.Character `json:"character,omitempty"`
}

func (p *Player) Kicked() bool { return p.Status == PlayerKicked }

type Bunker struct {
	Description string `json:"description"`
	// Capacity is frozen at game start and never recomputed.
	Capacity int `json:"capacity"`
}

type GameData struct {
	Disaster string `json:"disaster"`
	Bunker   Bunker `json:"bunker"`
}

type VotingSession struct {
	Active      bool              `json:"active"`
	StartedAt   time.Time         `json:"startedAt"`
	EndsAt      time.Time         `json:"endsAt"`
	InitiatorID string            `json:"initiatorId"`
	Votes       map[string]string `json:"votes"` // voter id -> target id
}

// FeedCap bounds the event feed; newest entries sit at the front.
const FeedCap = 20

type FeedEntry struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Rules are the per-lobby policy knobs. They are set at creation from
// server configuration and travel with the snapshot.
type Rules struct {
	MinPlayers      int           `json:"minPlayers"`
	NameLimit       int           `json:"nameLimit"`
	VotingWindow    time.Duration `json:"votingWindow"`
	AllowSelfTarget bool          `json:"allowSelfTarget"`
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:      6,
		NameLimit:       20,
		VotingWindow:    15 * time.Second,
		AllowSelfTarget: false,
	}
}

// State is the authoritative model of one lobby/game. It is owned
// exclusively by that lobby's actor goroutine; nothing else mutates it.
type State struct {
	ID        string         `json:"id"`
	HostID    string         `json:"hostId"`
	Status    Status         `json:"status"`
	Players   []*Player      `json:"players"`
	GameData  *GameData      `json:"gameData,omitempty"`
	Events    []FeedEntry    `json:"events,omitempty"`
	Voting    *VotingSession `json:"voting,omitempty"`
	Rules     Rules          `json:"rules"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewState creates a waiting lobby whose sole player is the host.
func NewState(hostName string, rules Rules) *State {
	hostID := uuid.NewString()
	return &State{
		ID:     uuid.NewString(),
		HostID: hostID,
		Status: StatusWaiting,
		Players: []*Player{{
			ID:     hostID,
			Name:   hostName,
			Online: false,
			Alive:  true,
			Status: PlayerActive,
		}},
		Rules:     rules,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *State) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *State) IsHost(id string) bool { return id != "" && id == s.HostID }

// Roster returns the non-kicked players.
func (s *State) Roster() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Kicked() {
			out = append(out, p)
		}
	}
	return out
}

func (s *State) pushFeed(text string, at time.Time) {
	s.Events = append([]FeedEntry{{Text: text, At: at}}, s.Events...)
	if len(s.Events) > FeedCap {
		s.Events = s.Events[:FeedCap]
	}
}
