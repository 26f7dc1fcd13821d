package game

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
)

// Apply validates cmd against s and mutates s in place, returning the
// narrow events the mutation produced. On error s is untouched: every
// branch validates fully before writing anything. The caller (the
// lobby actor) serializes all Apply calls for one lobby, so there is
// no locking here.
func Apply(s *State, cmd Command, gen *character.Generator) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd, gen)
	case CmdRevealTrait:
		return applyRevealTrait(s, cmd)
	case CmdMutateTrait:
		return applyMutateTrait(s, cmd, gen)
	case CmdSetStatus:
		return applySetStatus(s, cmd)
	case CmdTransferHost:
		return applyTransferHost(s, cmd)
	case CmdStartVoting:
		return applyStartVoting(s, cmd)
	case CmdCastVote:
		return applyCastVote(s, cmd)
	case CmdCancelVoting:
		return applyCancelVoting(s, cmd)
	case CmdVotingTimeout:
		return applyVotingTimeout(s, cmd)
	case CmdAddEvent:
		return applyAddEvent(s, cmd)
	case CmdPlaySound:
		return applyPlaySound(s, cmd)
	case CmdSetOnline:
		return applySetOnline(s, cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func validName(s *State, name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len([]rune(name)) <= s.Rules.NameLimit
}

func applyJoin(s *State, cmd Command) ([]Event, error) {
	name := strings.TrimSpace(cmd.Name)
	if p := s.Player(cmd.PlayerID); p != nil {
		if p.Kicked() {
			return nil, ErrPlayerKicked
		}
		// Known player: rebind and optionally rename.
		if name != "" && name != p.Name {
			if !validName(s, name) {
				return nil, ErrInvalidName
			}
			p.Name = name
		}
		p.Online = true
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil
	}

	if s.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if !validName(s, name) {
		return nil, ErrInvalidName
	}

	// Identity is always server-minted. A stale or fabricated id in
	// the join must not become a new player under that id.
	p := &Player{
		ID:     uuid.NewString(),
		Name:   name,
		Online: true,
		Alive:  true,
		Status: PlayerActive,
	}
	s.Players = append(s.Players, p)
	if s.HostID == "" {
		s.HostID = p.ID
	}
	return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil
}

func applyStartGame(s *State, cmd Command, gen *character.Generator) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if s.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	roster := s.Roster()
	if len(roster) < s.Rules.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	chars := make([]*character.Character, len(roster))
	for i := range roster {
		chars[i] = gen.Character()
	}
	gen.Normalize(chars)
	for i, p := range roster {
		p.Character = chars[i]
	}

	s.GameData = &GameData{
		Disaster: gen.RandomDisaster(),
		Bunker: Bunker{
			Description: gen.RandomBunker(),
			Capacity:    len(roster) / 2,
		},
	}
	s.Status = StatusPlaying
	return []Event{{Type: EvtGameStarted}}, nil
}

func applyRevealTrait(s *State, cmd Command) ([]Event, error) {
	p := s.Player(cmd.PlayerID)
	if p == nil || p.Kicked() {
		return nil, ErrPlayerNotFound
	}
	// Players reveal their own traits; the host may reveal anyone's.
	if cmd.ActorID != p.ID && !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if !cmd.Trait.Valid() {
		return nil, ErrInvalidInput
	}
	if p.Character == nil {
		return nil, ErrInvalidInput
	}

	if cmd.Trait == character.TraitHealth {
		if p.Character.Health.Revealed {
			return nil, nil // idempotent
		}
		p.Character.Health.Revealed = true
	} else {
		tr := p.Character.Trait(cmd.Trait)
		if tr.Revealed {
			return nil, nil
		}
		tr.Revealed = true
	}
	return []Event{{Type: EvtTraitRevealed, PlayerID: p.ID, Trait: cmd.Trait}}, nil
}

func applyMutateTrait(s *State, cmd Command, gen *character.Generator) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	p := s.Player(cmd.PlayerID)
	if p == nil || p.Kicked() {
		return nil, ErrPlayerNotFound
	}
	if p.Character == nil {
		return nil, ErrInvalidInput
	}
	if !cmd.Trait.Valid() {
		return nil, ErrInvalidInput
	}

	if cmd.Trait == character.TraitHealth {
		return applyHealthOp(s, cmd, p, gen)
	}

	tr := p.Character.Trait(cmd.Trait)
	changed := Event{Type: EvtTraitChanged, PlayerID: p.ID, Trait: cmd.Trait}

	switch cmd.Op {
	case OpRandomize:
		tr.Values = []string{gen.Redraw(cmd.Trait, tr.Primary())}
	case OpSet:
		if cmd.Value == "" {
			return nil, ErrInvalidInput
		}
		if !cmd.Trait.Multi() && !gen.Tables().Contains(cmd.Trait, cmd.Value) {
			return nil, ErrInvalidInput
		}
		tr.Values = []string{cmd.Value}
	case OpAppend:
		if !cmd.Trait.Multi() {
			return nil, ErrInvalidOperation
		}
		if cmd.Value == "" {
			return nil, ErrInvalidInput
		}
		if len(tr.Values) == 1 && tr.Values[0] == character.None {
			tr.Values = []string{cmd.Value}
		} else {
			tr.Values = append(tr.Values, cmd.Value)
		}
	case OpRemove:
		if !cmd.Trait.Multi() {
			return nil, ErrInvalidOperation
		}
		if cmd.Index < 0 || cmd.Index >= len(tr.Values) {
			return nil, ErrInvalidInput
		}
		tr.Values = append(tr.Values[:cmd.Index], tr.Values[cmd.Index+1:]...)
		if len(tr.Values) == 0 {
			tr.Values = []string{character.None}
		}
	default:
		return nil, ErrInvalidOperation
	}
	return []Event{changed}, nil
}

func applyHealthOp(s *State, cmd Command, p *Player, gen *character.Generator) ([]Event, error) {
	h := &p.Character.Health
	changed := Event{Type: EvtTraitChanged, PlayerID: p.ID, Trait: character.TraitHealth}

	switch cmd.Op {
	case OpRandomize:
		h.Diseases = gen.RandomHealth()
		return []Event{changed}, nil

	case OpAdd:
		if cmd.Value == "" || !gen.Tables().ContainsDisease(cmd.Value) {
			return nil, ErrInvalidInput
		}
		sev := cmd.Severity
		if sev == "" {
			sev = gen.RandomSeverity()
		}
		if !sev.Valid() {
			return nil, ErrInvalidInput
		}
		h.Diseases = append(h.Diseases, character.Disease{Name: cmd.Value, Severity: sev})
		return withCriticalCheck(p, []Event{changed}, sev), nil

	case OpRemove:
		if cmd.Index < 0 || cmd.Index >= len(h.Diseases) {
			return nil, ErrInvalidInput
		}
		h.Diseases = append(h.Diseases[:cmd.Index], h.Diseases[cmd.Index+1:]...)
		return []Event{changed}, nil

	case OpStepUp:
		if h.Healthy() {
			// Worsening a healthy character gives a fresh mild disease.
			h.Diseases = []character.Disease{{Name: gen.RandomDisease().Name, Severity: character.SeverityMild}}
			return []Event{changed}, nil
		}
		if cmd.Index < 0 || cmd.Index >= len(h.Diseases) {
			return nil, ErrInvalidInput
		}
		d := &h.Diseases[cmd.Index]
		i := d.Severity.Index()
		if i >= len(character.Severities)-1 {
			return nil, ErrInvalidOperation
		}
		d.Severity = character.Severities[i+1]
		return withCriticalCheck(p, []Event{changed}, d.Severity), nil

	case OpStepDown:
		if h.Healthy() {
			return nil, ErrInvalidOperation
		}
		if cmd.Index < 0 || cmd.Index >= len(h.Diseases) {
			return nil, ErrInvalidInput
		}
		i := h.Diseases[cmd.Index].Severity.Index()
		if i == 0 {
			// Mild steps down to cured.
			h.Diseases = append(h.Diseases[:cmd.Index], h.Diseases[cmd.Index+1:]...)
		} else {
			h.Diseases[cmd.Index].Severity = character.Severities[i-1]
		}
		return []Event{changed}, nil

	default:
		return nil, ErrInvalidOperation
	}
}

// withCriticalCheck marks the player dead when a disease reaches the
// critical ordinal.
func withCriticalCheck(p *Player, events []Event, sev character.Severity) []Event {
	if sev != character.SeverityCritical || p.Status == PlayerDead {
		return events
	}
	p.Status = PlayerDead
	p.Alive = false
	return append(events,
		Event{Type: EvtHealthCritical, PlayerID: p.ID},
		Event{Type: EvtPlayerStatus, PlayerID: p.ID, Status: PlayerDead},
	)
}

func applySetStatus(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	p := s.Player(cmd.PlayerID)
	if p == nil || p.Kicked() {
		return nil, ErrPlayerNotFound
	}

	switch cmd.Status {
	case PlayerActive:
		p.Status = PlayerActive
		p.Alive = true
		return []Event{{Type: EvtPlayerStatus, PlayerID: p.ID, Status: PlayerActive}}, nil

	case PlayerDead:
		if p.ID == cmd.ActorID && !s.Rules.AllowSelfTarget {
			return nil, ErrSelfTarget
		}
		p.Status = PlayerDead
		p.Alive = false
		return []Event{{Type: EvtPlayerStatus, PlayerID: p.ID, Status: PlayerDead}}, nil

	case PlayerKicked:
		if p.ID == cmd.ActorID && !s.Rules.AllowSelfTarget {
			return nil, ErrSelfTarget
		}
		p.Status = PlayerKicked
		p.Online = false
		events := []Event{
			{Type: EvtPlayerKicked, PlayerID: p.ID},
			{Type: EvtPlayerStatus, PlayerID: p.ID, Status: PlayerKicked},
		}
		// A host kicking themselves hands the room to the first
		// remaining active player.
		if p.ID == s.HostID {
			for _, next := range s.Roster() {
				s.HostID = next.ID
				events = append(events, Event{Type: EvtHostChanged, HostID: next.ID})
				break
			}
		}
		return events, nil

	default:
		return nil, ErrInvalidInput
	}
}

func applyTransferHost(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	next := s.Player(cmd.PlayerID)
	if next == nil || next.Kicked() {
		return nil, ErrPlayerNotFound
	}
	s.HostID = next.ID
	return []Event{{Type: EvtHostChanged, HostID: next.ID}}, nil
}

func applyStartVoting(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if s.Voting != nil && s.Voting.Active {
		return nil, ErrVotingInProgress
	}
	s.Voting = &VotingSession{
		Active:      true,
		StartedAt:   cmd.At,
		EndsAt:      cmd.At.Add(s.Rules.VotingWindow),
		InitiatorID: cmd.ActorID,
		Votes:       make(map[string]string),
	}
	return []Event{{Type: EvtVotingStarted, EndsAt: s.Voting.EndsAt}}, nil
}

func applyCastVote(s *State, cmd Command) ([]Event, error) {
	if s.Voting == nil || !s.Voting.Active {
		return nil, ErrVotingNotActive
	}
	// The window itself is authoritative: a vote after EndsAt is
	// rejected even if the closing timer has not fired yet.
	if !cmd.At.Before(s.Voting.EndsAt) {
		return nil, ErrVotingNotActive
	}
	voter := s.Player(cmd.ActorID)
	if voter == nil || voter.Kicked() {
		return nil, ErrPlayerNotFound
	}
	target := s.Player(cmd.PlayerID)
	if target == nil || target.Kicked() {
		return nil, ErrPlayerNotFound
	}
	if _, ok := s.Voting.Votes[voter.ID]; ok {
		return nil, ErrAlreadyVoted
	}
	s.Voting.Votes[voter.ID] = target.ID
	return []Event{{Type: EvtVoteCast, VoterID: voter.ID, TargetID: target.ID}}, nil
}

func applyCancelVoting(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if s.Voting == nil || !s.Voting.Active {
		return nil, ErrVotingNotActive
	}
	s.Voting = nil
	return []Event{{Type: EvtVotingCancelled}}, nil
}

func applyVotingTimeout(s *State, cmd Command) ([]Event, error) {
	if s.Voting == nil || !s.Voting.Active {
		return nil, ErrVotingNotActive
	}
	results := Tally(s.Voting.Votes)
	s.Voting = nil
	return []Event{{Type: EvtVotingClosed, Results: results}}, nil
}

// Tally counts votes per target and computes rounded percentages,
// ordered by vote count descending, target id as tiebreak.
func Tally(votes map[string]string) []VoteTally {
	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}
	total := len(votes)
	out := make([]VoteTally, 0, len(counts))
	for target, n := range counts {
		out = append(out, VoteTally{
			TargetID: target,
			Votes:    n,
			Percent:  (n*100 + total/2) / total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

func applyAddEvent(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if cmd.Text == "" {
		return nil, ErrInvalidInput
	}
	s.pushFeed(cmd.Text, cmd.At)
	return []Event{{Type: EvtEventAdded, Text: cmd.Text}}, nil
}

func applyPlaySound(s *State, cmd Command) ([]Event, error) {
	if !s.IsHost(cmd.ActorID) {
		return nil, ErrForbidden
	}
	if cmd.Sound == "" {
		return nil, ErrInvalidInput
	}
	// Pure relay: no state change.
	return []Event{{Type: EvtPlaySound, Sound: cmd.Sound}}, nil
}

func applySetOnline(s *State, cmd Command) ([]Event, error) {
	p := s.Player(cmd.PlayerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	p.Online = cmd.Online
	if cmd.Online {
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil
	}
	return []Event{{Type: EvtPlayerOffline, PlayerID: p.ID}}, nil
}
