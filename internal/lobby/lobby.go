package lobby

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
)

type Msg interface{ isLobbyMsg() }

// Attach subscribes a connection's outbox and runs the join/reconnect
// mutation in the same step, so the first snapshot already includes
// the joining player.
type Attach struct {
	PlayerID string // empty for a brand-new player
	Name     string // empty to keep the stored name
	Outbox   chan Outbound
	Reply    chan AttachResult
}

func (Attach) isLobbyMsg() {}

type AttachResult struct {
	PlayerID string
	Err      error
}

// Detach is sent on disconnect. The player is marked offline but
// keeps their seat and character for reconnection. Outbox identifies
// the subscription being torn down: a Detach from a connection whose
// subscription was already replaced is ignored.
type Detach struct {
	PlayerID string
	Outbox   chan Outbound
}

func (Detach) isLobbyMsg() {}

type FromClient struct{ Cmd game.Command }

func (FromClient) isLobbyMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isLobbyMsg() {}

// Persist asks the actor to enqueue a snapshot immediately; used by
// the periodic sweep.
type Persist struct{}

func (Persist) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type votingExpired struct{ gen int }

func (votingExpired) isLobbyMsg() {}

// Outbound is one message for one client. Exactly one of the payload
// fields is set. State is pre-marshalled inside the actor so the
// writer goroutine never touches live state.
type Outbound struct {
	Version int
	State   json.RawMessage
	Event   *game.Event
	Error   string
}

type View struct {
	Version    int
	NumClients int
	State      json.RawMessage
}

// Persister receives marshalled snapshots off the mutation path. It
// must not block.
type Persister interface {
	Enqueue(id string, state []byte)
}

// Lobby is the serialization unit for one room: every mutation,
// broadcast, and timer for the room flows through its inbox and is
// handled to completion in order.
type Lobby struct {
	inbox    chan Msg
	state    *game.State
	gen      *character.Generator
	version  int
	clients  map[string]chan Outbound // player id -> outbox
	timerGen int
	timer    *time.Timer
	persist  Persister
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, state *game.State, gen *character.Generator, persist Persister, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	l := &Lobby{
		inbox:   make(chan Msg, 64),
		state:   state,
		gen:     gen,
		clients: make(map[string]chan Outbound),
		persist: persist,
		log:     log.With(zap.String("lobby", state.ID)),
		ctx:     ctx,
		cancel:  cancel,
	}
	// A state restored mid-vote needs its closing timer back. An
	// already-expired window fires immediately and tallies on the
	// first loop iteration.
	if v := state.Voting; v != nil && v.Active {
		l.armVotingTimerFor(time.Until(v.EndsAt))
	}
	go l.loop()
	return l
}

func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) ID() string { return l.state.ID }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Attach:
				l.handleAttach(msg)

			case Detach:
				l.handleDetach(msg)

			case FromClient:
				l.handleCommand(msg.Cmd)

			case votingExpired:
				if msg.gen != l.timerGen {
					break // superseded by an explicit close
				}
				l.handleCommand(game.Command{Type: game.CmdVotingTimeout, At: time.Now()})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.marshalState(),
				}

			case Persist:
				l.enqueueSnapshot()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handleAttach(msg Attach) {
	cmd := game.Command{
		Type:     game.CmdJoin,
		PlayerID: msg.PlayerID,
		Name:     msg.Name,
		At:       time.Now(),
	}
	events, err := game.Apply(l.state, cmd, l.gen)
	if err != nil {
		msg.Reply <- AttachResult{Err: err}
		return
	}

	// The join event carries the resolved id for brand-new players.
	id := msg.PlayerID
	for _, e := range events {
		if e.Type == game.EvtPlayerJoined {
			id = e.PlayerID
		}
	}

	// One live subscription per player.
	if old, ok := l.clients[id]; ok {
		close(old)
	}
	l.clients[id] = msg.Outbox
	msg.Reply <- AttachResult{PlayerID: id}

	l.version++
	snap := l.marshalState()
	l.fanOutEvents(events)
	l.broadcast(Outbound{Version: l.version, State: snap})
	l.persist.Enqueue(l.state.ID, snap)
}

func (l *Lobby) handleDetach(msg Detach) {
	out, ok := l.clients[msg.PlayerID]
	if !ok || out != msg.Outbox {
		return
	}
	close(out)
	delete(l.clients, msg.PlayerID)

	events, err := game.Apply(l.state, game.Command{
		Type: game.CmdSetOnline, PlayerID: msg.PlayerID, Online: false, At: time.Now(),
	}, l.gen)
	if err != nil {
		l.log.Warn("detach apply failed", zap.Error(err))
		return
	}
	l.finishMutation(events)
}

func (l *Lobby) handleCommand(cmd game.Command) {
	if cmd.At.IsZero() {
		cmd.At = time.Now()
	}
	events, err := game.Apply(l.state, cmd, l.gen)
	if err != nil {
		// Failures go to the acting client only; nobody else sees a
		// state change because none happened.
		if out, ok := l.clients[cmd.ActorID]; ok {
			l.send(cmd.ActorID, out, Outbound{Error: err.Error()})
		}
		return
	}
	l.finishMutation(events)
}

// finishMutation runs the post-apply discipline: bump the version,
// adjust timers and kicked subscribers, then deliver notices followed
// by the post-mutation snapshot, and hand the snapshot to the
// persister.
func (l *Lobby) finishMutation(events []game.Event) {
	l.version++

	for _, e := range events {
		switch e.Type {
		case game.EvtVotingStarted:
			l.armVotingTimer()
		case game.EvtVotingClosed, game.EvtVotingCancelled:
			l.disarmVotingTimer()
		}
	}

	snap := l.marshalState()
	l.fanOutEvents(events)
	l.broadcast(Outbound{Version: l.version, State: snap})

	// Kicked players get the notices above, then lose their feed.
	for _, e := range events {
		if e.Type == game.EvtPlayerKicked {
			if out, ok := l.clients[e.PlayerID]; ok {
				close(out)
				delete(l.clients, e.PlayerID)
			}
		}
	}

	l.persist.Enqueue(l.state.ID, snap)
}

func (l *Lobby) armVotingTimer() {
	l.armVotingTimerFor(l.state.Rules.VotingWindow)
}

func (l *Lobby) armVotingTimerFor(d time.Duration) {
	l.timerGen++
	gen := l.timerGen
	if d < 0 {
		d = 0
	}
	l.timer = time.AfterFunc(d, func() {
		select {
		case l.inbox <- votingExpired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

// disarmVotingTimer invalidates any pending fire so an explicit close
// cannot be followed by a stale double-close.
func (l *Lobby) disarmVotingTimer() {
	l.timerGen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lobby) marshalState() json.RawMessage {
	b, err := json.Marshal(l.state)
	if err != nil {
		l.log.Error("marshal state", zap.Error(err))
		return json.RawMessage(`{}`)
	}
	return b
}

func (l *Lobby) fanOutEvents(events []game.Event) {
	for i := range events {
		l.broadcast(Outbound{Event: &events[i]})
	}
}

func (l *Lobby) broadcast(out Outbound) {
	for id, ch := range l.clients {
		l.send(id, ch, out)
	}
}

func (l *Lobby) send(id string, ch chan Outbound, out Outbound) {
	select {
	case ch <- out:
	default:
		// Slow or wedged client: drop them, reconnection will resync.
		l.log.Debug("dropping slow client", zap.String("player", id))
		close(ch)
		delete(l.clients, id)
	}
}

func (l *Lobby) enqueueSnapshot() {
	l.persist.Enqueue(l.state.ID, l.marshalState())
}

func (l *Lobby) shutdown() {
	l.disarmVotingTimer()
	l.enqueueSnapshot()
	for id, ch := range l.clients {
		close(ch)
		delete(l.clients, id)
	}
	l.cancel()
}
