package lobby

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
)

// nopPersister records enqueued snapshots for inspection.
type nopPersister struct {
	mu  sync.Mutex
	ids []string
}

func (p *nopPersister) Enqueue(id string, state []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

func (p *nopPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// recvOutbound receives one message with a timeout so tests never hang.
func recvOutbound(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return out
	case <-time.After(within):
		t.Fatalf("timed out waiting for outbound message")
		return Outbound{} // unreachable
	}
}

// recvSnapshot skips event notices and returns the next full snapshot.
func recvSnapshot(t *testing.T, ch <-chan Outbound, within time.Duration) (int, game.State) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case out, ok := <-ch:
			if !ok {
				t.Fatalf("client outbox closed unexpectedly")
			}
			if out.State == nil {
				continue
			}
			var st game.State
			require.NoError(t, json.Unmarshal(out.State, &st))
			return out.Version, st
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

// recvEvent skips snapshots and returns the next notice of the wanted type.
func recvEvent(t *testing.T, ch <-chan Outbound, want game.EventType, within time.Duration) game.Event {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case out, ok := <-ch:
			if !ok {
				t.Fatalf("client outbox closed while waiting for %s", want)
			}
			if out.Event != nil && out.Event.Type == want {
				return *out.Event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func recvClosed(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("expected outbox to close")
		}
	}
}

func testRules() game.Rules {
	r := game.DefaultRules()
	r.MinPlayers = 3
	return r
}

func newTestLobby(t *testing.T, rules game.Rules) (*Lobby, *game.State, *nopPersister) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	state := game.NewState("host", rules)
	gen := character.NewGenerator(character.DefaultTables(), character.DefaultParams(), rand.New(rand.NewSource(1)))
	p := &nopPersister{}
	return New(ctx, state, gen, p, zap.NewNop()), state, p
}

// attach joins or rebinds a player and returns their id and outbox.
func attach(t *testing.T, l *Lobby, playerID, name string, buf int) (string, chan Outbound) {
	t.Helper()
	out := make(chan Outbound, buf)
	reply := make(chan AttachResult, 1)
	l.Inbox() <- Attach{PlayerID: playerID, Name: name, Outbox: out, Reply: reply}
	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		return res.PlayerID, out
	case <-time.After(time.Second):
		t.Fatalf("timed out attaching %q", name)
		return "", nil // unreachable
	}
}

func gameView(t *testing.T, l *Lobby) (View, game.State) {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	v := recvView(t, reply, time.Second)
	var st game.State
	require.NoError(t, json.Unmarshal(v.State, &st))
	return v, st
}

func startGame(t *testing.T, l *Lobby, hostID string) {
	t.Helper()
	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdStartGame, ActorID: hostID}}
}

func TestAttach_BroadcastsSnapshotIncludingJoiner(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())

	_, hostOut := attach(t, l, state.HostID, "", 8)
	recvSnapshot(t, hostOut, time.Second)

	id, out := attach(t, l, "", "bob", 8)
	require.NotEmpty(t, id)

	_, st := recvSnapshot(t, out, time.Second)
	require.Len(t, st.Players, 2)
	assert.Equal(t, id, st.Players[1].ID)
	assert.True(t, st.Players[1].Online)

	// host sees the join event before the refreshed snapshot
	ev := recvEvent(t, hostOut, game.EvtPlayerJoined, time.Second)
	assert.Equal(t, id, ev.PlayerID)
}

func TestCommand_IncrementsVersionAndBroadcastsPostMutationState(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 16)
	v1, _ := recvSnapshot(t, hostOut, time.Second)

	attach(t, l, "", "bob", 16)
	attach(t, l, "", "carol", 16)
	startGame(t, l, hostID)

	ev := recvEvent(t, hostOut, game.EvtGameStarted, time.Second)
	assert.Equal(t, game.EvtGameStarted, ev.Type)

	version, st := recvSnapshot(t, hostOut, time.Second)
	assert.Greater(t, version, v1)
	assert.Equal(t, game.StatusPlaying, st.Status)
	for _, p := range st.Players {
		assert.NotNil(t, p.Character, "snapshot must carry post-mutation state")
	}
	assert.Equal(t, 1, st.GameData.Bunker.Capacity)
}

func TestCommand_ErrorGoesOnlyToActor(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 16)
	recvSnapshot(t, hostOut, time.Second)
	bobID, bobOut := attach(t, l, "", "bob", 16)
	recvSnapshot(t, bobOut, time.Second)
	drain(hostOut)

	// bob tries a host-only action
	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdStartGame, ActorID: bobID}}

	out := recvOutbound(t, bobOut, time.Second)
	assert.NotEmpty(t, out.Error)
	assert.Nil(t, out.State)

	// host gets nothing: no broadcast for a rejected mutation
	select {
	case m := <-hostOut:
		t.Fatalf("expected no message for host, got %+v", m)
	case <-time.After(100 * time.Millisecond):
	}

	v, _ := gameView(t, l)
	assert.Equal(t, 2, v.Version, "version only counts applied mutations")
}

func drain(ch chan Outbound) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())

	_, hostOut := attach(t, l, state.HostID, "", 1)
	// the join notice fills the buffer of 1, so the snapshot that
	// follows cannot be delivered and the client must be dropped
	attach(t, l, "", "bob", 8)

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	v := recvView(t, reply, time.Second)
	assert.Equal(t, 1, v.NumClients)
	recvClosed(t, hostOut, time.Second)
}

func TestVoting_TimerClosesSessionAndTallies(t *testing.T) {
	rules := testRules()
	rules.VotingWindow = 50 * time.Millisecond
	l, state, _ := newTestLobby(t, rules)
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 64)
	bobID, _ := attach(t, l, "", "bob", 64)
	attach(t, l, "", "carol", 64)
	startGame(t, l, hostID)

	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdStartVoting, ActorID: hostID}}
	recvEvent(t, hostOut, game.EvtVotingStarted, time.Second)

	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdCastVote, ActorID: hostID, PlayerID: bobID}}

	closed := recvEvent(t, hostOut, game.EvtVotingClosed, time.Second)
	require.Len(t, closed.Results, 1)
	assert.Equal(t, game.VoteTally{TargetID: bobID, Votes: 1, Percent: 100}, closed.Results[0])

	_, st := gameView(t, l)
	assert.Nil(t, st.Voting, "session cleared after timeout")
}

func TestVoting_CancelPreventsStaleTimerClose(t *testing.T) {
	rules := testRules()
	rules.VotingWindow = 80 * time.Millisecond
	l, state, _ := newTestLobby(t, rules)
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 64)
	attach(t, l, "", "bob", 64)
	attach(t, l, "", "carol", 64)
	startGame(t, l, hostID)

	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdStartVoting, ActorID: hostID}}
	recvEvent(t, hostOut, game.EvtVotingStarted, time.Second)

	l.Inbox() <- FromClient{Cmd: game.Command{Type: game.CmdCancelVoting, ActorID: hostID}}
	recvEvent(t, hostOut, game.EvtVotingCancelled, time.Second)

	// wait past the original window: no voting_closed may arrive
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case out, ok := <-hostOut:
			if !ok {
				t.Fatal("outbox closed")
			}
			if out.Event != nil && out.Event.Type == game.EvtVotingClosed {
				t.Fatal("stale timer closed a cancelled session")
			}
		case <-deadline:
			return
		}
	}
}

func TestKick_ClosesKickedClientsOutbox(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 64)
	bobID, bobOut := attach(t, l, "", "bob", 64)
	attach(t, l, "", "carol", 64)

	l.Inbox() <- FromClient{Cmd: game.Command{
		Type: game.CmdSetStatus, ActorID: hostID, PlayerID: bobID, Status: game.PlayerKicked,
	}}

	ev := recvEvent(t, hostOut, game.EvtPlayerKicked, time.Second)
	assert.Equal(t, bobID, ev.PlayerID)
	recvClosed(t, bobOut, time.Second)

	v, st := gameView(t, l)
	assert.Equal(t, 2, v.NumClients)
	assert.Equal(t, game.PlayerKicked, st.Player(bobID).Status)
}

func TestDetach_MarksOfflineAndKeepsCharacter(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, hostOut := attach(t, l, hostID, "", 64)
	bobID, bobOut := attach(t, l, "", "bob", 64)
	attach(t, l, "", "carol", 64)
	startGame(t, l, hostID)
	recvEvent(t, hostOut, game.EvtGameStarted, time.Second)

	l.Inbox() <- Detach{PlayerID: bobID, Outbox: bobOut}
	recvClosed(t, bobOut, time.Second)
	ev := recvEvent(t, hostOut, game.EvtPlayerOffline, time.Second)
	assert.Equal(t, bobID, ev.PlayerID)

	_, st := gameView(t, l)
	bob := st.Player(bobID)
	assert.False(t, bob.Online)
	require.NotNil(t, bob.Character, "character survives disconnect")
	revealed := bob.Character.Trait(character.TraitHobby).Revealed

	// reconnect recovers the same character and reveal state
	id, out := attach(t, l, bobID, "", 64)
	assert.Equal(t, bobID, id)
	_, st2 := recvSnapshot(t, out, time.Second)
	bob2 := st2.Player(bobID)
	assert.True(t, bob2.Online)
	assert.Equal(t, bob.Character, bob2.Character)
	assert.Equal(t, revealed, bob2.Character.Trait(character.TraitHobby).Revealed)
}

func TestDetach_StaleOutboxIsIgnored(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, first := attach(t, l, hostID, "", 8)
	recvSnapshot(t, first, time.Second)
	_, second := attach(t, l, hostID, "", 8)
	recvClosed(t, first, time.Second)
	recvSnapshot(t, second, time.Second)

	// the replaced connection's disconnect arrives late
	l.Inbox() <- Detach{PlayerID: hostID, Outbox: first}

	v, st := gameView(t, l)
	assert.Equal(t, 1, v.NumClients, "replacement subscription survives")
	assert.True(t, st.Player(hostID).Online)

	select {
	case _, ok := <-second:
		if !ok {
			t.Fatal("stale detach closed the replacement outbox")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAttach_ReplacesExistingSubscription(t *testing.T) {
	l, state, _ := newTestLobby(t, testRules())
	hostID := state.HostID

	_, first := attach(t, l, hostID, "", 8)
	recvSnapshot(t, first, time.Second)

	_, second := attach(t, l, hostID, "", 8)
	recvClosed(t, first, time.Second)
	recvSnapshot(t, second, time.Second)

	v, _ := gameView(t, l)
	assert.Equal(t, 1, v.NumClients)
}

func TestMutationsEnqueueSnapshots(t *testing.T) {
	l, state, p := newTestLobby(t, testRules())

	attach(t, l, state.HostID, "", 8)
	attach(t, l, "", "bob", 8)

	require.Eventually(t, func() bool { return p.count() >= 2 }, time.Second, 10*time.Millisecond)
}
