package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	kicked string
}

func (f *fakeConn) Kick(reason string) { f.kicked = reason }

func TestBind_LastConnectionWins(t *testing.T) {
	r := New()
	first := &fakeConn{}
	second := &fakeConn{}

	old := r.Bind("c1", "alice", first)
	assert.Nil(t, old)

	old = r.Bind("c2", "alice", second)
	require.NotNil(t, old)
	old.Kick("replaced")
	assert.Equal(t, "replaced", first.kicked)

	// c1 is no longer alice's connection
	_, ok := r.Unbind("c1")
	assert.False(t, ok)

	pid, ok := r.Unbind("c2")
	assert.True(t, ok)
	assert.Equal(t, "alice", pid)
}

func TestBind_SameConnRebindIsNoop(t *testing.T) {
	r := New()
	c := &fakeConn{}
	r.Bind("c1", "alice", c)
	old := r.Bind("c1", "alice", c)
	assert.Nil(t, old)

	pid, ok := r.Unbind("c1")
	assert.True(t, ok)
	assert.Equal(t, "alice", pid)
}

func TestUnbind_UnknownConn(t *testing.T) {
	r := New()
	_, ok := r.Unbind("nope")
	assert.False(t, ok)
}

func TestRooms_SurviveUnbind(t *testing.T) {
	r := New()
	r.Bind("c1", "alice", &fakeConn{})
	r.SetRoom("alice", "lobby-1")

	r.Unbind("c1")

	lobbyID, ok := r.RoomOf("alice")
	require.True(t, ok)
	assert.Equal(t, "lobby-1", lobbyID)
}

func TestDropPlayer_ForgetsConnectionAndRoom(t *testing.T) {
	r := New()
	r.Bind("c1", "alice", &fakeConn{})
	r.SetRoom("alice", "lobby-1")

	r.DropPlayer("alice")

	_, ok := r.RoomOf("alice")
	assert.False(t, ok)
	_, ok = r.Unbind("c1")
	assert.False(t, ok)
}

func TestDropRoom_ForgetsEveryMember(t *testing.T) {
	r := New()
	r.SetRoom("alice", "lobby-1")
	r.SetRoom("bob", "lobby-1")
	r.SetRoom("carol", "lobby-2")

	r.DropRoom("lobby-1")

	_, ok := r.RoomOf("alice")
	assert.False(t, ok)
	_, ok = r.RoomOf("bob")
	assert.False(t, ok)
	lobbyID, ok := r.RoomOf("carol")
	require.True(t, ok)
	assert.Equal(t, "lobby-2", lobbyID)
}
