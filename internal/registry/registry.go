package registry

import "sync"

// Conn is the slice of a websocket connection the registry needs: enough
// to evict it when the same player connects again elsewhere.
type Conn interface {
	Kick(reason string)
}

type binding struct {
	connID string
	conn   Conn
}

// Registry tracks which connection currently speaks for which player,
// and which lobby each player last joined. Connections come and go;
// the player→lobby room index survives disconnects so a returning
// player can be routed back without naming the lobby.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[string]string  // connID -> playerID
	byPlayer map[string]binding // playerID -> current connection
	rooms    map[string]string  // playerID -> lobbyID
}

func New() *Registry {
	return &Registry{
		byConn:   make(map[string]string),
		byPlayer: make(map[string]binding),
		rooms:    make(map[string]string),
	}
}

// Bind makes conn the current connection for playerID and returns the
// connection it displaced, if any. Last connection wins.
func (r *Registry) Bind(connID, playerID string, conn Conn) (old Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byPlayer[playerID]; ok && prev.connID != connID {
		delete(r.byConn, prev.connID)
		old = prev.conn
	}
	r.byConn[connID] = playerID
	r.byPlayer[playerID] = binding{connID: connID, conn: conn}
	return old
}

// Unbind removes connID if it is still the player's current connection.
// It reports false when the binding was already superseded, so a stale
// reader goroutine does not tear down its replacement.
func (r *Registry) Unbind(connID string) (playerID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	playerID, found := r.byConn[connID]
	if !found {
		return "", false
	}
	delete(r.byConn, connID)
	if cur, exists := r.byPlayer[playerID]; exists && cur.connID == connID {
		delete(r.byPlayer, playerID)
		return playerID, true
	}
	return playerID, false
}

// SetRoom records the lobby a player belongs to.
func (r *Registry) SetRoom(playerID, lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[playerID] = lobbyID
}

// RoomOf returns the lobby a player last joined.
func (r *Registry) RoomOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.rooms[playerID]
	return id, ok
}

// DropPlayer forgets a player entirely, connection and room both.
// Used when a player is kicked or their lobby is removed.
func (r *Registry) DropPlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byPlayer[playerID]; ok {
		delete(r.byConn, cur.connID)
		delete(r.byPlayer, playerID)
	}
	delete(r.rooms, playerID)
}

// DropRoom forgets every player routed to the given lobby.
func (r *Registry) DropRoom(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, lid := range r.rooms {
		if lid == lobbyID {
			delete(r.rooms, pid)
		}
	}
}
