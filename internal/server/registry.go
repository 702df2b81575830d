package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry routes between connections and room actors: which connection a
// player currently owns, and which room they sit in. A player has at most
// one of each.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[uuid.UUID]*Actor
	conns      map[uuid.UUID]*Connection
	playerRoom map[uuid.UUID]uuid.UUID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[uuid.UUID]*Actor),
		conns:      make(map[uuid.UUID]*Connection),
		playerRoom: make(map[uuid.UUID]uuid.UUID),
	}
}

// AddRoom registers a room actor.
func (r *Registry) AddRoom(actor *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[actor.RoomID()] = actor
}

// Room looks up a room actor.
func (r *Registry) Room(roomID uuid.UUID) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actor, ok := r.rooms[roomID]
	return actor, ok
}

// Rooms returns every registered actor.
func (r *Registry) Rooms() []*Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Actor, 0, len(r.rooms))
	for _, a := range r.rooms {
		out = append(out, a)
	}
	return out
}

// Bind makes conn the player's connection, returning the displaced one if a
// second login stole the identity.
func (r *Registry) Bind(playerID uuid.UUID, conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.conns[playerID]
	r.conns[playerID] = conn
	if old == conn {
		return nil
	}
	return old
}

// Unbind drops the player's connection mapping, but only if conn still owns
// it. Returns whether the mapping was removed.
func (r *Registry) Unbind(playerID uuid.UUID, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[playerID] != conn {
		return false
	}
	delete(r.conns, playerID)
	return true
}

// SendToPlayer delivers a message to the player's current connection.
func (r *Registry) SendToPlayer(playerID uuid.UUID, msg *Message) error {
	r.mu.RLock()
	conn := r.conns[playerID]
	r.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("player %s not connected", playerID)
	}
	return conn.SendMessage(msg)
}

// SetRoom records the player's room. Fails when they are already in one.
func (r *Registry) SetRoom(playerID, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.playerRoom[playerID]; ok && existing != roomID {
		return fmt.Errorf("player already in room %s", existing)
	}
	r.playerRoom[playerID] = roomID
	return nil
}

// ClearRoom forgets the player's room binding.
func (r *Registry) ClearRoom(playerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playerRoom, playerID)
}

// RoomOf returns the actor for the room the player sits in, if any.
func (r *Registry) RoomOf(playerID uuid.UUID) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	actor, ok := r.rooms[roomID]
	return actor, ok
}
