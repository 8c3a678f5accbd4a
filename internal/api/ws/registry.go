package ws

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Registry maps a board to the connections currently viewing it. The top-level
// lock only guards the board map; membership changes take the per-board lock,
// so traffic on one board never waits on another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

type room struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// dead is set once the room emptied and is about to leave the map.
	dead atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]*room)}
}

// Join adds c to boardID. Joining twice is a no-op.
func (r *Registry) Join(boardID uuid.UUID, c *Client) {
	for {
		rm := r.room(boardID)
		rm.mu.Lock()
		if rm.dead.Load() {
			rm.mu.Unlock()
			continue
		}
		rm.clients[c] = struct{}{}
		rm.mu.Unlock()
		return
	}
}

// Leave removes c from boardID and drops the board entry once it is empty.
// It reports whether c was a member.
func (r *Registry) Leave(boardID uuid.UUID, c *Client) bool {
	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	rm.mu.Lock()
	_, member := rm.clients[c]
	delete(rm.clients, c)
	empty := len(rm.clients) == 0
	if empty {
		rm.dead.Store(true)
	}
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[boardID] == rm {
			delete(r.rooms, boardID)
		}
		r.mu.Unlock()
	}

	return member
}

// Members returns a snapshot of the connections on boardID. The slice is owned
// by the caller and unaffected by later joins or leaves.
func (r *Registry) Members(boardID uuid.UUID) []*Client {
	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]*Client, 0, len(rm.clients))
	for c := range rm.clients {
		out = append(out, c)
	}
	return out
}

// HasUser reports whether a connection of userID other than except is on boardID.
func (r *Registry) HasUser(boardID, userID uuid.UUID, except *Client) bool {
	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for c := range rm.clients {
		if c != except && c.userID == userID {
			return true
		}
	}
	return false
}

// Boards returns the number of boards with at least one member.
func (r *Registry) Boards() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// room returns the live room for boardID, replacing a dead one if needed.
func (r *Registry) room(boardID uuid.UUID) *room {
	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if ok && !rm.dead.Load() {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[boardID]; ok && !rm.dead.Load() {
		return rm
	}
	rm = &room{clients: make(map[*Client]struct{})}
	r.rooms[boardID] = rm
	return rm
}
