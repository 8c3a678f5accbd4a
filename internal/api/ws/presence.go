package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Presence tracks which users are on a board. A user is present while at least
// one of their connections has been touched within the TTL, whichever node
// that connection lives on. Implementations must be safe for concurrent use.
type Presence interface {
	// Touch records connID of userID on boardID for one TTL window. It reports
	// whether the user had no live connection on the board before.
	Touch(ctx context.Context, boardID, userID, connID uuid.UUID) (bool, error)
	// Leave drops connID and reports whether userID is now absent from boardID.
	Leave(ctx context.Context, boardID, userID, connID uuid.UUID) (bool, error)
	// Members lists the distinct users present on boardID.
	Members(ctx context.Context, boardID uuid.UUID) ([]uuid.UUID, error)
}

// MemoryPresence is a single-node Presence. Expiry is evaluated on access.
type MemoryPresence struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	boards map[uuid.UUID]map[uuid.UUID]map[uuid.UUID]time.Time // board -> user -> conn -> expiry
}

// NewMemoryPresence returns an in-process tracker. now may be nil, in which
// case time.Now is used.
func NewMemoryPresence(ttl time.Duration, now func() time.Time) *MemoryPresence {
	if now == nil {
		now = time.Now
	}
	return &MemoryPresence{
		ttl:    ttl,
		now:    now,
		boards: make(map[uuid.UUID]map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (p *MemoryPresence) Touch(_ context.Context, boardID, userID, connID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	users, ok := p.boards[boardID]
	if !ok {
		users = make(map[uuid.UUID]map[uuid.UUID]time.Time)
		p.boards[boardID] = users
	}
	conns, ok := users[userID]
	if !ok {
		conns = make(map[uuid.UUID]time.Time)
		users[userID] = conns
	}
	joined := prune(conns, now) == 0
	conns[connID] = now.Add(p.ttl)
	return joined, nil
}

func (p *MemoryPresence) Leave(_ context.Context, boardID, userID, connID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.boards[boardID]
	conns, ok := users[userID]
	if !ok {
		return true, nil
	}
	delete(conns, connID)
	if prune(conns, p.now()) > 0 {
		return false, nil
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.boards, boardID)
	}
	return true, nil
}

func (p *MemoryPresence) Members(_ context.Context, boardID uuid.UUID) ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	users := p.boards[boardID]
	out := make([]uuid.UUID, 0, len(users))
	for id, conns := range users {
		if prune(conns, now) == 0 {
			delete(users, id)
			continue
		}
		out = append(out, id)
	}
	if users != nil && len(users) == 0 {
		delete(p.boards, boardID)
	}
	return out, nil
}

// prune drops lapsed connections and returns how many remain.
func prune(conns map[uuid.UUID]time.Time, now time.Time) int {
	for id, expires := range conns {
		if !now.Before(expires) {
			delete(conns, id)
		}
	}
	return len(conns)
}
