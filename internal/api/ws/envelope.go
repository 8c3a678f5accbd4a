package ws

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Envelope is the unit exchanged in both directions: {"type": ..., "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message kinds.
const (
	TypeBoardJoin         = "board:join"
	TypeBoardLeave        = "board:leave"
	TypePresenceHeartbeat = "presence:heartbeat"
	TypeColumnCreate      = "column:create"
	TypeColumnUpdate      = "column:update"
	TypeColumnDelete      = "column:delete"
	TypeCardCreate        = "card:create"
	TypeCardUpdate        = "card:update"
	TypeCardDelete        = "card:delete"
	TypeCardMove          = "card:move"
)

// Outbound event kinds.
const (
	TypeConnectionAck = "connection:ack"
	TypePresenceState = "presence:state"
	TypePresenceJoin  = "presence:join"
	TypePresenceLeave = "presence:leave"
	TypeOnlineCount   = "online:count"
	TypeColumnCreated = "column:created"
	TypeColumnUpdated = "column:updated"
	TypeColumnDeleted = "column:deleted"
	TypeCardCreated   = "card:created"
	TypeCardUpdated   = "card:updated"
	TypeCardDeleted   = "card:deleted"
	TypeCardMoved     = "card:moved"
	TypeError         = "error"
)

// event is the data object of an outbound envelope. The same map is stored as
// the audit payload for mutations.
type event = map[string]any

func newEnvelope(typ string, data event) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		// Outbound payloads are built from domain structs; a failure here is a bug.
		log.Error().Err(err).Str("type", typ).Msg("ws: marshal outbound event")
		raw = []byte("{}")
	}
	return Envelope{Type: typ, Data: raw}
}

// --- inbound payloads ---

type boardRef struct {
	BoardID uuid.UUID `json:"boardId"`
}

type columnCreateData struct {
	BoardID uuid.UUID `json:"boardId"`
	Name    string    `json:"name"`
	Order   *int      `json:"order"`
}

type columnUpdateData struct {
	ColumnID uuid.UUID       `json:"columnId"`
	Updates  json.RawMessage `json:"updates"`
}

type columnRef struct {
	ColumnID uuid.UUID `json:"columnId"`
}

type cardCreateData struct {
	ColumnID    uuid.UUID  `json:"columnId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Labels      []string   `json:"labels"`
	Assignee    *uuid.UUID `json:"assignee"`
	Order       *int       `json:"order"`
}

type cardUpdateData struct {
	CardID  uuid.UUID       `json:"cardId"`
	Updates json.RawMessage `json:"updates"`
}

type cardRef struct {
	CardID uuid.UUID `json:"cardId"`
}

type cardMoveData struct {
	CardID      uuid.UUID `json:"cardId"`
	NewColumnID uuid.UUID `json:"newColumnId"`
	NewOrder    *int      `json:"newOrder"`
}
