package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	BoardID   uuid.UUID      `json:"board_id"`
	UserID    *uuid.UUID     `json:"user_id"`    // nil for system events
	EventType string         `json:"event_type"` // outbound envelope type, e.g. "card:moved"
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// ClampAuditLimit maps a caller-supplied limit onto [1, MaxAuditLimit],
// substituting DefaultAuditLimit for non-positive values.
func ClampAuditLimit(limit int) int {
	if limit <= 0 {
		return DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		return MaxAuditLimit
	}
	return limit
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByBoard(ctx context.Context, boardID uuid.UUID, limit int) ([]*AuditEntry, error)
}
