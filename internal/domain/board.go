package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBoard creates a Board with validated required fields.
func NewBoard(ownerID uuid.UUID, name string) (*Board, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("board: owner ID is required")
	}
	if name == "" {
		return nil, errors.New("board: name is required")
	}
	now := time.Now()
	return &Board{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	List(ctx context.Context, limit, offset int) ([]*Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
