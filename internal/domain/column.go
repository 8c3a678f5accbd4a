package domain

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Column is a named lane within a board. Order is advisory: several columns may
// share a value, ties fall back to creation order.
type Column struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewColumn creates a Column with validated required fields.
func NewColumn(boardID uuid.UUID, name string, order int) (*Column, error) {
	if boardID == uuid.Nil {
		return nil, errors.New("column: board ID is required")
	}
	if name == "" {
		return nil, errors.New("column: name is required")
	}
	now := time.Now()
	return &Column{
		ID:        uuid.New(),
		BoardID:   boardID,
		Name:      name,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ColumnPatch is a partial column update. Nil fields are left unchanged.
type ColumnPatch struct {
	Name  *string `json:"name,omitempty"`
	Order *int    `json:"order,omitempty"`
}

func (p ColumnPatch) IsEmpty() bool {
	return p.Name == nil && p.Order == nil
}

// Apply copies the set fields of p onto c.
func (p ColumnPatch) Apply(c *Column) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

// SortColumns orders columns left to right. Order values are not unique, so
// ties are broken by creation time and then ID.
func SortColumns(cols []*Column) {
	slices.SortStableFunc(cols, func(a, b *Column) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

type ColumnRepository interface {
	Create(ctx context.Context, c *Column) error
	GetByID(ctx context.Context, id uuid.UUID) (*Column, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Column, error)
	Update(ctx context.Context, id uuid.UUID, patch ColumnPatch) (*Column, error)
	// Delete removes the column together with all of its cards.
	Delete(ctx context.Context, id uuid.UUID) error
	// BoardIDOf returns the owning board of a column without loading the row.
	BoardIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}
