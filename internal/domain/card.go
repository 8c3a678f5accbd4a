package domain

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Card struct {
	ID          uuid.UUID  `json:"id"`
	ColumnID    uuid.UUID  `json:"column_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Labels      []string   `json:"labels"`
	Assignee    *uuid.UUID `json:"assignee"`
	Order       *int       `json:"order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewCard creates a Card with validated required fields. Optional fields are
// set by the caller.
func NewCard(columnID uuid.UUID, title string) (*Card, error) {
	if columnID == uuid.Nil {
		return nil, errors.New("card: column ID is required")
	}
	if title == "" {
		return nil, errors.New("card: title is required")
	}
	now := time.Now()
	return &Card{
		ID:        uuid.New(),
		ColumnID:  columnID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CardPatch is a partial card update. The parent column is deliberately absent:
// re-parenting goes through CardRepository.Move.
type CardPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Labels      *[]string  `json:"labels,omitempty"`
	Assignee    *uuid.UUID `json:"assignee,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

func (p CardPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Labels == nil && p.Assignee == nil && p.Order == nil
}

// Apply copies the set fields of p onto c.
func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.Labels != nil {
		c.Labels = *p.Labels
	}
	if p.Assignee != nil {
		c.Assignee = p.Assignee
	}
	if p.Order != nil {
		c.Order = p.Order
	}
}

// SortCards orders cards top to bottom within their column. Cards without an
// order sink to the bottom; ties are broken by creation time and then ID.
func SortCards(cards []*Card) {
	slices.SortStableFunc(cards, func(a, b *Card) int {
		switch {
		case a.Order == nil && b.Order != nil:
			return 1
		case a.Order != nil && b.Order == nil:
			return -1
		case a.Order != nil && b.Order != nil:
			if c := cmp.Compare(*a.Order, *b.Order); c != 0 {
				return c
			}
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

// CardMove is the outcome of CardRepository.Move. FromColumnID is the column
// the card occupied at the moment it was moved.
type CardMove struct {
	Card         *Card
	BoardID      uuid.UUID
	FromColumnID uuid.UUID
}

type CardRepository interface {
	Create(ctx context.Context, c *Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Card, error)
	Update(ctx context.Context, id uuid.UUID, patch CardPatch) (*Card, error)
	// Move re-parents the card and assigns its new order atomically. A
	// destination column on another board fails with ErrCrossBoard and
	// changes nothing.
	Move(ctx context.Context, id, columnID uuid.UUID, order int) (*CardMove, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ColumnIDOf returns the current parent column of a card.
	ColumnIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}
