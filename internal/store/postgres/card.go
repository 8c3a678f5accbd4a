package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = `id, column_id, title, description, labels, assignee, position, created_at, updated_at`

func (r *CardRepo) Create(ctx context.Context, c *domain.Card) error {
	labels := c.Labels
	if labels == nil {
		labels = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO cards (`+cardColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ColumnID, c.Title, c.Description, labels,
		c.Assignee, c.Order, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.Create: %w", mapWriteErr(err))
	}

	return nil
}

func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	c, err := scanCard(r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("cardRepo.GetByID: %w", err)
	}

	return c, nil
}

// ListByBoard returns every card under any column of the board. Callers sort
// per column with domain.SortCards.
func (r *CardRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.column_id, c.title, c.description, c.labels, c.assignee, c.position, c.created_at, c.updated_at
		 FROM cards c JOIN board_columns col ON col.id = c.column_id
		 WHERE col.board_id = $1
		 ORDER BY c.column_id, c.position NULLS LAST, c.created_at, c.id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("cardRepo.ListByBoard: scan: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cardRepo.ListByBoard: rows: %w", err)
	}

	return cards, nil
}

// Update applies the non-nil fields of patch and returns the updated row.
func (r *CardRepo) Update(ctx context.Context, id uuid.UUID, patch domain.CardPatch) (*domain.Card, error) {
	var labels any
	if patch.Labels != nil {
		l := *patch.Labels
		if l == nil {
			l = []string{}
		}
		labels = l
	}

	c, err := scanCard(r.pool.QueryRow(ctx,
		`UPDATE cards SET
		     title = COALESCE($1, title),
		     description = COALESCE($2, description),
		     labels = COALESCE($3::text[], labels),
		     assignee = COALESCE($4, assignee),
		     position = COALESCE($5, position),
		     updated_at = now()
		 WHERE id = $6
		 RETURNING `+cardColumns,
		patch.Title, patch.Description, labels, patch.Assignee, patch.Order, id,
	))
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Update: %w", err)
	}

	return c, nil
}

// Move re-parents the card inside one transaction. The card row is locked
// while its current column is read, so the reported origin is the column it
// actually left even when other moves race with this one.
func (r *CardRepo) Move(ctx context.Context, id, columnID uuid.UUID, order int) (*domain.CardMove, error) {
	var move domain.CardMove

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT c.column_id, col.board_id
			 FROM cards c JOIN board_columns col ON col.id = c.column_id
			 WHERE c.id = $1
			 FOR UPDATE OF c`,
			id,
		).Scan(&move.FromColumnID, &move.BoardID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var target uuid.UUID
		err = tx.QueryRow(ctx,
			`SELECT board_id FROM board_columns WHERE id = $1 FOR SHARE`, columnID,
		).Scan(&target)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if target != move.BoardID {
			return domain.ErrCrossBoard
		}

		move.Card, err = scanCard(tx.QueryRow(ctx,
			`UPDATE cards SET column_id = $1, position = $2, updated_at = now()
			 WHERE id = $3
			 RETURNING `+cardColumns,
			columnID, order, id,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Move: %w", mapWriteErr(err))
	}

	return &move, nil
}

func (r *CardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cardRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cardRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *CardRepo) ColumnIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var columnID uuid.UUID

	err := r.pool.QueryRow(ctx, `SELECT column_id FROM cards WHERE id = $1`, id).Scan(&columnID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("cardRepo.ColumnIDOf: %w", domain.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("cardRepo.ColumnIDOf: %w", err)
	}

	return columnID, nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card

	err := row.Scan(
		&c.ID, &c.ColumnID, &c.Title, &c.Description, &c.Labels,
		&c.Assignee, &c.Order, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}
