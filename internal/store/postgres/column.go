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

type ColumnRepo struct {
	pool *pgxpool.Pool
}

func NewColumnRepo(pool *pgxpool.Pool) *ColumnRepo {
	return &ColumnRepo{pool: pool}
}

const columnColumns = `id, board_id, name, position, created_at, updated_at`

func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO board_columns (`+columnColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.BoardID, c.Name, c.Order, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("columnRepo.Create: %w", mapWriteErr(err))
	}

	return nil
}

func (r *ColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	c, err := scanColumn(r.pool.QueryRow(ctx,
		`SELECT `+columnColumns+` FROM board_columns WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *ColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+columnColumns+` FROM board_columns WHERE board_id = $1
		 ORDER BY position, created_at, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var cols []*domain.Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("columnRepo.ListByBoard: scan: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: rows: %w", err)
	}

	return cols, nil
}

// Update applies the non-nil fields of patch and returns the updated row.
func (r *ColumnRepo) Update(ctx context.Context, id uuid.UUID, patch domain.ColumnPatch) (*domain.Column, error) {
	c, err := scanColumn(r.pool.QueryRow(ctx,
		`UPDATE board_columns
		 SET name = COALESCE($1, name), position = COALESCE($2, position), updated_at = now()
		 WHERE id = $3
		 RETURNING `+columnColumns,
		patch.Name, patch.Order, id,
	))
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Update: %w", err)
	}

	return c, nil
}

// Delete removes the column. Its cards go with it through ON DELETE CASCADE.
func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM board_columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("columnRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("columnRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ColumnRepo) BoardIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var boardID uuid.UUID

	err := r.pool.QueryRow(ctx, `SELECT board_id FROM board_columns WHERE id = $1`, id).Scan(&boardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("columnRepo.BoardIDOf: %w", domain.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("columnRepo.BoardIDOf: %w", err)
	}

	return boardID, nil
}

func scanColumn(row pgx.Row) (*domain.Column, error) {
	var c domain.Column

	err := row.Scan(&c.ID, &c.BoardID, &c.Name, &c.Order, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}
