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

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO boards (id, name, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Name, b.OwnerID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", mapWriteErr(err))
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	var b domain.Board

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM boards WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) List(ctx context.Context, limit, offset int) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, owner_id, created_at, updated_at
		 FROM boards ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.List: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.List: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.List: rows: %w", err)
	}

	return boards, nil
}

func (r *BoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
