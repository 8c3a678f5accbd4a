package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type Store struct {
	pool    *pgxpool.Pool
	users   *UserRepo
	boards  *BoardRepo
	columns *ColumnRepo
	cards   *CardRepo
	audit   *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:    pool,
		users:   NewUserRepo(pool),
		boards:  NewBoardRepo(pool),
		columns: NewColumnRepo(pool),
		cards:   NewCardRepo(pool),
		audit:   NewAuditRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Users() domain.UserRepository     { return s.users }
func (s *Store) Boards() domain.BoardRepository   { return s.boards }
func (s *Store) Columns() domain.ColumnRepository { return s.columns }
func (s *Store) Cards() domain.CardRepository     { return s.cards }
func (s *Store) Audit() domain.AuditRepository    { return s.audit }

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapWriteErr translates constraint violations into domain errors. A missing
// parent row surfaces as ErrNotFound, a duplicate key as ErrConflict.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return domain.ErrConflict
	case pgForeignKeyViolation:
		return domain.ErrNotFound
	}
	return err
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
