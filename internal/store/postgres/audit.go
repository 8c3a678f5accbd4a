package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: marshal payload: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, board_id, user_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.BoardID, entry.UserID, entry.EventType, payload, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", mapWriteErr(err))
	}

	return nil
}

// ListByBoard returns the newest entries first. limit is clamped to
// [1, domain.MaxAuditLimit].
func (r *AuditRepo) ListByBoard(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, user_id, event_type, payload, created_at
		 FROM audit_logs WHERE board_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		boardID, domain.ClampAuditLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var payload []byte

		if err := rows.Scan(&e.ID, &e.BoardID, &e.UserID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditRepo.ListByBoard: scan: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("auditRepo.ListByBoard: unmarshal payload: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.ListByBoard: rows: %w", err)
	}

	return entries, nil
}
