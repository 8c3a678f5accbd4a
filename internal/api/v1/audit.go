package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type ListAuditInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Limit   int       `query:"limit" doc:"Maximum entries, newest first (default 50, capped at 500)"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEntry
}

func RegisterAuditRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-board-audit",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/audit",
		Summary:     "List recent changes to a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		if _, err := store.Boards().GetByID(ctx, input.BoardID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}

		entries, err := store.Audit().ListByBoard(ctx, input.BoardID, domain.ClampAuditLimit(input.Limit))
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list audit entries", err)
		}
		if entries == nil {
			entries = []*domain.AuditEntry{}
		}

		return &ListAuditOutput{Body: entries}, nil
	})
}
