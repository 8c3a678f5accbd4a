package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

type CreateBoardInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Board name"`
	}
}

type CreateBoardOutput struct {
	Body *domain.Board
}

type ListBoardsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Rows to skip"`
}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type GetBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

// BoardColumn is one column of a board snapshot together with its cards.
type BoardColumn struct {
	Column *domain.Column `json:"column"`
	Cards  []*domain.Card `json:"cards"`
}

// BoardSnapshot is the full state a client loads before joining the live feed.
type BoardSnapshot struct {
	Board   *domain.Board  `json:"board"`
	Columns []*BoardColumn `json:"columns"`
}

type GetBoardOutput struct {
	Body *BoardSnapshot
}

type DeleteBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/boards",
		Summary:     "Create a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*CreateBoardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		b, err := domain.NewBoard(userID, strings.TrimSpace(input.Body.Name))
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if err := store.Boards().Create(ctx, b); err != nil {
			return nil, huma.Error500InternalServerError("failed to create board", err)
		}

		return &CreateBoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListBoardsInput) (*ListBoardsOutput, error) {
		boards, err := store.Boards().List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a board with its columns and cards",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		b, err := store.Boards().GetByID(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}

		cols, err := store.Columns().ListByBoard(ctx, b.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list columns", err)
		}
		cards, err := store.Cards().ListByBoard(ctx, b.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list cards", err)
		}

		return &GetBoardOutput{Body: buildSnapshot(b, cols, cards)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}",
		Summary:     "Delete a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *DeleteBoardInput) (*struct{}, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		b, err := store.Boards().GetByID(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}
		if b.OwnerID != userID {
			return nil, huma.Error403Forbidden("only the owner can delete a board")
		}

		if err := store.Boards().Delete(ctx, b.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete board", err)
		}

		return nil, nil
	})
}

// buildSnapshot groups cards under their columns. Both levels are sorted here
// regardless of the order the store returned them in.
func buildSnapshot(b *domain.Board, cols []*domain.Column, cards []*domain.Card) *BoardSnapshot {
	domain.SortColumns(cols)
	domain.SortCards(cards)

	out := &BoardSnapshot{Board: b, Columns: make([]*BoardColumn, 0, len(cols))}
	byID := make(map[uuid.UUID]*BoardColumn, len(cols))
	for _, c := range cols {
		bc := &BoardColumn{Column: c, Cards: []*domain.Card{}}
		byID[c.ID] = bc
		out.Columns = append(out.Columns, bc)
	}
	for _, card := range cards {
		if bc, ok := byID[card.ColumnID]; ok {
			bc.Cards = append(bc.Cards, card)
		}
	}
	return out
}
