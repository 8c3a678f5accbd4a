package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

func (h *Hub) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		TypeBoardJoin:         h.handleBoardJoin,
		TypeBoardLeave:        h.handleBoardLeave,
		TypePresenceHeartbeat: h.handleHeartbeat,
		TypeColumnCreate:      h.handleColumnCreate,
		TypeColumnUpdate:      h.handleColumnUpdate,
		TypeColumnDelete:      h.handleColumnDelete,
		TypeCardCreate:        h.handleCardCreate,
		TypeCardUpdate:        h.handleCardUpdate,
		TypeCardDelete:        h.handleCardDelete,
		TypeCardMove:          h.handleCardMove,
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", errInvalid)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalid, err)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", errInvalid, field)
}

// --- board membership ---

func (h *Hub) handleBoardJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var in boardRef
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.BoardID == uuid.Nil {
		return missing("boardId")
	}

	if _, err := h.store.Boards().GetByID(ctx, in.BoardID); err != nil {
		return fmt.Errorf("ws.handleBoardJoin: %w", err)
	}

	// Register before touching presence so a concurrent disconnect of the
	// same user's older connection sees this one.
	rejoin := c.hasBoard(in.BoardID)
	h.registry.Join(in.BoardID, c)
	c.addBoard(in.BoardID)
	h.metrics.SetBoards(h.registry.Boards())

	joined, err := h.presence.Touch(ctx, in.BoardID, c.userID, c.id)
	if err != nil {
		if !rejoin {
			h.undoJoin(ctx, c, in.BoardID, false)
		}
		return fmt.Errorf("ws.handleBoardJoin: %w", err)
	}

	members, err := h.presence.Members(ctx, in.BoardID)
	if err != nil {
		if !rejoin {
			h.undoJoin(ctx, c, in.BoardID, true)
		}
		return fmt.Errorf("ws.handleBoardJoin: %w", err)
	}

	others := make([]uuid.UUID, 0, len(members))
	for _, id := range members {
		if id != c.userID {
			others = append(others, id)
		}
	}

	send(c, newEnvelope(TypePresenceState, event{
		"boardId": in.BoardID,
		"users":   others,
	}))
	if joined {
		h.broadcaster.Broadcast(ctx, in.BoardID, newEnvelope(TypePresenceJoin, event{
			"boardId": in.BoardID,
			"userId":  c.userID,
		}), c)
	}
	h.broadcaster.Broadcast(ctx, in.BoardID, newEnvelope(TypeOnlineCount, event{
		"boardId": in.BoardID,
		"count":   len(members),
	}), nil)

	return nil
}

// undoJoin reverts a board:join that failed part way, so the connection does
// not keep receiving board traffic without being present.
func (h *Hub) undoJoin(ctx context.Context, c *Client, boardID uuid.UUID, touched bool) {
	c.removeBoard(boardID)
	h.registry.Leave(boardID, c)
	h.metrics.SetBoards(h.registry.Boards())

	if !touched {
		return
	}
	if _, err := h.presence.Leave(ctx, boardID, c.userID, c.id); err != nil {
		log.Warn().Err(err).
			Str("conn_id", c.id.String()).
			Str("board_id", boardID.String()).
			Msg("ws: presence rollback failed")
	}
}

func (h *Hub) handleBoardLeave(ctx context.Context, c *Client, data json.RawMessage) error {
	var in boardRef
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.BoardID == uuid.Nil {
		return missing("boardId")
	}
	if !c.removeBoard(in.BoardID) {
		return fmt.Errorf("%w: board not joined", errInvalid)
	}

	return h.leaveBoard(ctx, c, in.BoardID)
}

func (h *Hub) handleHeartbeat(ctx context.Context, c *Client, data json.RawMessage) error {
	var in boardRef
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.BoardID == uuid.Nil {
		return missing("boardId")
	}
	if !c.hasBoard(in.BoardID) {
		return fmt.Errorf("%w: heartbeat for board not joined", errInvalid)
	}

	joined, err := h.presence.Touch(ctx, in.BoardID, c.userID, c.id)
	if err != nil {
		return fmt.Errorf("ws.handleHeartbeat: %w", err)
	}
	if !joined {
		return nil
	}

	// Every connection of the user had lapsed; announce the return.
	h.broadcaster.Broadcast(ctx, in.BoardID, newEnvelope(TypePresenceJoin, event{
		"boardId": in.BoardID,
		"userId":  c.userID,
	}), c)
	return h.broadcastCount(ctx, in.BoardID)
}

// --- columns ---

func (h *Hub) handleColumnCreate(ctx context.Context, c *Client, data json.RawMessage) error {
	var in columnCreateData
	if err := decode(data, &in); err != nil {
		return err
	}
	name := h.sanitizer.Text(in.Name)
	switch {
	case in.BoardID == uuid.Nil:
		return missing("boardId")
	case name == "":
		return missing("name")
	case in.Order == nil:
		return missing("order")
	}

	col, err := domain.NewColumn(in.BoardID, name, *in.Order)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalid, err)
	}
	if err := h.store.Columns().Create(ctx, col); err != nil {
		return fmt.Errorf("ws.handleColumnCreate: %w", err)
	}

	h.publish(ctx, c, col.BoardID, TypeColumnCreated, event{
		"boardId": col.BoardID,
		"column":  col,
	})
	return nil
}

func (h *Hub) handleColumnUpdate(ctx context.Context, c *Client, data json.RawMessage) error {
	var in columnUpdateData
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.ColumnID == uuid.Nil {
		return missing("columnId")
	}

	var patch domain.ColumnPatch
	if err := decode(in.Updates, &patch); err != nil {
		return err
	}
	if patch.Name != nil {
		if patch.Name = h.sanitizer.TextPtr(patch.Name); *patch.Name == "" {
			return fmt.Errorf("%w: empty name", errInvalid)
		}
	}
	if patch.IsEmpty() {
		return missing("updates")
	}

	col, err := h.store.Columns().Update(ctx, in.ColumnID, patch)
	if err != nil {
		return fmt.Errorf("ws.handleColumnUpdate: %w", err)
	}

	h.publish(ctx, c, col.BoardID, TypeColumnUpdated, event{
		"boardId": col.BoardID,
		"column":  col,
	})
	return nil
}

func (h *Hub) handleColumnDelete(ctx context.Context, c *Client, data json.RawMessage) error {
	var in columnRef
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.ColumnID == uuid.Nil {
		return missing("columnId")
	}

	// The owning board must be read before the row disappears.
	boardID, err := h.store.Columns().BoardIDOf(ctx, in.ColumnID)
	if err != nil {
		return fmt.Errorf("ws.handleColumnDelete: %w", err)
	}
	if err := h.store.Columns().Delete(ctx, in.ColumnID); err != nil {
		return fmt.Errorf("ws.handleColumnDelete: %w", err)
	}

	h.publish(ctx, c, boardID, TypeColumnDeleted, event{
		"boardId":  boardID,
		"columnId": in.ColumnID,
	})
	return nil
}

// --- cards ---

func (h *Hub) handleCardCreate(ctx context.Context, c *Client, data json.RawMessage) error {
	var in cardCreateData
	if err := decode(data, &in); err != nil {
		return err
	}
	title := h.sanitizer.Text(in.Title)
	switch {
	case in.ColumnID == uuid.Nil:
		return missing("columnId")
	case title == "":
		return missing("title")
	}

	boardID, err := h.store.Columns().BoardIDOf(ctx, in.ColumnID)
	if err != nil {
		return fmt.Errorf("ws.handleCardCreate: %w", err)
	}

	card, err := domain.NewCard(in.ColumnID, title)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalid, err)
	}
	card.Description = h.sanitizer.TextPtr(in.Description)
	card.Labels = h.sanitizer.Labels(in.Labels)
	card.Assignee = in.Assignee
	card.Order = in.Order

	if err := h.store.Cards().Create(ctx, card); err != nil {
		return fmt.Errorf("ws.handleCardCreate: %w", err)
	}

	h.publish(ctx, c, boardID, TypeCardCreated, event{
		"boardId": boardID,
		"card":    card,
	})
	return nil
}

func (h *Hub) handleCardUpdate(ctx context.Context, c *Client, data json.RawMessage) error {
	var in cardUpdateData
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.CardID == uuid.Nil {
		return missing("cardId")
	}

	var patch domain.CardPatch
	if err := decode(in.Updates, &patch); err != nil {
		return err
	}
	if patch.Title != nil {
		if patch.Title = h.sanitizer.TextPtr(patch.Title); *patch.Title == "" {
			return fmt.Errorf("%w: empty title", errInvalid)
		}
	}
	patch.Description = h.sanitizer.TextPtr(patch.Description)
	if patch.Labels != nil {
		labels := h.sanitizer.Labels(*patch.Labels)
		if labels == nil {
			labels = []string{}
		}
		patch.Labels = &labels
	}
	if patch.IsEmpty() {
		return missing("updates")
	}

	card, err := h.store.Cards().Update(ctx, in.CardID, patch)
	if err != nil {
		return fmt.Errorf("ws.handleCardUpdate: %w", err)
	}
	boardID, err := h.store.Columns().BoardIDOf(ctx, card.ColumnID)
	if err != nil {
		return fmt.Errorf("ws.handleCardUpdate: %w", err)
	}

	h.publish(ctx, c, boardID, TypeCardUpdated, event{
		"boardId": boardID,
		"card":    card,
	})
	return nil
}

func (h *Hub) handleCardDelete(ctx context.Context, c *Client, data json.RawMessage) error {
	var in cardRef
	if err := decode(data, &in); err != nil {
		return err
	}
	if in.CardID == uuid.Nil {
		return missing("cardId")
	}

	// Resolve the parents first; after the delete there is nothing to look up.
	columnID, err := h.store.Cards().ColumnIDOf(ctx, in.CardID)
	if err != nil {
		return fmt.Errorf("ws.handleCardDelete: %w", err)
	}
	boardID, err := h.store.Columns().BoardIDOf(ctx, columnID)
	if err != nil {
		return fmt.Errorf("ws.handleCardDelete: %w", err)
	}
	if err := h.store.Cards().Delete(ctx, in.CardID); err != nil {
		return fmt.Errorf("ws.handleCardDelete: %w", err)
	}

	h.publish(ctx, c, boardID, TypeCardDeleted, event{
		"boardId":  boardID,
		"cardId":   in.CardID,
		"columnId": columnID,
	})
	return nil
}

func (h *Hub) handleCardMove(ctx context.Context, c *Client, data json.RawMessage) error {
	var in cardMoveData
	if err := decode(data, &in); err != nil {
		return err
	}
	switch {
	case in.CardID == uuid.Nil:
		return missing("cardId")
	case in.NewColumnID == uuid.Nil:
		return missing("newColumnId")
	case in.NewOrder == nil:
		return missing("newOrder")
	}

	move, err := h.store.Cards().Move(ctx, in.CardID, in.NewColumnID, *in.NewOrder)
	if errors.Is(err, domain.ErrCrossBoard) {
		return fmt.Errorf("%w: card %s cannot move to column %s: %v", errInvalid, in.CardID, in.NewColumnID, err)
	}
	if err != nil {
		return fmt.Errorf("ws.handleCardMove: %w", err)
	}

	h.publish(ctx, c, move.BoardID, TypeCardMoved, event{
		"boardId":     move.BoardID,
		"card":        move.Card,
		"oldColumnId": move.FromColumnID,
		"newColumnId": in.NewColumnID,
	})
	return nil
}

// publish broadcasts a completed mutation and appends it to the board's audit
// log. A failed audit write is logged and otherwise ignored.
func (h *Hub) publish(ctx context.Context, c *Client, boardID uuid.UUID, typ string, ev event) {
	var exclude *Client
	if !h.cfg.EchoMutations {
		exclude = c
	}
	h.broadcaster.Broadcast(ctx, boardID, newEnvelope(typ, ev), exclude)

	userID := c.userID
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		BoardID:   boardID,
		UserID:    &userID,
		EventType: typ,
		Payload:   ev,
		CreatedAt: time.Now(),
	}
	if err := h.store.Audit().Record(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("board_id", boardID.String()).
			Str("type", typ).
			Msg("ws: audit write failed")
	}
}
