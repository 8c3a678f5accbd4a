package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// errInvalid marks a message that is dropped without a reply: missing or
// malformed fields, or a request that would break board consistency.
var errInvalid = errors.New("invalid message")

const cleanupTimeout = 5 * time.Second

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// serve runs one authenticated connection. Messages are handled strictly one
// at a time, in arrival order.
func (h *Hub) serve(ctx context.Context, conn Transport, userID uuid.UUID) {
	ctx, cancel := context.WithCancel(ctx)
	c := newClient(conn, userID, h.cfg.SendQueueSize, h.cfg.WriteTimeout)

	h.metrics.ConnectionOpened()
	log.Debug().Str("conn_id", c.id.String()).Str("user_id", userID.String()).Msg("ws: connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	defer func() {
		// Deregistration completes before serve returns, so a reconnecting
		// client never races a stale leave from this connection.
		h.disconnect(ctx, c)
		c.shutdown()
		cancel()
		<-writerDone
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.metrics.ConnectionClosed()
		log.Debug().Str("conn_id", c.id.String()).Str("user_id", userID.String()).Msg("ws: disconnected")
	}()

	send(c, newEnvelope(TypeConnectionAck, event{"userId": userID}))

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 {
				log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("ws: read failed")
			}
			return
		}
		h.dispatch(ctx, c, raw)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		h.metrics.MessageMalformed()
		log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("ws: dropping malformed envelope")
		return
	}

	handle, ok := h.handlers[env.Type]
	if !ok {
		log.Debug().Str("conn_id", c.id.String()).Str("type", env.Type).Msg("ws: ignoring unknown message type")
		return
	}
	h.metrics.MessageHandled(env.Type)

	err := h.invoke(ctx, c, handle, env)
	switch {
	case err == nil:
	case errors.Is(err, errInvalid):
		log.Debug().Err(err).Str("conn_id", c.id.String()).Str("type", env.Type).Msg("ws: message rejected")
	default:
		h.metrics.HandlerError(env.Type)
		log.Error().Err(err).
			Str("conn_id", c.id.String()).
			Str("user_id", c.userID.String()).
			Str("type", env.Type).
			Msg("ws: handler failed")
		send(c, newEnvelope(TypeError, event{"type": env.Type, "message": errorMessage(err)}))
	}
}

// invoke runs a handler, turning a panic into an ordinary error.
func (h *Hub) invoke(ctx context.Context, c *Client, handle handlerFunc, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("type", env.Type).
				Msg("ws: handler panic")
			err = fmt.Errorf("ws: handler panic: %v", r)
		}
	}()
	return handle(ctx, c, env.Data)
}

func errorMessage(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "not found"
	}
	return "internal error"
}

// disconnect removes c from every board it joined and tells the remaining
// members. It runs on a context detached from the closing connection.
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, boardID := range c.takeBoards() {
		if err := h.leaveBoard(ctx, c, boardID); err != nil {
			log.Warn().Err(err).
				Str("conn_id", c.id.String()).
				Str("board_id", boardID.String()).
				Msg("ws: presence cleanup failed")
		}
	}
}

// leaveBoard deregisters c from boardID. The user's departure is announced
// only when no connection of theirs, on this node or another, remains.
func (h *Hub) leaveBoard(ctx context.Context, c *Client, boardID uuid.UUID) error {
	h.registry.Leave(boardID, c)
	h.metrics.SetBoards(h.registry.Boards())

	gone, err := h.presence.Leave(ctx, boardID, c.userID, c.id)
	if err != nil {
		return fmt.Errorf("ws.leaveBoard: %w", err)
	}
	if !gone {
		return nil
	}

	// A local connection of the same user whose join is still in flight will
	// announce itself; a leave sent now could arrive after that join.
	if h.registry.HasUser(boardID, c.userID, c) {
		return nil
	}

	h.broadcaster.Broadcast(ctx, boardID, newEnvelope(TypePresenceLeave, event{
		"boardId": boardID,
		"userId":  c.userID,
	}), nil)

	return h.broadcastCount(ctx, boardID)
}

func (h *Hub) broadcastCount(ctx context.Context, boardID uuid.UUID) error {
	members, err := h.presence.Members(ctx, boardID)
	if err != nil {
		return fmt.Errorf("ws.broadcastCount: %w", err)
	}
	h.broadcaster.Broadcast(ctx, boardID, newEnvelope(TypeOnlineCount, event{
		"boardId": boardID,
		"count":   len(members),
	}), nil)
	return nil
}
