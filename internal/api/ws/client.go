package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Transport is the subset of *websocket.Conn the hub relies on.
type Transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	CloseNow() error
}

// Client is one authenticated connection. Outbound frames go through a
// bounded queue drained by a single writer, so a slow peer only ever stalls
// itself.
type Client struct {
	id           uuid.UUID
	userID       uuid.UUID
	conn         Transport
	writeTimeout time.Duration

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	boards map[uuid.UUID]struct{}
}

func newClient(conn Transport, userID uuid.UUID, queueSize int, writeTimeout time.Duration) *Client {
	return &Client{
		id:           uuid.New(),
		userID:       userID,
		conn:         conn,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		boards:       make(map[uuid.UUID]struct{}),
	}
}

func (c *Client) ID() uuid.UUID     { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// enqueue queues frame for delivery without blocking. It returns false when
// the client is closed or its queue is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// shutdown stops the writer. Frames still queued are discarded.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writeLoop drains the send queue until shutdown or a write fails. A failed
// write tears the transport down, which in turn ends the read loop.
func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case frame := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("ws: write failed, closing")
				c.shutdown()
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}

func (c *Client) addBoard(boardID uuid.UUID) {
	c.mu.Lock()
	c.boards[boardID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeBoard(boardID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.boards[boardID]
	delete(c.boards, boardID)
	return ok
}

func (c *Client) hasBoard(boardID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.boards[boardID]
	return ok
}

// takeBoards returns every joined board and forgets them.
func (c *Client) takeBoards() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.boards))
	for id := range c.boards {
		out = append(out, id)
	}
	clear(c.boards)
	return out
}
