package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Broadcaster fans one envelope out to every connection on a board.
// Delivery is best effort and at most once: a closed connection or a full
// queue loses the frame and the rest of the board still receives it.
type Broadcaster struct {
	registry *Registry
	metrics  Metrics
	relay    *Relay
}

func NewBroadcaster(registry *Registry, metrics Metrics, relay *Relay) *Broadcaster {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Broadcaster{registry: registry, metrics: metrics, relay: relay}
}

// Broadcast sends env to the members of boardID except exclude, which may be
// nil. When a relay is configured the frame is also handed to other nodes.
// It returns the number of local connections the frame was queued for.
func (b *Broadcaster) Broadcast(ctx context.Context, boardID uuid.UUID, env Envelope, exclude *Client) int {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("type", env.Type).Msg("ws: marshal broadcast")
		return 0
	}

	sent := b.deliver(boardID, frame, exclude)

	if b.relay != nil {
		if err := b.relay.Publish(ctx, boardID, frame); err != nil {
			b.metrics.RelayError()
			log.Warn().Err(err).Str("board_id", boardID.String()).Str("type", env.Type).Msg("ws: relay publish failed")
		} else {
			b.metrics.RelayPublished()
		}
	}

	return sent
}

// deliver queues an already encoded frame to the local members of boardID.
func (b *Broadcaster) deliver(boardID uuid.UUID, frame []byte, exclude *Client) int {
	var sent, dropped int
	for _, c := range b.registry.Members(boardID) {
		if c == exclude || c.closed() {
			continue
		}
		if c.enqueue(frame) {
			sent++
			continue
		}
		dropped++
		log.Debug().Str("board_id", boardID.String()).Str("conn_id", c.id.String()).Msg("ws: dropped frame, queue full")
	}
	b.metrics.Delivered(sent, dropped)
	return sent
}

// send queues env to a single connection.
func send(c *Client, env Envelope) bool {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("type", env.Type).Msg("ws: marshal reply")
		return false
	}
	return c.enqueue(frame)
}
