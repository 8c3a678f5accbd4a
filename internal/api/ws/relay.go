package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

// Bus is the pub/sub transport behind a Relay. *redisstore.PubSub satisfies it.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (<-chan redisstore.Message, func(), error)
}

// Relay carries broadcasts between nodes serving the same boards. Each node
// tags what it publishes with its own ID and skips those frames on receipt,
// since local members were already served directly.
type Relay struct {
	node uuid.UUID
	bus  Bus
}

type relayFrame struct {
	Node     uuid.UUID       `json:"node"`
	Envelope json.RawMessage `json:"envelope"`
}

func NewRelay(bus Bus) *Relay {
	return &Relay{node: uuid.New(), bus: bus}
}

func (r *Relay) Node() uuid.UUID { return r.node }

// Publish forwards an encoded envelope for boardID to the other nodes.
func (r *Relay) Publish(ctx context.Context, boardID uuid.UUID, frame []byte) error {
	payload, err := json.Marshal(relayFrame{Node: r.node, Envelope: frame})
	if err != nil {
		return fmt.Errorf("ws.Relay.Publish: %w", err)
	}
	if err := r.bus.Publish(ctx, redisstore.BoardChannel(boardID), payload); err != nil {
		return fmt.Errorf("ws.Relay.Publish: %w", err)
	}
	return nil
}

// Run subscribes to every board channel and hands foreign frames to deliver
// until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, deliver func(boardID uuid.UUID, frame []byte), metrics Metrics) error {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	msgs, cleanup, err := r.bus.PSubscribe(ctx, redisstore.BoardChannelPattern())
	if err != nil {
		return fmt.Errorf("ws.Relay.Run: %w", err)
	}
	defer cleanup()

	log.Info().Str("node", r.node.String()).Msg("ws: relay subscribed")

	for msg := range msgs {
		boardID, ok := redisstore.ParseBoardChannel(msg.Channel)
		if !ok {
			continue
		}

		var f relayFrame
		if err := json.Unmarshal(msg.Payload, &f); err != nil || len(f.Envelope) == 0 {
			metrics.RelayError()
			log.Debug().Err(err).Str("channel", msg.Channel).Msg("ws: bad relay frame")
			continue
		}
		if f.Node == r.node {
			continue
		}

		metrics.RelayReceived()
		deliver(boardID, f.Envelope)
	}

	return ctx.Err()
}
