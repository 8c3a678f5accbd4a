package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const boardChannelPrefix = "board:"

// PubSub wraps a Redis client. Besides publish/subscribe it hands out the
// shared client to the presence tracker.
type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

// NewFromClient wraps an existing client. Close on the result closes it.
func NewFromClient(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// Message is one frame received on a pattern subscription.
type Message struct {
	Channel string
	Payload []byte
}

// PSubscribe subscribes to every channel matching pattern. The returned channel
// is closed when ctx is cancelled or the subscription ends; cleanup releases
// the underlying connection.
func (ps *PubSub) PSubscribe(ctx context.Context, pattern string) (<-chan Message, func(), error) {
	sub := ps.client.PSubscribe(ctx, pattern)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.PSubscribe: receive confirmation: %w", err)
	}

	out := make(chan Message, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// BoardChannel returns the Redis channel name for a board's fan-out.
func BoardChannel(boardID uuid.UUID) string {
	return boardChannelPrefix + boardID.String()
}

// BoardChannelPattern matches every board channel.
func BoardChannelPattern() string {
	return boardChannelPrefix + "*"
}

// ParseBoardChannel extracts the board ID from a channel produced by BoardChannel.
func ParseBoardChannel(channel string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(channel, boardChannelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
