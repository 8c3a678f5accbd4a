package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Presence tracks which users are on a board across every node sharing the
// Redis instance. Keys:
//
//	presence:board:{b}                  set of user IDs, an index only
//	presence:user:{u}:board:{b}         set of the user's connection IDs
//	presence:conn:{c}:board:{b}         one TTL key per connection
//
// A user is present while any of their connection keys is live. All reads and
// writes run as Lua scripts so pruning never races with a concurrent Touch.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

// Presence returns a tracker sharing this connection pool.
func (ps *PubSub) Presence(ttl time.Duration) *Presence {
	return NewPresence(ps.client, ttl)
}

func boardKey(boardID uuid.UUID) string {
	return "presence:board:" + boardID.String()
}

// liveConns prunes lapsed connections of a user and returns how many remain.
const liveConns = `
local function live(board, user)
  local key = 'presence:user:' .. user .. ':board:' .. board
  for _, conn in ipairs(redis.call('SMEMBERS', key)) do
    if redis.call('EXISTS', 'presence:conn:' .. conn .. ':board:' .. board) == 0 then
      redis.call('SREM', key, conn)
    end
  end
  return redis.call('SCARD', key)
end
`

//nolint:gochecknoglobals // compiled once, shared by every tracker
var (
	// KEYS[1] board index; ARGV board, user, conn, ttl in ms.
	touchScript = redis.NewScript(liveConns + `
local joined = 0
if live(ARGV[1], ARGV[2]) == 0 then joined = 1 end
local key = 'presence:user:' .. ARGV[2] .. ':board:' .. ARGV[1]
redis.call('SET', 'presence:conn:' .. ARGV[3] .. ':board:' .. ARGV[1], '1', 'PX', ARGV[4])
redis.call('SADD', key, ARGV[3])
redis.call('PEXPIRE', key, ARGV[4])
redis.call('SADD', KEYS[1], ARGV[2])
return joined
`)

	// KEYS[1] board index; ARGV board, user, conn.
	leaveScript = redis.NewScript(liveConns + `
local key = 'presence:user:' .. ARGV[2] .. ':board:' .. ARGV[1]
redis.call('DEL', 'presence:conn:' .. ARGV[3] .. ':board:' .. ARGV[1])
redis.call('SREM', key, ARGV[3])
if live(ARGV[1], ARGV[2]) > 0 then return 0 end
redis.call('DEL', key)
redis.call('SREM', KEYS[1], ARGV[2])
return 1
`)

	// KEYS[1] board index; ARGV board.
	membersScript = redis.NewScript(liveConns + `
local out = {}
for _, user in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  if live(ARGV[1], user) > 0 then
    table.insert(out, user)
  else
    redis.call('SREM', KEYS[1], user)
  end
end
return out
`)
)

// Touch records or refreshes connID of userID on boardID for one TTL window.
func (p *Presence) Touch(ctx context.Context, boardID, userID, connID uuid.UUID) (bool, error) {
	joined, err := touchScript.Run(ctx, p.client,
		[]string{boardKey(boardID)},
		boardID.String(), userID.String(), connID.String(), strconv.FormatInt(p.ttl.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis.Presence.Touch: %w", err)
	}
	return joined == 1, nil
}

// Leave removes connID and drops userID from boardID once no other connection
// of theirs, on any node, is still live.
func (p *Presence) Leave(ctx context.Context, boardID, userID, connID uuid.UUID) (bool, error) {
	gone, err := leaveScript.Run(ctx, p.client,
		[]string{boardKey(boardID)},
		boardID.String(), userID.String(), connID.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis.Presence.Leave: %w", err)
	}
	return gone == 1, nil
}

// Members returns the users with at least one live connection.
func (p *Presence) Members(ctx context.Context, boardID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := membersScript.Run(ctx, p.client,
		[]string{boardKey(boardID)},
		boardID.String(),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis.Presence.Members: %w", err)
	}

	members := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		userID, err := uuid.Parse(id)
		if err != nil {
			log.Warn().Str("board_id", boardID.String()).Str("member", id).Msg("presence: skipping malformed member")
			continue
		}
		members = append(members, userID)
	}

	return members, nil
}
