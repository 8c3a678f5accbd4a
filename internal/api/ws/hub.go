package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/security"
)

// StatusUnauthorized closes a connection whose token was missing or invalid.
const StatusUnauthorized websocket.StatusCode = 4001

// Config tunes per-connection behaviour.
type Config struct {
	WriteTimeout    time.Duration
	SendQueueSize   int
	MaxMessageBytes int64
	// EchoMutations includes the sender in mutation broadcasts. Presence
	// notices about the sender itself are never echoed.
	EchoMutations bool
	// OriginPatterns lists the hosts allowed to open a browser connection.
	OriginPatterns []string
}

// Store is the persistence the message handlers need.
type Store interface {
	Boards() domain.BoardRepository
	Columns() domain.ColumnRepository
	Cards() domain.CardRepository
	Audit() domain.AuditRepository
}

// TokenVerifier resolves an access token to a user. *auth.Service implements it.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Hub owns the registry, presence tracker and broadcaster shared by every
// connection on this node.
type Hub struct {
	cfg         Config
	store       Store
	presence    Presence
	verifier    TokenVerifier
	registry    *Registry
	broadcaster *Broadcaster
	relay       *Relay
	sanitizer   *security.Sanitizer
	metrics     Metrics
	handlers    map[string]handlerFunc
}

type Option func(*Hub)

func WithMetrics(m Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithRelay forwards every broadcast to other nodes and delivers theirs
// locally once RunRelay is started.
func WithRelay(r *Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func NewHub(cfg Config, store Store, presence Presence, verifier TokenVerifier, opts ...Option) *Hub {
	if cfg.SendQueueSize < 1 {
		cfg.SendQueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	h := &Hub{
		cfg:       cfg,
		store:     store,
		presence:  presence,
		verifier:  verifier,
		registry:  NewRegistry(),
		sanitizer: security.NewSanitizer(),
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.broadcaster = NewBroadcaster(h.registry, h.metrics, h.relay)
	h.handlers = h.routes()

	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) Broadcaster() *Broadcaster { return h.broadcaster }

// RunRelay delivers broadcasts from other nodes until ctx is cancelled. It
// returns immediately when no relay is configured.
func (h *Hub) RunRelay(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Run(ctx, func(boardID uuid.UUID, frame []byte) {
		h.broadcaster.deliver(boardID, frame, nil)
	}, h.metrics)
}

// ServeWS upgrades the request and runs the connection until it closes. The
// access token travels in the "token" query parameter because browsers cannot
// set headers on a websocket handshake.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Server-wide read/write timeouts would otherwise cut long-lived sessions.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	h.Handle(r.Context(), conn, r.URL.Query().Get("token"))
}

// Handle authenticates conn and runs its session. It returns once the
// connection is closed and fully deregistered.
func (h *Hub) Handle(ctx context.Context, conn Transport, token string) {
	if token == "" {
		_ = conn.Close(StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("ws: rejecting connection")
		_ = conn.Close(StatusUnauthorized, "unauthorized")
		return
	}

	h.serve(ctx, conn, userID)
}
