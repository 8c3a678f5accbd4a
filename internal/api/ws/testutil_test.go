package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
)

// ---------------------------------------------------------------------------
// Fake transport
// ---------------------------------------------------------------------------

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	code websocket.StatusCode

	failWrites atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
		code:   -1,
	}
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case p := <-f.in:
		return websocket.MessageText, p, nil
	case <-f.closed:
		return 0, nil, websocket.CloseError{Code: websocket.StatusGoingAway}
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, _ websocket.MessageType, p []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	select {
	case f.out <- append([]byte(nil), p...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeConn) Close(code websocket.StatusCode, _ string) error {
	f.once.Do(func() {
		f.mu.Lock()
		f.code = code
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeConn) CloseNow() error {
	return f.Close(-1, "")
}

func (f *fakeConn) closeCode() websocket.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// push feeds an inbound envelope to the read loop.
func (f *fakeConn) push(t *testing.T, typ string, data any) {
	t.Helper()
	f.in <- encode(t, typ, data)
}

// next waits for the next frame written to the peer.
func (f *fakeConn) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case p := <-f.out:
		var env Envelope
		require.NoError(t, json.Unmarshal(p, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

// ---------------------------------------------------------------------------
// Envelope helpers
// ---------------------------------------------------------------------------

func encode(t *testing.T, typ string, data any) []byte {
	t.Helper()
	env := Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

// dispatch runs one inbound message through the hub synchronously.
func dispatch(t *testing.T, h *Hub, c *Client, typ string, data any) {
	t.Helper()
	h.dispatch(context.Background(), c, encode(t, typ, data))
}

// drain returns every frame queued for c without blocking.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case p := <-c.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(p, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func typesOf(envs []Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func decodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type presenceStateData struct {
	BoardID uuid.UUID   `json:"boardId"`
	Users   []uuid.UUID `json:"users"`
}

type presenceUserData struct {
	BoardID uuid.UUID `json:"boardId"`
	UserID  uuid.UUID `json:"userId"`
}

type countData struct {
	BoardID uuid.UUID `json:"boardId"`
	Count   int       `json:"count"`
}

type errorData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Hub fixture
// ---------------------------------------------------------------------------

type verifierFunc func(token string) (uuid.UUID, error)

func (f verifierFunc) Verify(token string) (uuid.UUID, error) { return f(token) }

// tokenVerifier accepts tokens that are the string form of a user ID.
var tokenVerifier = verifierFunc(func(token string) (uuid.UUID, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
})

func newTestHub(t *testing.T, store *memStore, cfg Config, opts ...Option) *Hub {
	t.Helper()
	return NewHub(cfg, store, NewMemoryPresence(time.Minute, nil), tokenVerifier, opts...)
}

func newTestClient(userID uuid.UUID) *Client {
	return newClient(newFakeConn(), userID, 64, time.Second)
}

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

type memStore struct {
	mu      sync.Mutex
	boards  map[uuid.UUID]domain.Board
	columns map[uuid.UUID]domain.Column
	cards   map[uuid.UUID]domain.Card
	audit   []domain.AuditEntry

	auditErr   error
	boardsRepo domain.BoardRepository // replaces memBoards when set
	cardsRepo  domain.CardRepository  // replaces memCards when set
}

func newMemStore() *memStore {
	return &memStore{
		boards:  make(map[uuid.UUID]domain.Board),
		columns: make(map[uuid.UUID]domain.Column),
		cards:   make(map[uuid.UUID]domain.Card),
	}
}

func (s *memStore) Boards() domain.BoardRepository {
	if s.boardsRepo != nil {
		return s.boardsRepo
	}
	return memBoards{s}
}
func (s *memStore) Columns() domain.ColumnRepository { return memColumns{s} }
func (s *memStore) Cards() domain.CardRepository {
	if s.cardsRepo != nil {
		return s.cardsRepo
	}
	return memCards{s}
}
func (s *memStore) Audit() domain.AuditRepository    { return memAudit{s} }

func (s *memStore) addBoard(t *testing.T) uuid.UUID {
	t.Helper()
	b, err := domain.NewBoard(uuid.New(), "board")
	require.NoError(t, err)
	require.NoError(t, s.Boards().Create(context.Background(), b))
	return b.ID
}

func (s *memStore) addColumn(t *testing.T, boardID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	c, err := domain.NewColumn(boardID, name, 0)
	require.NoError(t, err)
	require.NoError(t, s.Columns().Create(context.Background(), c))
	return c.ID
}

func (s *memStore) addCard(t *testing.T, columnID uuid.UUID, title string) uuid.UUID {
	t.Helper()
	c, err := domain.NewCard(columnID, title)
	require.NoError(t, err)
	require.NoError(t, s.Cards().Create(context.Background(), c))
	return c.ID
}

func (s *memStore) card(id uuid.UUID) (domain.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	return c, ok
}

func (s *memStore) auditTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audit))
	for _, e := range s.audit {
		out = append(out, e.EventType)
	}
	return out
}

type memBoards struct{ s *memStore }

func (r memBoards) Create(_ context.Context, b *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.boards[b.ID] = *b
	return nil
}

func (r memBoards) GetByID(_ context.Context, id uuid.UUID) (*domain.Board, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.boards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (r memBoards) List(context.Context, int, int) ([]*domain.Board, error) {
	return nil, errors.New("not implemented")
}

func (r memBoards) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.boards, id)
	return nil
}

type memColumns struct{ s *memStore }

func (r memColumns) Create(_ context.Context, c *domain.Column) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.boards[c.BoardID]; !ok {
		return domain.ErrNotFound
	}
	r.s.columns[c.ID] = *c
	return nil
}

func (r memColumns) GetByID(_ context.Context, id uuid.UUID) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.columns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r memColumns) ListByBoard(_ context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Column
	for _, c := range r.s.columns {
		if c.BoardID == boardID {
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memColumns) Update(_ context.Context, id uuid.UUID, patch domain.ColumnPatch) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.columns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&c)
	c.UpdatedAt = time.Now()
	r.s.columns[id] = c
	return &c, nil
}

func (r memColumns) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.columns[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.columns, id)
	for cardID, card := range r.s.cards {
		if card.ColumnID == id {
			delete(r.s.cards, cardID)
		}
	}
	return nil
}

func (r memColumns) BoardIDOf(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.columns[id]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	return c.BoardID, nil
}

type memCards struct{ s *memStore }

func (r memCards) Create(_ context.Context, c *domain.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.columns[c.ColumnID]; !ok {
		return domain.ErrNotFound
	}
	r.s.cards[c.ID] = *c
	return nil
}

func (r memCards) GetByID(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	c, ok := r.s.card(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r memCards) ListByBoard(_ context.Context, boardID uuid.UUID) ([]*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Card
	for _, c := range r.s.cards {
		if r.s.columns[c.ColumnID].BoardID == boardID {
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memCards) Update(_ context.Context, id uuid.UUID, patch domain.CardPatch) (*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&c)
	c.UpdatedAt = time.Now()
	r.s.cards[id] = c
	return &c, nil
}

func (r memCards) Move(_ context.Context, id, columnID uuid.UUID, order int) (*domain.CardMove, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	target, ok := r.s.columns[columnID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	boardID := r.s.columns[c.ColumnID].BoardID
	if target.BoardID != boardID {
		return nil, domain.ErrCrossBoard
	}
	from := c.ColumnID
	c.ColumnID = columnID
	c.Order = &order
	c.UpdatedAt = time.Now()
	r.s.cards[id] = c
	return &domain.CardMove{Card: &c, BoardID: boardID, FromColumnID: from}, nil
}

func (r memCards) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cards[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.cards, id)
	return nil
}

func (r memCards) ColumnIDOf(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, ok := r.s.card(id)
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	return c.ColumnID, nil
}

type memAudit struct{ s *memStore }

func (r memAudit) Record(_ context.Context, e *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.auditErr != nil {
		return r.s.auditErr
	}
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r memAudit) ListByBoard(_ context.Context, boardID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.AuditEntry
	for i := len(r.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.s.audit[i]; e.BoardID == boardID {
			out = append(out, &e)
		}
	}
	return out, nil
}
