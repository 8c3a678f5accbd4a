package ws

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. Authentication and connection lifecycle
// ---------------------------------------------------------------------------

func TestHandle_RejectsBadToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "invalid", token: "not-a-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHub(t, newMemStore(), Config{})
			conn := newFakeConn()

			h.Handle(context.Background(), conn, tt.token)

			assert.Equal(t, StatusUnauthorized, conn.closeCode())
			assert.Empty(t, conn.out, "nothing is written before the close")
		})
	}
}

func TestHandle_SessionLifecycle(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)
	h := newTestHub(t, store, Config{EchoMutations: true})

	observer := newTestClient(uuid.New())
	dispatch(t, h, observer, TypeBoardJoin, boardRef{BoardID: boardID})
	drain(t, observer)

	userID := uuid.New()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(context.Background(), conn, userID.String())
	}()

	ack := conn.next(t)
	require.Equal(t, TypeConnectionAck, ack.Type)
	assert.Equal(t, userID, decodeData[presenceUserData](t, ack).UserID)

	conn.push(t, TypeBoardJoin, boardRef{BoardID: boardID})
	state := conn.next(t)
	require.Equal(t, TypePresenceState, state.Type)
	assert.Equal(t, []uuid.UUID{observer.userID}, decodeData[presenceStateData](t, state).Users)
	assert.Equal(t, 2, decodeData[countData](t, conn.next(t)).Count)

	require.NoError(t, conn.CloseNow())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after hang-up")
	}

	got := drain(t, observer)
	require.Equal(t, []string{TypePresenceJoin, TypeOnlineCount, TypePresenceLeave, TypeOnlineCount}, typesOf(got))
	assert.Equal(t, userID, decodeData[presenceUserData](t, got[2]).UserID)
	assert.Equal(t, 1, decodeData[countData](t, got[3]).Count)

	assert.Len(t, h.Registry().Members(boardID), 1)
}

// ---------------------------------------------------------------------------
// 2. Presence
// ---------------------------------------------------------------------------

func TestBoardJoin_PresenceAndCounts(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)
	h := newTestHub(t, store, Config{})

	a := newTestClient(uuid.New())
	dispatch(t, h, a, TypeBoardJoin, boardRef{BoardID: boardID})

	got := drain(t, a)
	require.Equal(t, []string{TypePresenceState, TypeOnlineCount}, typesOf(got))
	assert.Contains(t, string(got[0].Data), `"users":[]`)
	assert.Equal(t, 1, decodeData[countData](t, got[1]).Count)

	b := newTestClient(uuid.New())
	dispatch(t, h, b, TypeBoardJoin, boardRef{BoardID: boardID})

	got = drain(t, b)
	require.Equal(t, []string{TypePresenceState, TypeOnlineCount}, typesOf(got))
	state := decodeData[presenceStateData](t, got[0])
	assert.Equal(t, boardID, state.BoardID)
	assert.Equal(t, []uuid.UUID{a.userID}, state.Users)
	assert.Equal(t, 2, decodeData[countData](t, got[1]).Count)

	got = drain(t, a)
	require.Equal(t, []string{TypePresenceJoin, TypeOnlineCount}, typesOf(got))
	assert.Equal(t, b.userID, decodeData[presenceUserData](t, got[0]).UserID)
	assert.Equal(t, 2, decodeData[countData](t, got[1]).Count)
}

func TestBoardJoin_UnknownBoardRepliesError(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, newMemStore(), Config{})
	c := newTestClient(uuid.New())

	dispatch(t, h, c, TypeBoardJoin, boardRef{BoardID: uuid.New()})

	got := drain(t, c)
	require.Equal(t, []string{TypeError}, typesOf(got))
	assert.Equal(t, errorData{Type: TypeBoardJoin, Message: "not found"}, decodeData[errorData](t, got[0]))
	assert.Zero(t, h.Registry().Boards())
}

func TestBoardLeave_RejoinGetsFreshState(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)
	h := newTestHub(t, store, Config{})

	a := newTestClient(uuid.New())
	b := newTestClient(uuid.New())
	dispatch(t, h, a, TypeBoardJoin, boardRef{BoardID: boardID})
	dispatch(t, h, b, TypeBoardJoin, boardRef{BoardID: boardID})
	drain(t, a)
	drain(t, b)

	dispatch(t, h, b, TypeBoardLeave, boardRef{BoardID: boardID})
	assert.Empty(t, drain(t, b), "a leaver is not told about its own departure")

	got := drain(t, a)
	require.Equal(t, []string{TypePresenceLeave, TypeOnlineCount}, typesOf(got))
	assert.Equal(t, b.userID, decodeData[presenceUserData](t, got[0]).UserID)
	assert.Equal(t, 1, decodeData[countData](t, got[1]).Count)

	// Leaving again is a no-op.
	dispatch(t, h, b, TypeBoardLeave, boardRef{BoardID: boardID})
	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))

	dispatch(t, h, b, TypeBoardJoin, boardRef{BoardID: boardID})
	got = drain(t, b)
	require.Equal(t, []string{TypePresenceState, TypeOnlineCount}, typesOf(got))
	assert.Equal(t, []uuid.UUID{a.userID}, decodeData[presenceStateData](t, got[0]).Users)
}

func TestDisconnect_SameUserOnOtherConnectionStaysPresent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)
	h := newTestHub(t, store, Config{})

	userID := uuid.New()
	first := newTestClient(userID)
	second := newTestClient(userID)
	observer := newTestClient(uuid.New())

	for _, c := range []*Client{observer, first, second} {
		dispatch(t, h, c, TypeBoardJoin, boardRef{BoardID: boardID})
	}
	drain(t, observer)

	h.disconnect(context.Background(), first)

	assert.Empty(t, drain(t, observer), "user still has a live connection")
	members, err := h.presence.Members(context.Background(), boardID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{userID, observer.userID}, members)

	h.disconnect(context.Background(), second)

	got := drain(t, observer)
	require.Equal(t, []string{TypePresenceLeave, TypeOnlineCount}, typesOf(got))
	assert.Equal(t, 1, decodeData[countData](t, got[1]).Count)
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	presence := NewMemoryPresence(30*time.Second, clock)
	h := NewHub(Config{}, store, presence, tokenVerifier)

	c := newTestClient(uuid.New())

	// Not joined yet: ignored.
	dispatch(t, h, c, TypePresenceHeartbeat, boardRef{BoardID: boardID})
	members, err := presence.Members(context.Background(), boardID)
	require.NoError(t, err)
	assert.Empty(t, members)

	dispatch(t, h, c, TypeBoardJoin, boardRef{BoardID: boardID})

	now = now.Add(20 * time.Second)
	dispatch(t, h, c, TypePresenceHeartbeat, boardRef{BoardID: boardID})
	now = now.Add(20 * time.Second)

	members, err = presence.Members(context.Background(), boardID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.userID}, members)

	now = now.Add(20 * time.Second)
	members, err = presence.Members(context.Background(), boardID)
	require.NoError(t, err)
	assert.Empty(t, members, "presence lapses without heartbeats")

	drain(t, c)
	dispatch(t, h, c, TypePresenceHeartbeat, boardRef{BoardID: boardID})
	got := drain(t, c)
	require.Equal(t, []string{TypeOnlineCount}, typesOf(got), "the return is announced to the others")
	assert.Equal(t, 1, decodeData[countData](t, got[0]).Count)
}

// failingPresence fails selected calls of an otherwise working tracker.
type failingPresence struct {
	Presence
	touchErr   error
	membersErr error
}

func (p failingPresence) Touch(ctx context.Context, boardID, userID, connID uuid.UUID) (bool, error) {
	if p.touchErr != nil {
		return false, p.touchErr
	}
	return p.Presence.Touch(ctx, boardID, userID, connID)
}

func (p failingPresence) Members(ctx context.Context, boardID uuid.UUID) ([]uuid.UUID, error) {
	if p.membersErr != nil {
		return nil, p.membersErr
	}
	return p.Presence.Members(ctx, boardID)
}

func TestBoardJoin_PresenceFailureUndoesJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		touchErr   error
		membersErr error
	}{
		{name: "touch fails", touchErr: errors.New("redis down")},
		{name: "members fails", membersErr: errors.New("redis down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			boardID := store.addBoard(t)
			inner := NewMemoryPresence(time.Minute, nil)
			h := NewHub(Config{EchoMutations: true}, store,
				failingPresence{Presence: inner, touchErr: tt.touchErr, membersErr: tt.membersErr}, tokenVerifier)

			c := newTestClient(uuid.New())
			dispatch(t, h, c, TypeBoardJoin, boardRef{BoardID: boardID})

			got := drain(t, c)
			require.Equal(t, []string{TypeError}, typesOf(got))
			assert.Equal(t, "internal error", decodeData[errorData](t, got[0]).Message)

			assert.Empty(t, h.Registry().Members(boardID))
			assert.False(t, c.hasBoard(boardID))
			members, err := inner.Members(context.Background(), boardID)
			require.NoError(t, err)
			assert.Empty(t, members, "presence is rolled back")

			// Board traffic no longer reaches the failed joiner.
			columnID := store.addColumn(t, boardID, "To Do")
			other := newTestClient(uuid.New())
			h.Registry().Join(boardID, other)
			other.addBoard(boardID)
			dispatch(t, h, other, TypeCardCreate, map[string]any{"columnId": columnID, "title": "t"})
			assert.Empty(t, drain(t, c))
		})
	}
}

// ---------------------------------------------------------------------------
// 3. Mutations
// ---------------------------------------------------------------------------

// joinedPair sets up a board with one column and two clients on it.
func joinedPair(t *testing.T, cfg Config) (*Hub, *memStore, uuid.UUID, uuid.UUID, *Client, *Client) {
	t.Helper()

	store := newMemStore()
	boardID := store.addBoard(t)
	columnID := store.addColumn(t, boardID, "To Do")
	h := newTestHub(t, store, cfg)

	a := newTestClient(uuid.New())
	b := newTestClient(uuid.New())
	dispatch(t, h, a, TypeBoardJoin, boardRef{BoardID: boardID})
	dispatch(t, h, b, TypeBoardJoin, boardRef{BoardID: boardID})
	drain(t, a)
	drain(t, b)

	return h, store, boardID, columnID, a, b
}

func TestCardCreate_BroadcastsAndPersists(t *testing.T) {
	t.Parallel()

	h, store, boardID, columnID, a, b := joinedPair(t, Config{EchoMutations: true})

	dispatch(t, h, a, TypeCardCreate, map[string]any{
		"columnId":    columnID,
		"title":       "  <b>Ship</b> it  ",
		"description": "<script>alert(1)</script>notes",
		"labels":      []string{"bug", "<i></i>"},
	})

	for _, c := range []*Client{a, b} {
		got := drain(t, c)
		require.Equal(t, []string{TypeCardCreated}, typesOf(got))

		ev := decodeData[struct {
			BoardID uuid.UUID   `json:"boardId"`
			Card    domain.Card `json:"card"`
		}](t, got[0])
		assert.Equal(t, boardID, ev.BoardID)
		assert.Equal(t, "Ship it", ev.Card.Title)
		require.NotNil(t, ev.Card.Description)
		assert.Equal(t, "notes", *ev.Card.Description)
		assert.Equal(t, []string{"bug"}, ev.Card.Labels)

		stored, ok := store.card(ev.Card.ID)
		require.True(t, ok)
		assert.Equal(t, columnID, stored.ColumnID)
	}

	assert.Equal(t, []string{TypeCardCreated}, store.auditTypes())
}

func TestMutation_EchoDisabledExcludesSender(t *testing.T) {
	t.Parallel()

	h, _, _, columnID, a, b := joinedPair(t, Config{EchoMutations: false})

	dispatch(t, h, a, TypeCardCreate, map[string]any{"columnId": columnID, "title": "t"})

	assert.Empty(t, drain(t, a))
	assert.Equal(t, []string{TypeCardCreated}, typesOf(drain(t, b)))
}

func TestMutation_NotDeliveredToOtherBoards(t *testing.T) {
	t.Parallel()

	h, store, _, columnID, a, _ := joinedPair(t, Config{EchoMutations: true})

	elsewhere := newTestClient(uuid.New())
	dispatch(t, h, elsewhere, TypeBoardJoin, boardRef{BoardID: store.addBoard(t)})
	drain(t, elsewhere)

	dispatch(t, h, a, TypeCardCreate, map[string]any{"columnId": columnID, "title": "t"})

	assert.Empty(t, drain(t, elsewhere))
}

func TestColumnLifecycle(t *testing.T) {
	t.Parallel()

	h, store, boardID, _, a, b := joinedPair(t, Config{EchoMutations: true})

	dispatch(t, h, a, TypeColumnCreate, map[string]any{"boardId": boardID, "name": "Doing", "order": 1})
	got := drain(t, b)
	require.Equal(t, []string{TypeColumnCreated}, typesOf(got))
	col := decodeData[struct {
		Column domain.Column `json:"column"`
	}](t, got[0]).Column
	assert.Equal(t, "Doing", col.Name)
	assert.Equal(t, 1, col.Order)

	dispatch(t, h, a, TypeColumnUpdate, map[string]any{
		"columnId": col.ID,
		"updates":  map[string]any{"name": "In progress", "order": 0},
	})
	got = drain(t, b)
	require.Equal(t, []string{TypeColumnUpdated}, typesOf(got))
	updated := decodeData[struct {
		Column domain.Column `json:"column"`
	}](t, got[0]).Column
	assert.Equal(t, "In progress", updated.Name)
	assert.Equal(t, 0, updated.Order)

	cardID := store.addCard(t, col.ID, "inside")

	dispatch(t, h, a, TypeColumnDelete, map[string]any{"columnId": col.ID})
	got = drain(t, b)
	require.Equal(t, []string{TypeColumnDeleted}, typesOf(got))
	deleted := decodeData[struct {
		BoardID  uuid.UUID `json:"boardId"`
		ColumnID uuid.UUID `json:"columnId"`
	}](t, got[0])
	assert.Equal(t, boardID, deleted.BoardID)
	assert.Equal(t, col.ID, deleted.ColumnID)

	_, ok := store.card(cardID)
	assert.False(t, ok, "cards go with their column")

	assert.Equal(t, []string{TypeColumnCreated, TypeColumnUpdated, TypeColumnDeleted}, store.auditTypes())
	assert.Len(t, drain(t, a), 3, "sender receives its own echoes")
}

func TestCardUpdateAndDelete(t *testing.T) {
	t.Parallel()

	h, store, boardID, columnID, a, b := joinedPair(t, Config{EchoMutations: true})
	cardID := store.addCard(t, columnID, "draft")

	dispatch(t, h, a, TypeCardUpdate, map[string]any{
		"cardId":  cardID,
		"updates": map[string]any{"title": "final", "labels": []string{"p1"}},
	})
	got := drain(t, b)
	require.Equal(t, []string{TypeCardUpdated}, typesOf(got))
	card := decodeData[struct {
		Card domain.Card `json:"card"`
	}](t, got[0]).Card
	assert.Equal(t, "final", card.Title)
	assert.Equal(t, []string{"p1"}, card.Labels)

	dispatch(t, h, a, TypeCardDelete, map[string]any{"cardId": cardID})
	got = drain(t, b)
	require.Equal(t, []string{TypeCardDeleted}, typesOf(got))
	ev := decodeData[struct {
		BoardID  uuid.UUID `json:"boardId"`
		CardID   uuid.UUID `json:"cardId"`
		ColumnID uuid.UUID `json:"columnId"`
	}](t, got[0])
	assert.Equal(t, boardID, ev.BoardID)
	assert.Equal(t, cardID, ev.CardID)
	assert.Equal(t, columnID, ev.ColumnID)

	_, ok := store.card(cardID)
	assert.False(t, ok)
}

func TestCardMove(t *testing.T) {
	t.Parallel()

	t.Run("within board", func(t *testing.T) {
		t.Parallel()

		h, store, boardID, columnID, a, b := joinedPair(t, Config{EchoMutations: true})
		target := store.addColumn(t, boardID, "Done")
		cardID := store.addCard(t, columnID, "task")

		dispatch(t, h, a, TypeCardMove, map[string]any{"cardId": cardID, "newColumnId": target, "newOrder": 0})

		got := drain(t, b)
		require.Equal(t, []string{TypeCardMoved}, typesOf(got))
		ev := decodeData[struct {
			Card        domain.Card `json:"card"`
			OldColumnID uuid.UUID   `json:"oldColumnId"`
			NewColumnID uuid.UUID   `json:"newColumnId"`
		}](t, got[0])
		assert.Equal(t, columnID, ev.OldColumnID)
		assert.Equal(t, target, ev.NewColumnID)
		assert.Equal(t, target, ev.Card.ColumnID)
		require.NotNil(t, ev.Card.Order)
		assert.Equal(t, 0, *ev.Card.Order)

		stored, _ := store.card(cardID)
		assert.Equal(t, target, stored.ColumnID)
	})

	t.Run("across boards is rejected", func(t *testing.T) {
		t.Parallel()

		h, store, _, columnID, a, b := joinedPair(t, Config{EchoMutations: true})
		foreign := store.addColumn(t, store.addBoard(t), "Elsewhere")
		cardID := store.addCard(t, columnID, "task")

		dispatch(t, h, a, TypeCardMove, map[string]any{"cardId": cardID, "newColumnId": foreign, "newOrder": 0})

		assert.Empty(t, drain(t, a))
		assert.Empty(t, drain(t, b))
		stored, _ := store.card(cardID)
		assert.Equal(t, columnID, stored.ColumnID)
		assert.Nil(t, stored.Order)
		assert.Empty(t, store.auditTypes())
	})

	t.Run("origin is the column the card actually left", func(t *testing.T) {
		t.Parallel()

		h, store, boardID, columnID, a, b := joinedPair(t, Config{EchoMutations: true})
		review := store.addColumn(t, boardID, "Review")
		done := store.addColumn(t, boardID, "Done")
		cardID := store.addCard(t, columnID, "task")

		// Another connection's move lands just before this one is applied.
		store.cardsRepo = contendedCards{
			memCards: memCards{store},
			before: func() {
				_, err := memCards{store}.Move(context.Background(), cardID, review, 0)
				require.NoError(t, err)
			},
		}

		dispatch(t, h, a, TypeCardMove, map[string]any{"cardId": cardID, "newColumnId": done, "newOrder": 1})

		got := drain(t, b)
		require.Equal(t, []string{TypeCardMoved}, typesOf(got))
		ev := decodeData[struct {
			OldColumnID uuid.UUID `json:"oldColumnId"`
			NewColumnID uuid.UUID `json:"newColumnId"`
		}](t, got[0])
		assert.Equal(t, review, ev.OldColumnID)
		assert.Equal(t, done, ev.NewColumnID)
	})

	t.Run("unknown card", func(t *testing.T) {
		t.Parallel()

		h, _, _, columnID, a, b := joinedPair(t, Config{EchoMutations: true})

		dispatch(t, h, a, TypeCardMove, map[string]any{"cardId": uuid.New(), "newColumnId": columnID, "newOrder": 0})

		got := drain(t, a)
		require.Equal(t, []string{TypeError}, typesOf(got))
		assert.Equal(t, "not found", decodeData[errorData](t, got[0]).Message)
		assert.Empty(t, drain(t, b))
	})
}

// contendedCards runs before ahead of every Move, standing in for a write
// from another connection that wins the race.
type contendedCards struct {
	memCards
	before func()
}

func (r contendedCards) Move(ctx context.Context, id, columnID uuid.UUID, order int) (*domain.CardMove, error) {
	r.before()
	return r.memCards.Move(ctx, id, columnID, order)
}

func TestMutation_AuditFailureStillBroadcasts(t *testing.T) {
	t.Parallel()

	h, store, _, columnID, a, b := joinedPair(t, Config{})
	store.auditErr = errors.New("disk full")

	dispatch(t, h, a, TypeCardCreate, map[string]any{"columnId": columnID, "title": "t"})

	assert.Equal(t, []string{TypeCardCreated}, typesOf(drain(t, b)))
	assert.Empty(t, drain(t, a), "no error reply for a failed audit write")
}

// ---------------------------------------------------------------------------
// 4. Rejected input
// ---------------------------------------------------------------------------

func TestDispatch_DropsInvalidMessages(t *testing.T) {
	t.Parallel()

	h, _, boardID, columnID, a, b := joinedPair(t, Config{EchoMutations: true})

	raw := [][]byte{
		[]byte("not json"),
		[]byte(`{"data":{}}`),
		[]byte(`{"type":"board:explode","data":{}}`),
		encode(t, TypeCardCreate, nil),
		encode(t, TypeCardCreate, map[string]any{"columnId": columnID}),
		encode(t, TypeCardCreate, map[string]any{"columnId": columnID, "title": "<p></p>"}),
		encode(t, TypeColumnCreate, map[string]any{"boardId": boardID, "name": "no order"}),
		encode(t, TypeColumnUpdate, map[string]any{"columnId": columnID, "updates": map[string]any{}}),
		encode(t, TypeColumnUpdate, map[string]any{"columnId": columnID, "updates": map[string]any{"name": " "}}),
		encode(t, TypeCardMove, map[string]any{"cardId": uuid.New(), "newColumnId": columnID}),
		encode(t, TypeBoardLeave, map[string]any{"boardId": uuid.New()}),
		encode(t, TypeBoardJoin, map[string]any{"boardId": "not-a-uuid"}),
	}

	for _, msg := range raw {
		h.dispatch(context.Background(), a, msg)
	}

	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
}

func TestHandle_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	boardID := store.addBoard(t)
	h := newTestHub(t, store, Config{})

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(context.Background(), conn, uuid.NewString())
	}()

	require.Equal(t, TypeConnectionAck, conn.next(t).Type)

	conn.in <- []byte("not json")
	conn.push(t, TypeBoardJoin, boardRef{BoardID: boardID})

	state := conn.next(t)
	require.Equal(t, TypePresenceState, state.Type, "no reply to the malformed frame")
	assert.Empty(t, decodeData[presenceStateData](t, state).Users)
	assert.Equal(t, TypeOnlineCount, conn.next(t).Type)

	select {
	case <-done:
		t.Fatal("session ended after a malformed frame")
	default:
	}
	assert.Equal(t, websocket.StatusCode(-1), conn.closeCode())
	assert.Len(t, h.Registry().Members(boardID), 1)

	require.NoError(t, conn.CloseNow())
	<-done
}

type panickingBoards struct{ domain.BoardRepository }

func (panickingBoards) GetByID(context.Context, uuid.UUID) (*domain.Board, error) {
	panic("boom")
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.boardsRepo = panickingBoards{}
	h := newTestHub(t, store, Config{})
	c := newTestClient(uuid.New())

	require.NotPanics(t, func() {
		dispatch(t, h, c, TypeBoardJoin, boardRef{BoardID: uuid.New()})
	})

	got := drain(t, c)
	require.Equal(t, []string{TypeError}, typesOf(got))
	msg := decodeData[errorData](t, got[0]).Message
	assert.Equal(t, "internal error", msg)
	assert.False(t, strings.Contains(msg, "boom"))
}
