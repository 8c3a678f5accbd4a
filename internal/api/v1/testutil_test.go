package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyUserID, userID)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	boards  domain.BoardRepository
	columns domain.ColumnRepository
	cards   domain.CardRepository
	audit   domain.AuditRepository
}

func (m *mockDataStore) Boards() domain.BoardRepository   { return m.boards }
func (m *mockDataStore) Columns() domain.ColumnRepository { return m.columns }
func (m *mockDataStore) Cards() domain.CardRepository     { return m.cards }
func (m *mockDataStore) Audit() domain.AuditRepository    { return m.audit }

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc  func(ctx context.Context, b *domain.Board) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	listFunc    func(ctx context.Context, limit, offset int) ([]*domain.Board, error)
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.Board) error {
	return m.createFunc(ctx, b)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) List(ctx context.Context, limit, offset int) ([]*domain.Board, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ColumnRepository
// ---------------------------------------------------------------------------

type mockColumnRepo struct {
	domain.ColumnRepository

	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error)
}

func (m *mockColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	return m.listByBoardFunc(ctx, boardID)
}

// ---------------------------------------------------------------------------
// Mock CardRepository
// ---------------------------------------------------------------------------

type mockCardRepo struct {
	domain.CardRepository

	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Card, error)
}

func (m *mockCardRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Card, error) {
	return m.listByBoardFunc(ctx, boardID)
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	domain.AuditRepository

	listByBoardFunc func(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) ListByBoard(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	return m.listByBoardFunc(ctx, boardID, limit)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, email, password, name string) (*domain.User, error)
	loginFunc        func(ctx context.Context, email, password string) (string, string, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}
