package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
)

type MockUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*domain.User // key: TelegramID
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[int64]*domain.User),
	}
}

func (m *MockUserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, exists := m.users[telegramID]; exists {
		user.Username = username
		cp := *user
		return &cp, nil
	}

	user := &domain.User{
		ID:         telegramID,
		TelegramID: telegramID,
		Username:   username,
		CreatedAt:  time.Now(),
	}
	m.users[telegramID] = user
	cp := *user
	return &cp, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, exists := m.users[id]; exists {
		cp := *user
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

type MockGenerationRepository struct {
	mu     sync.RWMutex
	items  []domain.Generation
	nextID int64

	// CreateErr, when set, is returned by Create.
	CreateErr error
}

func NewMockGenerationRepository() *MockGenerationRepository {
	return &MockGenerationRepository{nextID: 1}
}

func (m *MockGenerationRepository) Create(ctx context.Context, gen *domain.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}

	gen.ID = m.nextID
	m.nextID++
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now()
	}
	m.items = append(m.items, *gen)
	return nil
}

func (m *MockGenerationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Generation
	for _, g := range m.items {
		if g.UserID == userID {
			result = append(result, g)
		}
	}

	// newest first, same as the postgres ORDER BY
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockGenerationRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cnt := 0
	for _, g := range m.items {
		if g.UserID == userID {
			cnt++
		}
	}
	return cnt, nil
}
