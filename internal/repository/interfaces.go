package repository

import (
	"context"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
)

type UserRepository interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// GenerationRepository - история генераций юзера
type GenerationRepository interface {
	Create(ctx context.Context, gen *domain.Generation) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Generation, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}
