package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/repository"
)

type UserService interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*domain.User, error)
	// Get returns domain.ErrUserNotFound for users that never talked to the bot.
	Get(ctx context.Context, telegramID int64) (*domain.User, error)
}

type userService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

func (s *userService) GetOrCreate(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	user, err := s.repo.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		s.logger.Error("failed to upsert user",
			zap.Error(err),
			zap.Int64("telegram_id", telegramID),
		)
		return nil, fmt.Errorf("user %d: %w", telegramID, err)
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, telegramID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error("failed to load user",
				zap.Error(err),
				zap.Int64("telegram_id", telegramID),
			)
		}
		return nil, fmt.Errorf("user %d: %w", telegramID, err)
	}
	return user, nil
}
