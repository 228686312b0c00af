package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
)

type GenerationRepo struct {
	db *DB
}

func NewGenerationRepo(db *DB) *GenerationRepo {
	return &GenerationRepo{db: db}
}

func (r *GenerationRepo) Create(ctx context.Context, gen *domain.Generation) error {
	query := `
		INSERT INTO generations
			(user_id, prompt, status, error_kind, error_message, image_url, width, height, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		gen.UserID,
		gen.Prompt,
		string(gen.Status),
		gen.ErrorKind,
		gen.ErrorMessage,
		gen.ImageURL,
		gen.Width,
		gen.Height,
		gen.Duration.Milliseconds(),
	).Scan(&gen.ID, &gen.CreatedAt)
	if err != nil {
		return fmt.Errorf("create generation: %w", err)
	}
	return nil
}

func (r *GenerationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Generation, error) {
	query := `
		SELECT id, user_id, prompt, status, error_kind, error_message, image_url, width, height, duration_ms, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	return scanGenerations(rows)
}

func (r *GenerationRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return n, nil
}

func scanGenerations(rows pgx.Rows) ([]domain.Generation, error) {
	var result []domain.Generation
	for rows.Next() {
		var (
			g          domain.Generation
			status     string
			durationMS int64
		)
		err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.Prompt,
			&status,
			&g.ErrorKind,
			&g.ErrorMessage,
			&g.ImageURL,
			&g.Width,
			&g.Height,
			&durationMS,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Status = domain.GenerationStatus(status)
		g.Duration = time.Duration(durationMS) * time.Millisecond
		result = append(result, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
