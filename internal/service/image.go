package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/inflight"
	"github.com/kitbuilder587/imagen-bot/internal/metrics"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
	"github.com/kitbuilder587/imagen-bot/internal/repository"
)

const (
	defaultGenerationTimeout = 90 * time.Second
	defaultHistoryLimit      = 10
	historyWriteTimeout      = 5 * time.Second
)

type ImageService interface {
	Generate(ctx context.Context, userID int64, prompt string) (*photo.Image, error)
	// Busy reports whether the user already has a generation running.
	Busy(userID int64) bool
	// History returns the newest generations and the user's total count.
	History(ctx context.Context, userID int64, limit int) ([]domain.Generation, int, error)
}

type ImageConfig struct {
	Timeout      time.Duration
	HistoryLimit int
}

// ImageServiceDeps - зависимости ImageService. History и Metrics опциональны.
type ImageServiceDeps struct {
	Photo   photo.Client
	Guard   *inflight.Guard
	History repository.GenerationRepository
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Config  ImageConfig
}

type imageService struct {
	photo   photo.Client
	guard   *inflight.Guard
	history repository.GenerationRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	config  ImageConfig
}

func NewImageService(deps ImageServiceDeps) ImageService {
	cfg := deps.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerationTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	guard := deps.Guard
	if guard == nil {
		guard = inflight.New()
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &imageService{
		photo:   deps.Photo,
		guard:   guard,
		history: deps.History,
		metrics: deps.Metrics,
		logger:  logger,
		config:  cfg,
	}
}

// Generate runs one search+download for the user. A user may have only one
// generation running; the photo outcome is returned as is.
func (s *imageService) Generate(ctx context.Context, userID int64, prompt string) (*photo.Image, error) {
	prompt = domain.NormalizePrompt(prompt)
	if err := domain.ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	release, ok := s.guard.TryAcquire(userID)
	if !ok {
		s.rejectBusy(userID)
		return nil, domain.ErrGenerationInProgress
	}
	s.reportInFlight()
	defer func() {
		release()
		s.reportInFlight()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	img, err := s.photo.RandomImage(ctx, prompt)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	if s.metrics != nil {
		size := 0
		if img != nil {
			size = img.Size()
		}
		s.metrics.RecordPhotoRequest(outcome, elapsed, size)
	}

	if err != nil {
		s.logger.Warn("image generation failed",
			zap.Int64("user_id", userID),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		s.logger.Info("image generated",
			zap.Int64("user_id", userID),
			zap.String("format", img.Format),
			zap.Int("bytes", img.Size()),
			zap.Duration("elapsed", elapsed),
		)
	}

	s.record(ctx, userID, prompt, img, err, elapsed)

	return img, err
}

func (s *imageService) Busy(userID int64) bool {
	if !s.guard.InFlight(userID) {
		return false
	}
	s.rejectBusy(userID)
	return true
}

func (s *imageService) History(ctx context.Context, userID int64, limit int) ([]domain.Generation, int, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	if limit <= 0 || limit > s.config.HistoryLimit {
		limit = s.config.HistoryLimit
	}

	gens, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.history.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return gens, total, nil
}

func (s *imageService) rejectBusy(userID int64) {
	fields := []zap.Field{zap.Int64("user_id", userID)}
	if started, ok := s.guard.StartedAt(userID); ok {
		fields = append(fields, zap.Duration("running_for", time.Since(started)))
	}
	s.logger.Info("generation rejected, previous one still running", fields...)

	if s.metrics != nil {
		s.metrics.RecordBusyRejection()
	}
}

func (s *imageService) reportInFlight() {
	if s.metrics != nil {
		s.metrics.SetGenerationsInFlight(s.guard.Count())
	}
}

// record stores the attempt. A storage failure is logged and never
// changes what Generate returns.
func (s *imageService) record(ctx context.Context, userID int64, prompt string, img *photo.Image, genErr error, elapsed time.Duration) {
	if s.history == nil {
		return
	}

	gen := &domain.Generation{
		UserID:   userID,
		Prompt:   prompt,
		Status:   domain.GenerationSucceeded,
		Duration: elapsed,
	}
	if genErr != nil {
		gen.Status = domain.GenerationFailed
		gen.ErrorKind = outcomeOf(genErr)
		gen.ErrorMessage = genErr.Error()
	} else if img != nil {
		gen.ImageURL = img.SourceURL
		gen.Width = img.Width
		gen.Height = img.Height
	}

	if err := gen.Validate(); err != nil {
		s.logger.Error("refusing to store invalid generation", zap.Error(err), zap.Int64("user_id", userID))
		if s.metrics != nil {
			s.metrics.RecordHistoryWriteError()
		}
		return
	}

	// the request context may already be done (timeout), history still gets written
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.history.Create(wctx, gen); err != nil {
		s.logger.Error("failed to store generation", zap.Error(err), zap.Int64("user_id", userID))
		if s.metrics != nil {
			s.metrics.RecordHistoryWriteError()
		}
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if kind := photo.KindOf(err); kind != 0 {
		return kind.String()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return photo.KindNetworkError.String()
	}
	return "unknown"
}
