package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/imagen-bot/internal/config"
	"github.com/kitbuilder587/imagen-bot/internal/inflight"
	"github.com/kitbuilder587/imagen-bot/internal/metrics"
	"github.com/kitbuilder587/imagen-bot/internal/photo/unsplash"
	"github.com/kitbuilder587/imagen-bot/internal/repository/postgres"
	"github.com/kitbuilder587/imagen-bot/internal/service"
	"github.com/kitbuilder587/imagen-bot/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	m := metrics.New()

	photoClient := unsplash.New(unsplash.Config{
		AccessKey:   cfg.Unsplash.AccessKey,
		BaseURL:     cfg.Unsplash.BaseURL,
		Timeout:     cfg.Unsplash.Timeout,
		Orientation: cfg.Unsplash.Orientation,
	}, logger.Named("unsplash"))

	userSvc := service.NewUserService(postgres.NewUserRepo(db), logger)
	imageSvc := service.NewImageService(service.ImageServiceDeps{
		Photo:   photoClient,
		Guard:   inflight.New(),
		History: postgres.NewGenerationRepo(db),
		Metrics: m,
		Logger:  logger,
		Config: service.ImageConfig{
			Timeout:      cfg.Generation.Timeout,
			HistoryLimit: cfg.Generation.HistoryLimit,
		},
	})

	bot, err := telegram.New(telegram.BotConfig{
		Token: cfg.Telegram.Token,
		Debug: cfg.Telegram.Debug,
	}, userSvc, imageSvc, logger, m)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot: %w", err)
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
