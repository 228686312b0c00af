package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/kitbuilder587/imagen-bot/internal/photo"
)

var (
	ErrMissingToken       = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrMissingDB          = errors.New("DATABASE_URL is required")
	ErrMissingAccessKey   = errors.New("UNSPLASH_ACCESS_KEY is required")
	ErrInvalidOrientation = errors.New("UNSPLASH_ORIENTATION must be landscape, portrait or squarish")
	ErrInvalidTimeout     = errors.New("timeouts must be positive")
)

type Config struct {
	Telegram   TelegramConfig
	Database   DatabaseConfig
	Unsplash   UnsplashConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Generation GenerationConfig
}

type TelegramConfig struct {
	Token string `env:"TELEGRAM_BOT_TOKEN"`
	Debug bool   `env:"TELEGRAM_DEBUG"`
}

type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

type UnsplashConfig struct {
	AccessKey   string        `env:"UNSPLASH_ACCESS_KEY"`
	BaseURL     string        `env:"UNSPLASH_BASE_URL"`
	Timeout     time.Duration `env:"UNSPLASH_TIMEOUT"`
	Orientation string        `env:"UNSPLASH_ORIENTATION"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"` // json|console
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR"` // пусто - не поднимаем
}

type GenerationConfig struct {
	Timeout      time.Duration `env:"GENERATION_TIMEOUT"`
	HistoryLimit int           `env:"HISTORY_LIMIT"`
}

func Defaults() *Config {
	return &Config{
		Unsplash: UnsplashConfig{
			BaseURL:     "https://api.unsplash.com",
			Timeout:     30 * time.Second,
			Orientation: photo.OrientationSquarish,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Generation: GenerationConfig{
			Timeout:      90 * time.Second,
			HistoryLimit: 10,
		},
	}
}

// Load reads an optional .env, then the environment, on top of Defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks what every entry point needs.
func (c *Config) Validate() error {
	if c.Unsplash.AccessKey == "" {
		return ErrMissingAccessKey
	}
	if !photo.IsValidOrientation(c.Unsplash.Orientation) {
		return ErrInvalidOrientation
	}
	if c.Unsplash.Timeout <= 0 || c.Generation.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// ValidateBot adds the requirements of the telegram bot.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Database.URL == "" {
		return ErrMissingDB
	}
	return nil
}
