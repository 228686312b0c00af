package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/config"
	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
	"github.com/kitbuilder587/imagen-bot/internal/photo/unsplash"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "imagen",
		Usage: "find a photo for a text description",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "search a random photo for the prompt and save it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "prompt",
						Aliases:  []string{"p"},
						Usage:    "image description",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "output file; extension follows the image format when empty",
					},
					&cli.StringFlag{
						Name:  "orientation",
						Usage: "landscape, portrait or squarish",
					},
				},
				Action: generate,
			},
		},
	}
}

func generate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	orientation := cfg.Unsplash.Orientation
	if o := c.String("orientation"); o != "" {
		if !photo.IsValidOrientation(o) {
			return config.ErrInvalidOrientation
		}
		orientation = o
	}

	prompt := domain.NormalizePrompt(c.String("prompt"))
	if err := domain.ValidatePrompt(prompt); err != nil {
		return err
	}

	client := unsplash.New(unsplash.Config{
		AccessKey:   cfg.Unsplash.AccessKey,
		BaseURL:     cfg.Unsplash.BaseURL,
		Timeout:     cfg.Unsplash.Timeout,
		Orientation: orientation,
	}, logger)

	ctx, cancel := context.WithTimeout(c.Context, cfg.Generation.Timeout)
	defer cancel()

	res := <-photo.Go(ctx, client, prompt)
	if res.Err != nil {
		return res.Err
	}
	img := res.Image

	out := c.String("out")
	if out == "" {
		out = "image." + img.Format
	}
	if err := os.WriteFile(out, img.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Debug("image saved", zap.String("path", out), zap.String("source", img.SourceURL))
	fmt.Fprintf(c.App.Writer, "%s %dx%d %d bytes\n", out, img.Width, img.Height, img.Size())
	return nil
}
