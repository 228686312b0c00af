package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/metrics"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
	"github.com/kitbuilder587/imagen-bot/internal/service"
)

const (
	// chat actions expire after ~5s on the client side
	actionRefreshInterval = 4 * time.Second
	updatesTimeout        = 60 * time.Second
)

var errUpdatesClosed = errors.New("telegram update stream closed")

type BotConfig struct {
	Token string
	Debug bool
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api          botAPI
	userService  service.UserService
	imageService service.ImageService
	logger       *zap.Logger
	metrics      *metrics.Metrics
	handler      *Handler
	wg           sync.WaitGroup
}

func New(cfg BotConfig, userSvc service.UserService, imageSvc service.ImageService, logger *zap.Logger, m *metrics.Metrics) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Debug

	bot := &Bot{
		api:          api,
		userService:  userSvc,
		imageService: imageSvc,
		logger:       logger,
		metrics:      m,
	}

	bot.handler = NewHandler(bot)

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
	)

	return bot, nil
}

// Run serves updates until ctx is cancelled or the update stream ends.
// Messages are handled concurrently; Run waits for the running handlers
// before it returns.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(updatesTimeout / time.Second)

	updates := b.api.GetUpdatesChan(cfg)
	defer b.drain()

	b.logger.Info("listening for telegram updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("telegram update stream closed")
				return errUpdatesClosed
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.dispatch(ctx, update.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.serve(ctx, msg)
	}()
}

func (b *Bot) drain() {
	b.wg.Wait()
	b.logger.Info("in-flight messages handled")
}

// serve handles one message and records it as a command or a prompt.
// A panicking handler is recorded with the "panic" status.
func (b *Bot) serve(ctx context.Context, msg *tgbotapi.Message) {
	kind := messageKind(msg)
	status := "panic"
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("message handler panicked",
				zap.Any("panic", r),
				zap.String("kind", kind),
				zap.Int64("user_id", msg.From.ID),
			)
		}
		if b.metrics != nil {
			b.metrics.RecordRequest(kind, status, time.Since(start))
		}
	}()

	b.handler.HandleMessage(ctx, msg)
	status = "processed"
}

func messageKind(msg *tgbotapi.Message) string {
	if msg.IsCommand() && msg.Command() != "imagine" {
		return "command"
	}
	return "prompt"
}

func (b *Bot) Send(chatID int64, text string) error {
	if b.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// SendPhoto uploads the image bytes with the prompt as caption.
func (b *Bot) SendPhoto(chatID int64, img *photo.Image, caption string) error {
	if b.api == nil {
		return nil
	}
	file := tgbotapi.FileBytes{
		Name:  "image." + img.Format,
		Bytes: img.Data,
	}
	msg := tgbotapi.NewPhoto(chatID, file)
	msg.Caption = caption
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendAction(chatID int64, action string) {
	if b.api == nil {
		return
	}
	b.api.Send(tgbotapi.NewChatAction(chatID, action))
}

// KeepAction repeats the chat action until stop is called.
func (b *Bot) KeepAction(ctx context.Context, chatID int64, action string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	b.SendAction(chatID, action)

	go func() {
		defer close(done)
		ticker := time.NewTicker(actionRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.SendAction(chatID, action)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
