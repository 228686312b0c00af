package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
)

const (
	msgInternalError  = "Something went wrong. Please try again later."
	msgEmptyPrompt    = "Please enter an image description"
	msgBusy           = "Still working on your previous image…"
	msgUnknownCommand = "Unknown command. Use /help to see what I can do."
	msgEmptyAPIError  = "The photo service returned an error without details."
	msgNoHistory      = "No images yet. Send a description to get one."
)

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if msg.IsCommand() && msg.Command() != "imagine" {
		h.handleCommand(ctx, msg)
		return
	}
	h.handlePrompt(ctx, msg)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	default:
		h.bot.Send(msg.Chat.ID, msgUnknownCommand)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.bot.userService.GetOrCreate(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		h.bot.logger.Error("failed to create user", zap.Error(err))
		h.bot.Send(msg.Chat.ID, msgInternalError)
		return
	}

	h.bot.Send(msg.Chat.ID, fmt.Sprintf(
		"Hi, %s! Describe an image and I will find a matching photo.\n\nUse /help to see the available commands.",
		user.DisplayName(),
	))
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	helpText := `<b>Available commands:</b>

/start - Register
/help - Show this help
/imagine text - Find a photo for the description
/history - Your recent images

<b>How to use:</b>
Just send a short description, for example "mountain lake at dawn".
Latin letters, digits, spaces and . , ! ? - are accepted, up to 200 characters.
One image at a time: wait for the previous one before sending a new prompt.`

	h.bot.Send(msg.Chat.ID, helpText)
}

func (h *Handler) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.bot.userService.Get(ctx, msg.From.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		h.bot.Send(msg.Chat.ID, msgNoHistory)
		return
	}
	if err != nil {
		h.bot.Send(msg.Chat.ID, msgInternalError)
		return
	}

	gens, total, err := h.bot.imageService.History(ctx, user.ID, 0)
	if err != nil {
		h.bot.logger.Error("failed to list generations", zap.Error(err))
		h.bot.Send(msg.Chat.ID, msgInternalError)
		return
	}

	if len(gens) == 0 {
		h.bot.Send(msg.Chat.ID, msgNoHistory)
		return
	}

	for _, m := range SplitMessage(FormatHistory(gens, total), maxMessageLen) {
		if err := h.bot.Send(msg.Chat.ID, m); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

func (h *Handler) handlePrompt(ctx context.Context, msg *tgbotapi.Message) {
	prompt, ok := ParsePromptCommand(msg.Text)
	if !ok {
		h.bot.Send(msg.Chat.ID, msgUnknownCommand)
		return
	}

	user, err := h.bot.userService.GetOrCreate(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		h.bot.Send(msg.Chat.ID, msgInternalError)
		return
	}

	// no upload action for a request that would be rejected anyway
	if h.bot.imageService.Busy(user.ID) {
		h.bot.Send(msg.Chat.ID, msgBusy)
		return
	}

	img, err := h.generate(ctx, msg.Chat.ID, user.ID, prompt)

	if err != nil {
		if !errors.Is(err, domain.ErrGenerationInProgress) {
			h.bot.logger.Warn("generation failed",
				zap.Error(err),
				zap.Int64("user_id", user.ID),
			)
		}
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	if err := h.bot.SendPhoto(msg.Chat.ID, img, prompt); err != nil {
		h.bot.logger.Error("failed to send photo",
			zap.Error(err),
			zap.String("format", img.Format),
			zap.Int("bytes", img.Size()),
		)
		h.bot.Send(msg.Chat.ID, "Could not send the image. Please try again.")
	}
}

func (h *Handler) generate(ctx context.Context, chatID, userID int64, prompt string) (*photo.Image, error) {
	stop := h.bot.KeepAction(ctx, chatID, tgbotapi.ChatUploadPhoto)
	defer stop()

	return h.bot.imageService.Generate(ctx, userID, prompt)
}

func mapErrorToMessage(err error) string {
	var perr *photo.Error
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		return msgEmptyPrompt
	case errors.Is(err, domain.ErrPromptTooLong):
		return fmt.Sprintf("The description is too long. Maximum %d characters.", domain.MaxPromptLength)
	case errors.Is(err, domain.ErrGenerationInProgress):
		return msgBusy
	case errors.As(err, &perr):
		// photo errors are shown as is
		if text := perr.Error(); text != "" {
			return html.EscapeString(text)
		}
		return msgEmptyAPIError
	default:
		return msgInternalError
	}
}
