package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/middleware"
	"github.com/set-night/fitcoach/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	chatID := update.Message.Chat.ID

	profile := middleware.GetProfile(ctx)
	if profile == nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   config.UnknownUserNotice,
		})
		return
	}

	name := profile.FirstName
	if name == "" && update.Message.From != nil {
		name = update.Message.From.FirstName
	}

	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        fmt.Sprintf(config.WelcomeText, telegram.EscapeMarkdown(name)),
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: telegram.ResetKeyboard(),
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err)
		params.Text = strings.ReplaceAll(fmt.Sprintf(config.WelcomeText, name), "*", "")
		params.ParseMode = ""
		b.SendMessage(ctx, params)
	}
}
