package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/fitcoach/internal/coach"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/domain"
	"github.com/set-night/fitcoach/internal/middleware"
	tg "github.com/set-night/fitcoach/internal/telegram"
)

// HandleTextPrivate passes a private text message to the coaching engine
// and delivers the paced reply.
func (h *Handler) HandleTextPrivate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}

	msg := update.Message

	// Skip commands
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	chatID := msg.Chat.ID

	profile := middleware.GetProfile(ctx)
	if profile == nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   config.UnknownUserNotice,
		})
		return
	}

	stopTyping := tg.StartTyping(ctx, b, chatID)
	reply, err := h.engine.Handle(ctx, profile.ID, msg.Text)
	stopTyping()

	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			return
		}
		if notice := rejectionNotice(err); notice != "" {
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   notice,
			})
			return
		}
		slog.Error("handle message", "user_id", profile.ID, "error", err)
		return
	}

	switch {
	case reply.Outcome == coach.OutcomeUpstreamFailure:
		h.tgLogger.LogUpstream(profile.ID)
	case !reply.Persisted:
		h.tgLogger.LogNotPersisted(profile.ID, len(reply.Turns))
	}

	if err := tg.SendSegments(ctx, b, chatID, reply.Segments); err != nil {
		slog.Warn("paced delivery interrupted", "user_id", profile.ID, "error", err)
	}
}

// rejectionNotice maps a refused message to what the user is told.
func rejectionNotice(err error) string {
	var cd *coach.CooldownError
	switch {
	case errors.As(err, &cd):
		return fmt.Sprintf(config.CooldownNotice, cd.Seconds())
	case errors.Is(err, domain.ErrBusy):
		return config.BusyNotice
	}
	return ""
}
