package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/domain"
	"github.com/set-night/fitcoach/internal/middleware"
)

func (h *Handler) handleReset(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   h.reset(ctx),
	})
}

func (h *Handler) handleResetCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            h.reset(ctx),
	})
}

// reset clears the sender's conversation and returns the notice to show.
func (h *Handler) reset(ctx context.Context) string {
	profile := middleware.GetProfile(ctx)
	if profile == nil {
		return config.UnknownUserNotice
	}

	err := h.engine.Reset(ctx, profile.ID)
	switch {
	case err == nil:
		return config.ResetNotice
	case errors.Is(err, domain.ErrBusy):
		return config.BusyNotice
	default:
		slog.Error("reset conversation", "user_id", profile.ID, "error", err)
		h.tgLogger.LogError(err, "reset conversation")
		return config.ResetFailureNotice
	}
}
