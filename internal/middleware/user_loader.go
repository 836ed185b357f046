package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/fitcoach/internal/domain"
)

type ctxKey string

const ProfileKey ctxKey = "profile"

// ProfileFinder resolves a Telegram account to its coaching profile.
type ProfileFinder interface {
	GetProfileByTelegramID(ctx context.Context, telegramID int64) (*domain.Profile, error)
}

// GetProfile extracts the coaching profile from context.
func GetProfile(ctx context.Context) *domain.Profile {
	p, ok := ctx.Value(ProfileKey).(*domain.Profile)
	if !ok {
		return nil
	}
	return p
}

// WithProfile stores p in ctx.
func WithProfile(ctx context.Context, p *domain.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, p)
}

// UserLoader returns middleware that loads the sender's profile into context.
// Unknown senders pass through without one.
func UserLoader(profiles ProfileFinder) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			if update.Message != nil {
				from = update.Message.From
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			profile, err := profiles.GetProfileByTelegramID(ctx, from.ID)
			switch {
			case err == nil:
				ctx = WithProfile(ctx, profile)
			case !errors.Is(err, domain.ErrNotFound):
				slog.Error("load profile", "telegram_id", from.ID, "error", err)
			}

			next(ctx, b, update)
		}
	}
}
