package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/fitcoach/internal/config"
)

// Limiter counts messages per chat in fixed windows.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[int64]*bucket
}

type bucket struct {
	start time.Time
	count int
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window, buckets: make(map[int64]*bucket)}
}

// Allow records one message for chatID and reports whether it is within
// the limit. A non-positive limit disables the check.
func (l *Limiter) Allow(chatID int64, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[chatID]
	if !ok || now.Sub(b.start) >= l.window {
		if len(l.buckets) > 4096 {
			l.prune(now)
		}
		b = &bucket{start: now}
		l.buckets[chatID] = b
	}
	b.count++
	return b.count <= l.limit
}

func (l *Limiter) prune(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.start) >= l.window {
			delete(l.buckets, id)
		}
	}
}

// RateLimit returns middleware that enforces per-minute rate limits.
// Admins are exempt.
func RateLimit(limiter *Limiter, cfg interface{ IsAdmin(int64) bool }) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			if from := update.Message.From; from != nil && cfg.IsAdmin(from.ID) {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !limiter.Allow(chatID, time.Now()) {
				slog.Debug("rate limited", "chat_id", chatID, "limit", limiter.limit)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   config.RateLimitNotice,
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
