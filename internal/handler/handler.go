package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/coach"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/telegram"
)

// Engine is the conversation engine the chat handlers drive.
type Engine interface {
	Handle(ctx context.Context, userID uuid.UUID, text string) (*coach.Reply, error)
	Reset(ctx context.Context, userID uuid.UUID) error
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	engine   Engine
	tgLogger *telegram.TelegramLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Cfg      *config.Config
	Engine   Engine
	TgLogger *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		engine:   deps.Engine,
		tgLogger: deps.TgLogger,
	}
}
