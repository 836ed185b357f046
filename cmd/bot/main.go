package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	fitcoach "github.com/set-night/fitcoach"
	"github.com/set-night/fitcoach/internal/api"
	"github.com/set-night/fitcoach/internal/coach"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/handler"
	"github.com/set-night/fitcoach/internal/history"
	"github.com/set-night/fitcoach/internal/middleware"
	"github.com/set-night/fitcoach/internal/pacing"
	"github.com/set-night/fitcoach/internal/repository"
	"github.com/set-night/fitcoach/internal/service"
	"github.com/set-night/fitcoach/internal/telegram"
	"github.com/set-night/fitcoach/internal/tools"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(fitcoach.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	gateway := repository.NewGateway(pool)

	// Tool registry is fixed at startup; a bad catalogue is fatal.
	registry, err := tools.NewDefaultRegistry()
	if err != nil {
		slog.Error("failed to build tool registry", "error", err)
		os.Exit(1)
	}

	engine := coach.New(coach.Deps{
		Model:   service.NewOpenRouterService(cfg.OpenRouterKey, cfg.OpenRouterURL, cfg.Model, cfg.Temperature, cfg.LLMTimeout),
		Tools:   tools.NewDispatcher(registry, cfg.BackendTimeout),
		Gateway: gateway,
		History: history.NewStore(gateway, history.NewMemoryCache(cfg.HistoryCacheTTL), cfg.BackendTimeout),
		Pacer:   pacing.New(pacing.OptionsFromConfig(cfg), nil),
	}, coach.OptionsFromConfig(cfg))

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.RateLimit(middleware.NewLimiter(cfg.RateLimitPerMinute, config.RateLimitWindow), cfg),
			middleware.UserLoader(gateway),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil || update.Message == nil {
				return
			}
			h.HandleTextPrivate(ctx, b, update)
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Engine:   engine,
		TgLogger: telegram.NewTelegramLogger(b, cfg.AlertChatID),
	})
	h.Register()

	// HTTP boundary
	if cfg.APIToken == "" {
		slog.Warn("API_TOKEN is empty, /v1 routes accept any caller", "addr", cfg.HTTPAddr)
	}
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     api.NewHandler(engine, gateway, cfg.APIToken).Routes(),
		ReadTimeout: config.HTTPReadTimeout,
	}
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID, "admins", cfg.AdminIDsString())
	b.Start(ctx)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.HTTPShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server forced to shutdown", "error", err)
	}
	slog.Info("bot stopped gracefully")
}
