package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken      string `env:"BOT_TOKEN,required"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	OpenRouterKey string `env:"OPENROUTER_API_KEY,required"`

	// LLM
	OpenRouterURL  string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model          string        `env:"LLM_MODEL" envDefault:"openai/gpt-4o-mini"`
	Temperature    float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMRetries     int           `env:"LLM_RETRIES" envDefault:"1"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"5s"`

	// Conversation engine
	Cooldown          time.Duration `env:"COOLDOWN" envDefault:"2s"`
	MaxToolIterations int           `env:"MAX_TOOL_ITERATIONS" envDefault:"5"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"40"`
	HistoryCacheTTL   time.Duration `env:"HISTORY_CACHE_TTL" envDefault:"30m"`

	// Pacing
	WordsPerMinute     float64       `env:"TYPING_WORDS_PER_MINUTE" envDefault:"60"`
	MinSegmentDelay    time.Duration `env:"MIN_SEGMENT_DELAY" envDefault:"1s"`
	MaxSegmentDelay    time.Duration `env:"MAX_SEGMENT_DELAY" envDefault:"8s"`
	ListBlockThreshold int           `env:"LIST_BLOCK_THRESHOLD" envDefault:"3"`
	SplitProbability   float64       `env:"SENTENCE_SPLIT_PROBABILITY" envDefault:"0.5"`

	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:3000"`
	APIToken string `env:"API_TOKEN"`

	// Bot behavior
	DropPendingUpdates bool    `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	RateLimitPerMinute int     `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	AdminIDs           []int64 `env:"ADMIN_IDS" envSeparator:","`
	AlertChatID        int64   `env:"ALERT_CHAT_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects tunables that would disable a protocol bound.
func (c *Config) Validate() error {
	var errs []error
	if c.Cooldown < 0 {
		errs = append(errs, errors.New("COOLDOWN must not be negative"))
	}
	if c.MaxToolIterations <= 0 {
		errs = append(errs, errors.New("MAX_TOOL_ITERATIONS must be positive"))
	}
	if c.LLMTimeout <= 0 || c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT and BACKEND_TIMEOUT must be positive"))
	}
	if c.LLMRetries < 0 {
		errs = append(errs, errors.New("LLM_RETRIES must not be negative"))
	}
	if c.WordsPerMinute <= 0 {
		errs = append(errs, errors.New("TYPING_WORDS_PER_MINUTE must be positive"))
	}
	if c.MinSegmentDelay < 0 || c.MaxSegmentDelay < c.MinSegmentDelay {
		errs = append(errs, errors.New("segment delays must satisfy 0 <= MIN <= MAX"))
	}
	if c.ListBlockThreshold < 0 {
		errs = append(errs, errors.New("LIST_BLOCK_THRESHOLD must not be negative"))
	}
	if c.SplitProbability < 0 || c.SplitProbability > 1 {
		errs = append(errs, errors.New("SENTENCE_SPLIT_PROBABILITY must be within [0,1]"))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return slices.Contains(c.AdminIDs, telegramID)
}

func (c *Config) AdminIDsString() string {
	parts := make([]string, len(c.AdminIDs))
	for i, id := range c.AdminIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
