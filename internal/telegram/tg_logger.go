package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"
)

// TelegramLogger mirrors notable engine events into an operator chat.
type TelegramLogger struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramLogger(b *bot.Bot, chatID int64) *TelegramLogger {
	return &TelegramLogger{bot: b, chatID: chatID}
}

// MaxAlertLen keeps alerts well under the Telegram message limit.
const MaxAlertLen = 3500

type LogType string

const (
	LogTypeError        LogType = "error"
	LogTypeNotPersisted LogType = "notPersisted"
	LogTypeUpstream     LogType = "upstream"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.chatID == 0 {
		return
	}

	// Truncate if too long
	if len([]rune(message)) > MaxAlertLen {
		message = string([]rune(message)[:MaxAlertLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    l.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogNotPersisted(userID uuid.UUID, turns int) {
	msg := fmt.Sprintf("💾 *History not saved*\n\n*User:* `%s`\n*Turns:* %d\nRetried on the next message.",
		userID, turns)
	l.Log(LogTypeNotPersisted, msg)
}

func (l *TelegramLogger) LogUpstream(userID uuid.UUID) {
	msg := fmt.Sprintf("🌩 *LLM unavailable*\n\n*User:* `%s`\n*Time:* %s",
		userID, time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeUpstream, msg)
}
