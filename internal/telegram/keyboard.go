package telegram

import (
	"github.com/go-telegram/bot/models"
)

// Callback data understood by the handlers.
const CallbackReset = "reset_conversation"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ResetKeyboard offers a one-tap conversation restart.
func ResetKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard([]models.InlineKeyboardButton{
		InlineButton("🔄 Recomeçar conversa", CallbackReset),
	})
}
