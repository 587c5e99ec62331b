package notify

import (
	"context"
	"fmt"

	"uniform-shop/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier talks to one operator chat through the Bot API
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// StatusKeyboard holds the operator actions shown under a summary
func StatusKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Ready", CallbackPrefix+string(domain.OrderStatusReady)),
			tgbotapi.NewInlineKeyboardButtonData("Collected", CallbackPrefix+string(domain.OrderStatusCollected)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", CallbackPrefix+string(domain.OrderStatusCancelled)),
		),
	)
}

// Send posts text with the status keyboard and returns the message id
func (n *TelegramNotifier) Send(ctx context.Context, text string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Build message with action buttons
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = StatusKeyboard()

	sent, err := n.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send telegram message: %w", err)
	}
	return int64(sent.MessageID), nil
}

// Edit replaces the text of a sent message. Without actions the keyboard is cleared.
func (n *TelegramNotifier) Edit(ctx context.Context, messageID int64, text string, withActions bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keyboard := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if withActions {
		keyboard = StatusKeyboard()
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(n.chatID, int(messageID), text, keyboard)
	if _, err := n.bot.Request(edit); err != nil {
		return fmt.Errorf("failed to edit telegram message %d: %w", messageID, err)
	}
	return nil
}

// AnswerCallback stops the button spinner with a short toast
func (n *TelegramNotifier) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
