package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"studycal/internal/calendar"
	appLog "studycal/internal/log"
)

// LogDeliverer writes fired notifications to the application log.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, p Payload) error {
	appLog.Info("reminder", "title", p.Title, "body", p.Body, "key", p.Key)
	return nil
}

// TelegramDeliverer sends fired notifications to one Telegram chat.
type TelegramDeliverer struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramDeliverer(token string, chatID int64) (*TelegramDeliverer, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	appLog.Info("telegram deliverer ready", "bot", bot.Self.UserName, "chat", chatID)
	return &TelegramDeliverer{bot: bot, chatID: chatID}, nil
}

func (t *TelegramDeliverer) Deliver(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(p))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatMessage renders p as a short HTML chat message.
func FormatMessage(p Payload) string {
	text := "<b>" + tgbotapi.EscapeText(tgbotapi.ModeHTML, p.Title) + "</b>"
	if p.Body != "" {
		text += "\n" + tgbotapi.EscapeText(tgbotapi.ModeHTML, p.Body)
	}
	if !p.At.IsZero() {
		text += "\n<i>" + calendar.FormatDate(p.At) + " " + calendar.ClockOf(p.At).String() + "</i>"
	}
	return text
}

// Multi fans a payload out to several deliverers. All are tried; the first
// error is returned.
type Multi []Deliverer

func (m Multi) Deliver(ctx context.Context, p Payload) error {
	var first error
	for _, d := range m {
		if err := d.Deliver(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
