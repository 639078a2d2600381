package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// TelegramSink forwards every Event to a single Telegram chat, the same
// bot.Send(chatID, text) shape the reference bot's TelegramBot.send uses.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink constructs a TelegramSink from a bot token and chat id.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram notification sink ready")
	return &TelegramSink{api: api, chatID: chatID}, nil
}

// Send implements Sink.
func (t *TelegramSink) Send(event Event) {
	text := fmt.Sprintf("[account %d] %s: %s", event.AccountID, event.Type, event.Message)
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("notify: failed to send telegram message")
	}
}
