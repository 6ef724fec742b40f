package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink delivers notifications to a Telegram chat.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram api: %w", err)
	}
	return &TelegramSink{api: api, chatID: chatID}, nil
}

func (s *TelegramSink) Send(title, body string) error {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", title, body)
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = "HTML"
	_, err := s.api.Send(msg)
	return err
}

// LogSink writes notifications to the process log. Used when no
// Telegram credentials are configured.
type LogSink struct{}

func (LogSink) Send(title, body string) error {
	log.Printf("NOTIFY: %s: %s", title, body)
	return nil
}
