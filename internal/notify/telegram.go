// Package notify delivers the end-of-run report to an external channel.
// Delivery is best effort: a failed notification is logged, never allowed
// to fail the run that produced it.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// sender is the slice of the bot API the notifier uses; tests stub it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts run summaries to a chat via a bot token.
type Telegram struct {
	chatID int64
	bot    sender
	logger *slog.Logger
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	Logger *slog.Logger
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram notifier connected", "bot", bot.Self.UserName)
	return &Telegram{chatID: cfg.ChatID, bot: bot, logger: cfg.Logger}, nil
}

// Notify sends one report, split into chunks under the message size limit.
// Errors are logged and swallowed.
func (t *Telegram) Notify(text string) {
	for len(text) > 0 {
		chunk := text
		if len(chunk) > telegramMaxMsgLen {
			cutAt := strings.LastIndex(chunk[:telegramMaxMsgLen], "\n")
			if cutAt < telegramMaxMsgLen/2 {
				cutAt = telegramMaxMsgLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		t.sendChunk(chunk)
	}
}

// sendChunk sends a single chunk, backing off on rate limits.
func (t *Telegram) sendChunk(text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		t.logger.Error("telegram notification failed", "err", err)
		return
	}
	t.logger.Error("telegram notification dropped after retries")
}
