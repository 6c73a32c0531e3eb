package notify

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sent     []string
	failures int // number of leading calls that fail with a 429
	hardErr  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.hardErr != nil {
		return tgbotapi.Message{}, f.hardErr
	}
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("Too Many Requests: retry after 1")
	}
	msg := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, msg.Text)
	return tgbotapi.Message{}, nil
}

func testNotifier(bot sender) *Telegram {
	return &Telegram{
		chatID: 99,
		bot:    bot,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNotifySendsSingleMessage(t *testing.T) {
	bot := &fakeBot{}
	testNotifier(bot).Notify("--- SUMMARY ---\nnew messages: 3")

	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	if !strings.Contains(bot.sent[0], "new messages: 3") {
		t.Errorf("sent = %q", bot.sent[0])
	}
}

func TestNotifyChunksLongReports(t *testing.T) {
	lines := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		lines = append(lines, strings.Repeat("x", 30))
	}
	report := strings.Join(lines, "\n")

	bot := &fakeBot{}
	testNotifier(bot).Notify(report)

	if len(bot.sent) < 2 {
		t.Fatalf("sent %d messages, want chunked delivery", len(bot.sent))
	}
	var total int
	for _, s := range bot.sent {
		if len(s) > telegramMaxMsgLen {
			t.Errorf("chunk of %d bytes exceeds limit", len(s))
		}
		total += len(s)
	}
	if total != len(report) {
		t.Errorf("reassembled %d bytes, want %d", total, len(report))
	}
}

func TestNotifyRetriesRateLimit(t *testing.T) {
	bot := &fakeBot{failures: 2}
	testNotifier(bot).Notify("report")

	if len(bot.sent) != 1 {
		t.Errorf("sent %d messages, want 1 after retries", len(bot.sent))
	}
}

func TestNotifySwallowsHardErrors(t *testing.T) {
	bot := &fakeBot{hardErr: errors.New("chat not found")}
	testNotifier(bot).Notify("report") // must not panic or retry forever

	if len(bot.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(bot.sent))
	}
}
