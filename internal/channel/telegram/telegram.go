// Package telegram implements the daemon's one optional chat-bot
// polling task (spec §5): a long-polling Telegram bot that forwards
// incoming messages into the daemon as external turns and relays the
// assistant's reply back to the originating chat. Grounded on
// internal/channels/telegram's use of github.com/go-telegram/bot,
// trimmed to the single text-message round trip this daemon needs.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Submitter runs one external turn through the daemon's shared cell and
// returns the assistant's reply. Implemented by *daemon.Server.
type Submitter interface {
	SubmitExternalTurn(ctx context.Context, source, content string) (string, error)
}

// Config configures the Telegram polling task.
type Config struct {
	BotToken string

	// AllowedChatIDs restricts which chats the bot will respond to. An
	// empty list allows every chat that messages the bot.
	AllowedChatIDs []int64

	Logger *slog.Logger
}

// Task owns the long-polling bot connection for the lifetime of one
// Start/Stop cycle. A new Task is created each time ReloadConfig
// detects the token or enabled flag changed.
type Task struct {
	cfg       Config
	submitter Submitter
	logger    *slog.Logger

	bot    *tgbot.Bot
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Task. It does not contact Telegram until Start.
func New(cfg Config, submitter Submitter) *Task {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{cfg: cfg, submitter: submitter, logger: logger.With("component", "telegram")}
}

// Start connects to Telegram and begins long-polling in a background
// goroutine. It returns once the bot client is constructed; polling
// continues until ctx is canceled or Stop is called.
func (t *Task) Start(ctx context.Context) error {
	if strings.TrimSpace(t.cfg.BotToken) == "" {
		return fmt.Errorf("telegram: bot token is required")
	}

	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(t.handleUpdate),
	}
	b, err := tgbot.New(t.cfg.BotToken, opts...)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = b

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.bot.Start(runCtx)
	}()

	t.logger.Info("telegram polling started")
	return nil
}

// Stop cancels polling and waits for the background goroutine to exit.
func (t *Task) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("telegram polling stopped")
}

func (t *Task) handleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		return
	}
	chatID := update.Message.Chat.ID
	if !t.chatAllowed(chatID) {
		t.logger.Debug("ignoring message from disallowed chat", "chat_id", chatID)
		return
	}

	reply, err := t.submitter.SubmitExternalTurn(ctx, "telegram", update.Message.Text)
	if err != nil {
		t.logger.Warn("external turn failed", "chat_id", chatID, "error", err)
		reply = "Something went wrong handling that message."
	}

	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   reply,
	}); err != nil {
		t.logger.Warn("failed to send telegram reply", "chat_id", chatID, "error", err)
	}
}

func (t *Task) chatAllowed(chatID int64) bool {
	if len(t.cfg.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range t.cfg.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
