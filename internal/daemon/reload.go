package daemon

import (
	"fmt"

	"github.com/aigent-dev/aigent/internal/channel/telegram"
	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/pkg/models"
)

// handleReloadConfig re-reads the config file (and, via os.ExpandEnv
// inside config.Load, the process's .env-derived environment) and
// restarts the Telegram task if its token or enabled flag changed,
// per spec §4.10's ReloadConfig row.
func (s *Server) handleReloadConfig(c *conn, req models.Request) error {
	if s.cfg.ConfigPath == "" {
		return c.writeEvent(ackEvent(req.ID))
	}

	cfg, err := config.Load(s.cfg.ConfigPath)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("reload config: %w", err)))
	}

	s.ReconcileTelegram(cfg.Telegram)
	return c.writeEvent(ackEvent(req.ID))
}

// ReconcileTelegram starts, restarts, or stops the Telegram task to
// match tc, diffing against the currently-running token so an
// unchanged config is a no-op. Exported so a bootstrap step can also
// call it once at startup to bring up the initial task: the task's
// Submitter is the Server itself, which does not exist yet when
// daemon.Config is built, so it cannot be supplied at construction.
func (s *Server) ReconcileTelegram(tc config.TelegramConfig) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	wantToken := ""
	if tc.Enabled {
		wantToken = tc.BotToken
	}
	if wantToken == s.telegramToken {
		return
	}

	if s.telegram != nil {
		s.telegram.Stop()
		s.telegram = nil
	}
	s.telegramToken = wantToken
	if wantToken == "" {
		s.logger.Info("telegram task disabled by config reload")
		return
	}

	task := telegram.New(telegram.Config{BotToken: wantToken, Logger: s.logger}, s)
	if err := task.Start(s.runCtx()); err != nil {
		s.logger.Warn("telegram task failed to restart", "error", err)
		s.telegramToken = ""
		return
	}
	s.telegram = task
	s.logger.Info("telegram task restarted by config reload")
}
