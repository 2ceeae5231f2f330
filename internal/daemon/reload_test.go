package daemon

import (
	"context"
	"testing"

	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/pkg/models"
)

func TestHandleReloadConfigAcksWithoutConfigPath(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqReloadConfig, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtAck {
		t.Errorf("kind = %v, want ack", e.Kind)
	}
}

func TestReconcileTelegramIsNoOpWhenTokenUnchanged(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Shutdown(context.Background())

	srv.telegramToken = "unchanged-token"
	srv.ReconcileTelegram(config.TelegramConfig{Enabled: true, BotToken: "unchanged-token"})

	if srv.telegram != nil {
		t.Error("reconcileTelegram should not start a task when the token is unchanged")
	}
	if srv.telegramToken != "unchanged-token" {
		t.Errorf("telegramToken = %q, want unchanged", srv.telegramToken)
	}
}

func TestReconcileTelegramDisablesWhenNotEnabled(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Shutdown(context.Background())

	srv.telegramToken = "was-enabled"
	srv.ReconcileTelegram(config.TelegramConfig{Enabled: false})

	if srv.telegramToken != "" {
		t.Errorf("telegramToken = %q, want empty after disabling", srv.telegramToken)
	}
	if srv.telegram != nil {
		t.Error("telegram task should be nil once disabled")
	}
}
