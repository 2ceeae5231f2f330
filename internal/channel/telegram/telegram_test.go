package telegram

import (
	"context"
	"testing"
)

type fakeSubmitter struct {
	reply string
	err   error
}

func (f *fakeSubmitter) SubmitExternalTurn(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

var _ Submitter = (*fakeSubmitter)(nil)

func TestChatAllowedWithEmptyAllowlist(t *testing.T) {
	task := New(Config{BotToken: "x"}, nil)
	if !task.chatAllowed(12345) {
		t.Error("an empty allowlist should allow every chat")
	}
}

func TestChatAllowedRestrictsToList(t *testing.T) {
	task := New(Config{BotToken: "x", AllowedChatIDs: []int64{1, 2}}, nil)
	if !task.chatAllowed(1) {
		t.Error("chat 1 should be allowed")
	}
	if task.chatAllowed(3) {
		t.Error("chat 3 should not be allowed")
	}
}

func TestStartRejectsEmptyToken(t *testing.T) {
	task := New(Config{}, nil)
	if err := task.Start(context.Background()); err == nil {
		t.Error("expected an error for an empty bot token")
	}
}
