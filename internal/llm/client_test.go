package llm

import (
	"context"
	"testing"
)

// fakeClient is a minimal llm.Client stub used to test Router's
// selection logic without a real provider.
type fakeClient struct{ name string }

var _ Client = (*fakeClient)(nil)

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error) {
	ch := make(chan Chunk)
	close(ch)
	return ch, nil
}

func (f *fakeClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return "", nil
}

func (f *fakeClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func TestStripFallbackDirective(t *testing.T) {
	tests := []struct {
		in       string
		wantText string
		wantForced bool
	}{
		{"/fallback what's the weather", "what's the weather", true},
		{"  /fallback  hi", "hi", true},
		{"no directive here", "no directive here", false},
		{"/fallbacking is not the directive", "/fallbacking is not the directive", false},
	}
	for _, tt := range tests {
		gotText, gotForced := StripFallbackDirective(tt.in)
		if gotForced != tt.wantForced || gotText != tt.wantText {
			t.Errorf("StripFallbackDirective(%q) = (%q, %v), want (%q, %v)", tt.in, gotText, gotForced, tt.wantText, tt.wantForced)
		}
	}
}

func TestRouterForTurnHonorsFallback(t *testing.T) {
	local := &fakeClient{name: "local"}
	cloud := &fakeClient{name: "cloud"}
	r := Router{Local: local, Cloud: cloud}

	client, text := r.ForTurn("/fallback do the thing")
	if client != cloud {
		t.Error("expected /fallback to force the cloud client")
	}
	if text != "do the thing" {
		t.Errorf("text = %q, want directive stripped", text)
	}

	client, text = r.ForTurn("ordinary message")
	if client != local {
		t.Error("expected ordinary turn to use the local client")
	}
	if text != "ordinary message" {
		t.Errorf("text = %q, want unchanged", text)
	}
}

func TestRouterDefaultFallsBackToCloudWhenNoLocal(t *testing.T) {
	cloud := &fakeClient{name: "cloud"}
	r := Router{Cloud: cloud}
	if r.Default() != cloud {
		t.Error("Default() should use cloud when no local client is configured")
	}
}
