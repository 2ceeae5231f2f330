package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CalendarAddEventTool implements calendar_add_event. There is no
// external calendar integration; it records the requested event as a
// structured confirmation, persisted downstream as a Procedural memory
// entry by the executor.
type CalendarAddEventTool struct{}

func NewCalendarAddEventTool() *CalendarAddEventTool { return &CalendarAddEventTool{} }

func (t *CalendarAddEventTool) Name() string        { return "calendar_add_event" }
func (t *CalendarAddEventTool) Description() string { return "Record a calendar event." }
func (t *CalendarAddEventTool) ReadOnly() bool       { return true }

func (t *CalendarAddEventTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var input struct {
		Title string `json:"title"`
		When  string `json:"when"`
		Notes string `json:"notes"`
	}
	if err := unmarshalArg(args, "title", &input.Title); err != nil {
		return "", err
	}
	_ = unmarshalArg(args, "when", &input.When)
	_ = unmarshalArg(args, "notes", &input.Notes)
	if strings.TrimSpace(input.Title) == "" {
		return "", fmt.Errorf("title is required")
	}
	summary := fmt.Sprintf("calendar event added: %q at %s", input.Title, input.When)
	if input.Notes != "" {
		summary += " (" + input.Notes + ")"
	}
	return summary, nil
}

// DraftEmailTool implements draft_email: composes a draft without
// sending it.
type DraftEmailTool struct{}

func NewDraftEmailTool() *DraftEmailTool { return &DraftEmailTool{} }

func (t *DraftEmailTool) Name() string        { return "draft_email" }
func (t *DraftEmailTool) Description() string { return "Compose an email draft (not sent)." }
func (t *DraftEmailTool) ReadOnly() bool       { return false }

func (t *DraftEmailTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var input struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := unmarshalArg(args, "to", &input.To); err != nil {
		return "", err
	}
	_ = unmarshalArg(args, "subject", &input.Subject)
	_ = unmarshalArg(args, "body", &input.Body)
	if strings.TrimSpace(input.To) == "" {
		return "", fmt.Errorf("to is required")
	}
	return fmt.Sprintf("draft to %s — subject: %q\n\n%s", input.To, input.Subject, input.Body), nil
}

// RemindMeTool implements remind_me: records a future reminder.
type RemindMeTool struct{}

func NewRemindMeTool() *RemindMeTool { return &RemindMeTool{} }

func (t *RemindMeTool) Name() string        { return "remind_me" }
func (t *RemindMeTool) Description() string { return "Record a reminder for later." }
func (t *RemindMeTool) ReadOnly() bool       { return true }

func (t *RemindMeTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var input struct {
		When    string `json:"when"`
		Message string `json:"message"`
	}
	if err := unmarshalArg(args, "message", &input.Message); err != nil {
		return "", err
	}
	_ = unmarshalArg(args, "when", &input.When)
	if strings.TrimSpace(input.Message) == "" {
		return "", fmt.Errorf("message is required")
	}
	return fmt.Sprintf("reminder set for %s: %s", input.When, input.Message), nil
}

// WebSearchTool implements web_search: the Brave Search API when a key
// is configured, DuckDuckGo's instant-answer JSON API otherwise.
type WebSearchTool struct {
	braveAPIKey string
	httpClient  *http.Client
}

// NewWebSearchTool creates web_search; an empty braveAPIKey routes
// every query through DuckDuckGo.
func NewWebSearchTool(braveAPIKey string) *WebSearchTool {
	return &WebSearchTool{braveAPIKey: braveAPIKey, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web for a query." }
func (t *WebSearchTool) ReadOnly() bool       { return true }

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var query string
	if err := unmarshalArg(args, "query", &query); err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if t.braveAPIKey != "" {
		return t.searchBrave(ctx, query)
	}
	return t.searchDuckDuckGo(ctx, query)
}

func (t *WebSearchTool) searchBrave(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.search.brave.com/res/v1/web/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", t.braveAPIKey)
	req.Header.Set("Accept", "application/json")
	return t.do(req)
}

func (t *WebSearchTool) searchDuckDuckGo(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.duckduckgo.com/?format=json&q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("build duckduckgo request: %w", err)
	}
	return t.do(req)
}

func (t *WebSearchTool) do(req *http.Request) (string, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolOutputBytes))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("search request failed: %s", resp.Status)
	}
	return string(body), nil
}
