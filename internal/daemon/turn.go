package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/retrieval"
	"github.com/aigent-dev/aigent/internal/tools"
	"github.com/aigent-dev/aigent/pkg/models"
)

// turnContextLimit caps how many non-pinned ranked entries C5 injects
// into a single turn's prompt.
const turnContextLimit = 8

// recentTurnsInPrompt is how many prior turns the composer folds into
// RECENT TURNS, independent of the TurnRing's total capacity.
const recentTurnsInPrompt = 5

// toolIntentSystemPrompt drives the brief C13 probe the spec's Flow
// calls for between identity composition and the main response: decide
// whether one of the listed tools should run before the assistant
// replies at all.
const toolIntentSystemPrompt = `You decide whether answering the user requires calling one of the
listed tools before you reply. Respond with ONLY a JSON object of the form:
{"tool": "name-or-empty", "args": {}}
Leave "tool" empty if no tool call is needed. Only use a name from the list below,
and only arguments that tool's params describe. Prefer leaving "tool" empty when unsure.`

type toolIntent struct {
	Tool string                     `json:"tool"`
	Args map[string]json.RawMessage `json:"args"`
}

// handleSubmitTurn streams tokens back on the requesting connection,
// ending with Done or Error. Per the concurrency discipline, no lock is
// held while the LLM streams: sharedMu is only taken briefly to snapshot
// the memory/tool state the prompt is built from, and again to record
// the completed turn's bookkeeping.
func (s *Server) handleSubmitTurn(c *conn, req models.Request) error {
	var body models.SubmitTurnBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}

	client, text := s.cfg.LLM.ForTurn(body.User)
	if client == nil {
		return c.writeEvent(errorEvent(req.ID, llm.ErrNoProvider))
	}

	var system string
	if s.cfg.Identity != nil {
		system = s.cfg.Identity.Block()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	composed := s.composeTurnPrompt(ctx, client, text)

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: composed},
	}

	stream, err := client.ChatStream(ctx, messages, llm.Options{})
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("chat stream: %w", err)))
	}

	var assistant strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return c.writeEvent(errorEvent(req.ID, chunk.Err))
		}
		assistant.WriteString(chunk.Token)
		tokenBody, _ := json.Marshal(map[string]string{"token": chunk.Token})
		if err := c.writeEvent(models.Event{Kind: models.EvtToken, RequestID: req.ID, Body: tokenBody}); err != nil {
			// Client disconnected mid-stream: the spec requires letting the
			// in-flight LLM call finish and still persisting its result, so
			// we keep draining the channel rather than returning here.
			continue
		}
		if chunk.Done {
			break
		}
	}

	s.recordTurn(body.Source, body.User, assistant.String())

	if s.cfg.Reflector != nil {
		go s.cfg.Reflector.Reflect(context.Background(), body.User, assistant.String())
	}

	return c.writeEvent(models.Event{Kind: models.EvtDone, RequestID: req.ID})
}

// SubmitExternalTurn runs one non-streaming turn on behalf of an
// external channel (currently only Telegram) and returns the
// assistant's reply. It satisfies telegram.Submitter. Unlike
// handleSubmitTurn there is no connection to stream tokens to, so the
// LLM is drained with Complete; the external_turn broadcast lets any
// Subscribe connection observe that the message arrived.
func (s *Server) SubmitExternalTurn(ctx context.Context, source, content string) (string, error) {
	extBody, _ := json.Marshal(models.ExternalTurnBody{Source: source, Content: content})
	s.broadcast.Broadcast(models.Event{Kind: models.EvtExternalTurn, Body: extBody})

	client := s.cfg.LLM.Default()
	if client == nil {
		return "", llm.ErrNoProvider
	}

	var system string
	if s.cfg.Identity != nil {
		system = s.cfg.Identity.Block()
	}

	composed := s.composeTurnPrompt(ctx, client, content)
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: composed},
	}

	reply, err := client.Complete(ctx, messages, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("complete external turn: %w", err)
	}

	s.recordTurn(source, content, reply)

	if s.cfg.Reflector != nil {
		go s.cfg.Reflector.Reflect(context.Background(), content, reply)
	}

	return reply, nil
}

// composeTurnPrompt implements the Flow's C5/C13 step: snapshot the
// shared memory/tool state, rank context for the query, run the brief
// tool-intent probe (dispatching to C9 and folding its result into the
// message if one fires), and assemble the final prompt in the spec's
// fixed section order.
func (s *Server) composeTurnPrompt(ctx context.Context, client llm.Client, userText string) string {
	s.sharedMu.Lock()
	candidates := s.manager.Active()
	beliefs := s.manager.AllBeliefs()
	recent := s.turns.Recent(recentTurnsInPrompt)
	var specs []models.ToolSpec
	for _, t := range s.registry.List() {
		spec := tools.Spec(t, nil)
		spec.Guest = s.registry.IsWASM(spec.Name)
		specs = append(specs, spec)
	}
	s.sharedMu.Unlock()

	var kvBlock string
	if s.cfg.Vault != nil {
		kvBlock = s.cfg.Vault.KVBlock()
	}

	var embedding []float32
	if vec, err := client.Embed(ctx, userText); err == nil {
		embedding = vec
	}
	now := time.Now()
	ranked := retrieval.Rank(candidates, userText, embedding, retrieval.DefaultWeights, turnContextLimit, now)
	relational := retrieval.BuildRelationalMatrix(candidates)

	message := userText
	if name, result := s.probeToolIntent(ctx, client, specs, userText); result != nil {
		if result.Success {
			message = fmt.Sprintf("%s\n\n[tool %s result]\n%s", userText, name, result.Output)
		} else {
			message = fmt.Sprintf("%s\n\n[tool %s failed]\n%s", userText, name, result.Error)
		}
	}

	return retrieval.Compose(retrieval.ComposeInput{
		KVBlock:        kvBlock,
		Beliefs:        beliefs,
		RelationalRows: relational,
		Ranked:         ranked,
		RecentTurns:    recent,
		CurrentMessage: message,
		Now:            now,
	})
}

// probeToolIntent runs the brief, non-streaming LLM call the Flow
// describes as "C13 performs a brief tool-intent probe". It returns a
// nil result if no client/tools are available, the probe's output
// doesn't parse, or it names no tool; a named tool is always dispatched
// through the Executor so approval/denylist/sandbox/persistence all
// still apply.
func (s *Server) probeToolIntent(ctx context.Context, client llm.Client, specs []models.ToolSpec, message string) (string, *models.ToolResult) {
	if client == nil || len(specs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
	}
	fmt.Fprintf(&b, "\nUser message: %s\n", message)

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	raw, err := client.Complete(probeCtx, []llm.Message{
		{Role: "system", Content: toolIntentSystemPrompt},
		{Role: "user", Content: b.String()},
	}, llm.Options{})
	if err != nil {
		s.logger.Warn("tool-intent probe failed", "error", err)
		return "", nil
	}

	var intent toolIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &intent); err != nil || intent.Tool == "" {
		return "", nil
	}

	call := models.ToolCall{Name: intent.Tool, Args: intent.Args}
	callBody, _ := json.Marshal(call)
	s.broadcast.Broadcast(models.Event{Kind: models.EvtToolCallStart, Body: callBody})
	result := s.executor.Execute(ctx, call)
	resultBody, _ := json.Marshal(result)
	s.broadcast.Broadcast(models.Event{Kind: models.EvtToolCallEnd, Body: resultBody})

	return intent.Tool, &result
}

// recordTurn pushes the turn onto the in-memory ring for RECENT TURNS
// and CurrentContext, and separately persists it as two Episodic
// MemoryEntry records (user, then assistant) so it survives a restart
// per the crash-safety scenario: a turn the client saw Done for must
// already be in the event log, not only in the ring.
func (s *Server) recordTurn(source, userText, assistantText string) {
	turn := models.ConversationTurn{
		Source:        source,
		UserText:      userText,
		AssistantText: assistantText,
		Timestamp:     time.Now(),
	}
	s.sharedMu.Lock()
	s.turns.Push(turn)
	s.sharedMu.Unlock()

	if _, err := s.manager.Record(&models.MemoryEntry{
		Tier:    models.TierEpisodic,
		Content: userText,
		Source:  "user",
	}); err != nil {
		s.logger.Warn("failed to persist user turn", "error", err)
	}
	if _, err := s.manager.Record(&models.MemoryEntry{
		Tier:    models.TierEpisodic,
		Content: assistantText,
		Source:  "agent",
	}); err != nil {
		s.logger.Warn("failed to persist assistant turn", "error", err)
	}
}
