package models

import (
	"encoding/json"
	"time"
)

// RequestKind discriminates the JSON-framed messages a client may send.
type RequestKind string

const (
	ReqSubmitTurn               RequestKind = "submit_turn"
	ReqSubscribe                RequestKind = "subscribe"
	ReqGetStatus                RequestKind = "get_status"
	ReqGetMemoryPeek            RequestKind = "get_memory_peek"
	ReqGetRecentContext         RequestKind = "get_recent_context"
	ReqListTools                RequestKind = "list_tools"
	ReqExecuteTool              RequestKind = "execute_tool"
	ReqRunSleepCycle             RequestKind = "run_sleep_cycle"
	ReqRunMultiAgentSleepCycle   RequestKind = "run_multi_agent_sleep_cycle"
	ReqTriggerProactive         RequestKind = "trigger_proactive"
	ReqGetProactiveStats        RequestKind = "get_proactive_stats"
	ReqReloadConfig             RequestKind = "reload_config"
	ReqPing                     RequestKind = "ping"
	ReqShutdown                 RequestKind = "shutdown"
	ReqDisconnect               RequestKind = "disconnect"
	ReqApprovalResponse         RequestKind = "approval_response"
	ReqGetMemoryStats           RequestKind = "get_memory_stats"
	ReqExportVault              RequestKind = "export_vault"
	ReqWipeMemory               RequestKind = "wipe_memory"
)

// Request is one JSON-framed client->server message.
type Request struct {
	Kind RequestKind     `json:"kind"`
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body,omitempty"`
}

// SubmitTurnBody is the payload of a ReqSubmitTurn request.
type SubmitTurnBody struct {
	User   string `json:"user"`
	Source string `json:"source"`
}

// ExecuteToolBody is the payload of a ReqExecuteTool request.
type ExecuteToolBody struct {
	Name string                     `json:"name"`
	Args map[string]json.RawMessage `json:"args"`
}

// ApprovalResponseBody answers a pending ApprovalRequest.
type ApprovalResponseBody struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
}

// GetMemoryPeekBody optionally narrows a ReqGetMemoryPeek to one tier,
// as `memory inspect-core` does for Tier = "core".
type GetMemoryPeekBody struct {
	Limit int  `json:"limit"`
	Tier  Tier `json:"tier,omitempty"`
}

// WipeMemoryBody is the payload of a ReqWipeMemory request.
type WipeMemoryBody struct {
	Layer Tier `json:"layer"`
}

// MemoryStats is the payload returned for ReqGetMemoryStats.
type MemoryStats struct {
	TotalActive int         `json:"total_active"`
	TotalAll    int         `json:"total_all"`
	ByTier      map[Tier]int `json:"by_tier"`
	LogPath     string      `json:"log_path"`
}

// VaultExportResult is the payload returned for ReqExportVault.
type VaultExportResult struct {
	Files   []string `json:"files"`
	Changed int      `json:"changed"`
}

// EventKind discriminates broadcast/streamed server->client events.
type EventKind string

const (
	EvtToken             EventKind = "token"
	EvtReflectionInsight EventKind = "reflection_insight"
	EvtBeliefAdded       EventKind = "belief_added"
	EvtProactiveMessage  EventKind = "proactive_message"
	EvtExternalTurn      EventKind = "external_turn"
	EvtApprovalRequest   EventKind = "approval_request"
	EvtToolCallStart     EventKind = "tool_call_start"
	EvtToolCallEnd       EventKind = "tool_call_end"
	EvtMemoryUpdated     EventKind = "memory_updated"
	EvtDone              EventKind = "done"
	EvtError             EventKind = "error"
	EvtLagged            EventKind = "lagged"
	EvtStatus            EventKind = "status"
	EvtMemoryPeek        EventKind = "memory_peek"
	EvtRecentContext     EventKind = "recent_context"
	EvtToolList          EventKind = "tool_list"
	EvtToolResult        EventKind = "tool_result"
	EvtProactiveResult   EventKind = "proactive_result"
	EvtProactiveStats    EventKind = "proactive_stats"
	EvtMemoryStats       EventKind = "memory_stats"
	EvtVaultExport       EventKind = "vault_export"
	EvtAck               EventKind = "ack"
)

// Event is one JSON-framed server->client message, either a direct
// response on the requesting connection or a broadcast to subscribers.
type Event struct {
	Kind      EventKind       `json:"kind"`
	RequestID string          `json:"request_id,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	At        time.Time       `json:"at"`
}

// DaemonStatus is the snapshot returned by GetStatus.
type DaemonStatus struct {
	Uptime            time.Duration `json:"uptime"`
	MemoryEntryCount  int           `json:"memory_entry_count"`
	ActiveConnections int           `json:"active_connections"`
	EmbeddingsEnabled bool          `json:"embeddings_enabled"`
	LastPassiveSleep  time.Time     `json:"last_passive_sleep"`
	LastNightlySleep  time.Time     `json:"last_nightly_sleep"`
	LastProactive     time.Time     `json:"last_proactive"`
}

// ApprovalRequest is broadcast before a gated tool executes.
type ApprovalRequest struct {
	ID       string `json:"id"`
	ToolName string `json:"tool_name"`
	Args     string `json:"args"`
}

// ExternalTurnBody carries a message injected from an external channel
// (e.g. a Telegram message) onto the broadcast stream.
type ExternalTurnBody struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}
