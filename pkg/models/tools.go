package models

import "encoding/json"

// ToolParam describes a single named parameter accepted by a tool.
type ToolParam struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// ToolSpec describes a callable tool's name, purpose, and parameters.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
	ReadOnly    bool        `json:"read_only"`
	Guest       bool        `json:"guest"` // true if a WASM guest shadows/provides this tool
}

// ToolCall is a request to invoke a tool with the given arguments.
type ToolCall struct {
	Name string                     `json:"name"`
	Args map[string]json.RawMessage `json:"args"`
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}
