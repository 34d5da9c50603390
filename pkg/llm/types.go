// Package llm provides an OpenAI-compatible language-model interface together
// with the structured-output and tool-calling helpers the service layer uses.
package llm

import (
	"context"
	"encoding/json"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 表示一条角色消息
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool in the chat-completions format.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the schema part of a ToolDefinition.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest is one round trip to the model.
type CompletionRequest struct {
	Messages   []Message
	Tools      []ToolDefinition
	JSONOutput bool
}

// Interface is a provider/model binding able to answer a completion request.
// Implementations are immutable after construction and safe for concurrent use.
type Interface interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*Message, error)
}

// Toolkit exposes a set of tools to the model and dispatches its calls.
type Toolkit interface {
	Definitions() []ToolDefinition
	Invoke(ctx context.Context, name string, arguments string) (string, error)
}
