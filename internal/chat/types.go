package chat

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run a named tool with JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Turn is one entry of the conversation history.
type Turn struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant turns that requested tools.
	ToolCalls []ToolCall

	// ToolCallID links a tool turn to the call it answers.
	ToolCallID string
}

// ToolSpec declares a tool the model may call. Parameters is a JSON Schema
// object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Reply is the model's answer to one completion request.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer is a chat completion backend with tool calling.
type Completer interface {
	// Complete sends the history and the tools the model may call. tools is
	// empty when the model must answer in text.
	Complete(ctx context.Context, history []Turn, tools []ToolSpec) (Reply, error)
}
