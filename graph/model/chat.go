// Package model defines the provider-neutral chat interface used by model
// capabilities, plus adapters for Anthropic, OpenAI, and Google in
// subpackages.
package model

import "context"

// ChatModel is implemented by provider adapters. Implementations convert
// the neutral Message/ToolSpec types to the provider wire format, honor
// context cancellation, and surface provider failures as errors the
// caller can classify.
type ChatModel interface {
	// Chat sends the conversation and optional tool specs to the
	// provider. The response may carry text, tool calls, or both.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles shared by all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call. Schema is a JSON Schema
// object describing the tool's input.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a provider response: generated text, requested tool calls,
// or both. Text may be empty when the model only calls tools.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a model's request to invoke a named tool with the given
// input. Input structure follows the matching ToolSpec.Schema.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
