// Package anthropic adapts the Anthropic Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stategraph-ai/stategraph/graph/model"
)

const defaultMaxTokens = 4096

// ChatModel calls Claude via the official SDK. Safe for concurrent use.
type ChatModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(m *ChatModel) { m.maxTokens = n }
}

// New creates an adapter for the given API key and model name, for
// example "claude-sonnet-4-20250514".
func New(apiKey, modelName string, opts ...Option) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}
	if modelName == "" {
		return nil, errors.New("anthropic: model name required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	m := &ChatModel{
		client:    &client,
		model:     modelName,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Chat implements model.ChatModel. System messages are lifted into the
// request's system prompt; tool_use blocks in the response become tool
// calls.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schemaProperties(t.Schema),
				},
			},
		})
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}

	var out model.ChatOut
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("anthropic: decode tool input: %w", err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return out, nil
}

// schemaProperties extracts the properties object from a JSON Schema
// map; the Messages API takes the property map directly.
func schemaProperties(schema map[string]interface{}) interface{} {
	if schema == nil {
		return map[string]interface{}{}
	}
	if props, ok := schema["properties"]; ok {
		return props
	}
	return schema
}
