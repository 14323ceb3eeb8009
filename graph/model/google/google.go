// Package google adapts the Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/stategraph-ai/stategraph/graph/model"
)

// ChatModel calls Gemini via the official SDK. Close releases the
// underlying client. Safe for concurrent use.
type ChatModel struct {
	client *genai.Client
	model  string
}

// New creates an adapter for the given API key and model name, for
// example "gemini-1.5-pro".
func New(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google: api key required")
	}
	if modelName == "" {
		return nil, errors.New("google: model name required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &ChatModel{client: client, model: modelName}, nil
}

// Close releases the underlying API client.
func (m *ChatModel) Close() error {
	return m.client.Close()
}

// Chat implements model.ChatModel. System messages become the system
// instruction; the rest of the conversation is flattened into the
// prompt. Function-call parts in the response become tool calls.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	gm := m.client.GenerativeModel(m.model)

	var system, prompt strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system.WriteString(msg.Content)
			system.WriteString("\n")
		case model.RoleAssistant:
			prompt.WriteString("Assistant: " + msg.Content + "\n")
		default:
			prompt.WriteString("User: " + msg.Content + "\n")
		}
	}
	if system.Len() > 0 {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system.String())},
		}
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Schema),
			})
		}
		gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}

	var out model.ChatOut
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				out.Text += string(p)
			case genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, model.ToolCall{
					Name:  p.Name,
					Input: p.Args,
				})
			}
		}
	}
	return out, nil
}

// toSchema converts a JSON Schema map to the Gemini schema type. Only
// the subset Gemini understands is mapped; unknown keywords are
// dropped.
func toSchema(s map[string]interface{}) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Type: schemaType(s["type"])}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if props, ok := s["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = toSchema(sub)
			}
		}
	}
	if items, ok := s["items"].(map[string]interface{}); ok {
		out.Items = toSchema(items)
	}
	switch req := s["required"].(type) {
	case []string:
		out.Required = req
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	return out
}

func schemaType(v interface{}) genai.Type {
	t, _ := v.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
