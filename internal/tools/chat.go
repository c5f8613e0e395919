package tools

import (
	"context"
	"encoding/json"

	"passerelle/internal/provider"
	"passerelle/internal/router"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MessageInput is one conversation turn in a chat call.
type MessageInput struct {
	Role    string `json:"role" jsonschema:"required,Turn role: system | user | assistant"`
	Content string `json:"content" jsonschema:"required,Turn text"`
}

// ChatInput defines the input schema for the chat tool.
type ChatInput struct {
	Messages    []MessageInput `json:"messages" jsonschema:"required,Ordered conversation turns"`
	Mode        string         `json:"mode,omitempty" jsonschema:"Generation mode: normal | resume | actions"`
	Temperature float64        `json:"temperature,omitempty" jsonschema:"Sampling temperature, default 0.3"`
	MaxTokens   int            `json:"max_tokens,omitempty" jsonschema:"Reply token budget, default 512"`
	RAGTopK     int            `json:"rag_top_k,omitempty" jsonschema:"Retrieval hits to inject, default 3"`
	UseExternal bool           `json:"use_external,omitempty" jsonschema:"Explicitly request external escalation"`
}

// NewChatHandler creates the chat tool handler. The router guarantees a
// reply for any well-formed request; only unparseable payloads fail.
func NewChatHandler(deps *Dependencies) mcp.ToolHandlerFor[ChatInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ChatInput) (
		*mcp.CallToolResult, any, error,
	) {
		if len(input.Messages) == 0 {
			return ErrorResult("At least one message is required", "Provide a messages array with role and content"), nil, nil
		}

		messages := make([]provider.Message, 0, len(input.Messages))
		for _, m := range input.Messages {
			messages = append(messages, provider.Message{Role: m.Role, Content: m.Content})
		}

		result, err := deps.Router.Chat(ctx, router.ChatRequest{
			Messages:    messages,
			Mode:        input.Mode,
			Temperature: input.Temperature,
			MaxTokens:   input.MaxTokens,
			RAGTopK:     input.RAGTopK,
			UseExternal: input.UseExternal,
		})
		if err != nil {
			return ErrorResult("Malformed chat request", "Each message needs a role and content"), nil, nil
		}

		deps.Logger.Info("chat completed",
			"provider", result.Provider,
			"intent", string(result.Trace.Intent.Intent),
			"len", len(result.Reply),
		)

		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
