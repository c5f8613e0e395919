package tools

import (
	"context"
	"encoding/json"

	"passerelle/internal/journal"
	"passerelle/internal/metrics"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo string `json:"echo,omitempty" jsonschema:"Optional text to echo back"`
}

// NewPingHandler creates the ping tool handler.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Echo != "" {
			return TextResult(input.Echo), nil, nil
		}
		return TextResult("pong"), nil, nil
	}
}

// StatusInput defines the input schema for the status tool.
type StatusInput struct {
	EventLimit int `json:"event_limit,omitempty" jsonschema:"Recent events to include, default 20"`
}

// statusResponse combines runtime metrics with the event tail.
type statusResponse struct {
	Documents int              `json:"documents"`
	Metrics   metrics.Snapshot `json:"metrics"`
	Events    []journal.Event  `json:"events"`
}

// NewStatusHandler creates the status tool handler.
func NewStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[StatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, any, error,
	) {
		limit := input.EventLimit
		if limit <= 0 {
			limit = 20
		}
		resp := statusResponse{
			Documents: deps.Index.Count(),
			Metrics:   deps.Metrics.Snapshot(),
			Events:    deps.Events.Snapshot(limit),
		}
		jsonBytes, _ := json.MarshalIndent(resp, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
