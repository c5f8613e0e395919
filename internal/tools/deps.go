// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"
	"strings"

	"passerelle/internal/governance"
	"passerelle/internal/index"
	"passerelle/internal/journal"
	"passerelle/internal/metrics"
	"passerelle/internal/router"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Router  *router.Router
	Index   *index.Index
	Gate    *governance.Gate
	Events  *journal.EventStore
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// ErrorResult creates a tool error result with an optional recovery hint.
// IsError is set so the calling model can see the failure and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// truncateForLog shortens free text for log attributes.
func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit]) + "..."
}
