package tools

import (
	"passerelle/internal/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// Called from the serve command after server creation, before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies, cfg config.Config) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Run one chat turn through the policy-governed generation router",
	}, NewChatHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Rank indexed documents against a query with TF-IDF cosine similarity",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest",
		Description: "Add or replace a document in the local vector index",
	}, NewIngestHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild the index from the corpus folder (full replace)",
	}, NewReindexHandler(deps, cfg.CorpusDir))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "governance_check",
		Description: "Validate a flagged action against the sovereign-region policy",
	}, NewGovernanceCheckHandler(deps, cfg.Region))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit_summary",
		Description: "Aggregate the in-memory governance audit trail",
	}, NewAuditSummaryHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Runtime statistics and the recent event tail",
	}, NewStatusHandler(deps))
}
