package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"passerelle/internal/corpus"
	"passerelle/internal/index"
	"passerelle/internal/metrics"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IngestInput defines the input schema for the ingest tool.
type IngestInput struct {
	Text     string         `json:"text" jsonschema:"required,Raw document text"`
	DocID    string         `json:"doc_id,omitempty" jsonschema:"Document id; assigned sequentially when omitted"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Opaque key-value metadata"`
}

// NewIngestHandler creates the ingest tool handler.
func NewIngestHandler(deps *Dependencies) mcp.ToolHandlerFor[IngestInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (
		*mcp.CallToolResult, any, error,
	) {
		start := time.Now()
		id, err := deps.Index.Ingest(input.Text, input.DocID, input.Metadata)
		if err != nil {
			deps.Metrics.RecordError(metrics.OpIndexIngest)
			switch {
			case errors.Is(err, index.ErrEmptyText):
				return ErrorResult("Text is empty", "Provide non-empty document text"), nil, nil
			case errors.Is(err, index.ErrNoTokens):
				return ErrorResult("No tokens found after cleaning", "Provide text with words of 2+ letters or digits"), nil, nil
			default:
				deps.Logger.Error("ingest persistence failed", "error", err)
				return ErrorResult("Failed to persist the index", "Check disk space and data directory permissions"), nil, nil
			}
		}
		deps.Metrics.RecordTiming(metrics.OpIndexIngest, time.Since(start))

		deps.Logger.Info("document ingested", "doc_id", id, "documents", deps.Index.Count())
		return TextResult(fmt.Sprintf(`{"doc_id": %q, "documents": %d}`, id, deps.Index.Count())), nil, nil
	}
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	Folder     string   `json:"folder,omitempty" jsonschema:"Corpus folder; defaults to the configured one"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"Extension allow-list, default .txt .md .json"`
}

// NewReindexHandler creates the reindex tool handler. Reindexing is a full
// replace of the index, never additive.
func NewReindexHandler(deps *Dependencies, defaultFolder string) mcp.ToolHandlerFor[ReindexInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ReindexInput) (
		*mcp.CallToolResult, any, error,
	) {
		folder := input.Folder
		if folder == "" {
			folder = defaultFolder
		}
		extensions := input.Extensions
		if len(extensions) == 0 {
			extensions = corpus.DefaultExtensions
		}

		count, err := deps.Index.Reindex(folder, extensions)
		if err != nil {
			deps.Logger.Error("reindex failed", "folder", folder, "error", err)
			return ErrorResult("Reindex failed", "Check the folder path and data directory permissions"), nil, nil
		}

		deps.Logger.Info("reindex completed", "folder", folder, "documents", count)
		return TextResult(fmt.Sprintf(`{"documents": %d}`, count)), nil, nil
	}
}
