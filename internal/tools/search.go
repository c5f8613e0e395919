package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"required,The search query text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Max results, default 3"`
}

// searchResponse wraps the hits for JSON output.
type searchResponse struct {
	Results []any `json:"results"`
	Count   int   `json:"count"`
}

// NewSearchHandler creates the search tool handler over the TF-IDF index.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Query == "" {
			return ErrorResult("Query cannot be empty", "Provide a search query"), nil, nil
		}
		topK := input.TopK
		if topK <= 0 {
			topK = 3
		}

		hits := deps.Index.Search(input.Query, topK)

		resp := searchResponse{Results: make([]any, 0, len(hits)), Count: len(hits)}
		for _, hit := range hits {
			resp.Results = append(resp.Results, hit)
		}
		jsonBytes, _ := json.MarshalIndent(resp, "", "  ")

		deps.Logger.Info("search completed",
			"query", truncateForLog(input.Query, 30),
			"results", len(hits),
		)
		return TextResult(string(jsonBytes)), nil, nil
	}
}
