package tools

import (
	"context"
	"encoding/json"

	"passerelle/internal/governance"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GovernanceCheckInput defines the input schema for the governance check.
type GovernanceCheckInput struct {
	Action       string         `json:"action" jsonschema:"required,Action tag, e.g. export_data or read_document"`
	ExternalCall bool           `json:"external_call,omitempty" jsonschema:"Whether the action reaches outside the system"`
	Destination  string         `json:"destination,omitempty" jsonschema:"Target host for external calls"`
	Payload      map[string]any `json:"payload,omitempty" jsonschema:"Action payload, audited but not inspected"`
	User         string         `json:"user,omitempty" jsonschema:"Caller identity"`
	Role         string         `json:"role,omitempty" jsonschema:"Caller role"`
	Region       string         `json:"region,omitempty" jsonschema:"Caller region; defaults to the sovereign region"`
}

// NewGovernanceCheckHandler creates the governance validation handler.
// A denial is a first-class outcome, not an error.
func NewGovernanceCheckHandler(deps *Dependencies, defaultRegion string) mcp.ToolHandlerFor[GovernanceCheckInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GovernanceCheckInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Action == "" {
			return ErrorResult("Action is required", "Provide the action tag to validate"), nil, nil
		}
		region := input.Region
		if region == "" {
			region = defaultRegion
		}

		decision := deps.Gate.Validate(
			governance.Context{UserID: input.User, UserRole: input.Role, Region: region},
			governance.Request{
				Action:       input.Action,
				ExternalCall: input.ExternalCall,
				Destination:  input.Destination,
				Payload:      input.Payload,
			},
		)

		deps.Logger.Info("governance check",
			"action", input.Action,
			"allowed", decision.Allowed,
			"reason", decision.Reason,
		)
		jsonBytes, _ := json.MarshalIndent(decision, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// AuditSummaryInput defines the (empty) input schema for audit_summary.
type AuditSummaryInput struct{}

// NewAuditSummaryHandler creates the audit aggregation handler.
func NewAuditSummaryHandler(deps *Dependencies) mcp.ToolHandlerFor[AuditSummaryInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AuditSummaryInput) (
		*mcp.CallToolResult, any, error,
	) {
		summary := deps.Gate.AuditSummary()
		jsonBytes, _ := json.MarshalIndent(summary, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
