// Package server wraps the MCP server exposing the gateway tools over stdio.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"passerelle/internal/config"
	"passerelle/internal/tools"
)

// Server bundles the MCP server with the gateway dependencies.
type Server struct {
	mcp    *mcp.Server
	deps   *tools.Dependencies
	cfg    config.Config
	logger *slog.Logger
}

// New creates the MCP server for the given version and dependency set.
func New(version string, deps *tools.Dependencies, cfg config.Config, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "passerelle",
		Version: version,
	}

	return &Server{
		mcp:    mcp.NewServer(impl, nil),
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
}

// Setup installs middleware and registers every gateway tool.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
	tools.RegisterAll(s.mcp, s.deps, s.cfg)
}

// Run serves on stdio and blocks until disconnect or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
