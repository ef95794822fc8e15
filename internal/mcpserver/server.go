// Package mcpserver exposes the memory subsystem, task files, and the
// scheduled-message store as MCP tools over stdio, so the CLI runtimes
// running inside sessions can write memory and schedule reminders through
// the same code paths the daemon uses.
package mcpserver

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/crewly-ai/crewly/internal/memory"
	"github.com/crewly-ai/crewly/internal/scheduler"
)

// Server hosts the MCP tool server over stdio (single client: the CLI
// runtime that spawned us).
type Server struct {
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New builds the tool server against the given stores.
func New(mem *memory.Store, sched *scheduler.Store, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mcpServer := server.NewMCPServer(
		"crewly",
		version,
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, mem, sched, logger)
	return &Server{mcp: mcpServer, logger: logger.With("component", "mcpserver")}
}

// ServeStdio blocks serving stdin/stdout until the client disconnects or
// ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
