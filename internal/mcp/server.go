package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"cronista/internal/check"
	"cronista/internal/config"
	"cronista/internal/store"
)

// Server exposes the knowledge base read-only over MCP. It works on a
// snapshot of the collections loaded at startup; mutations go through the
// CLI, never through here.
type Server struct {
	cols    *store.Collections
	checker *check.Checker
	mcp     *sdk.Server
}

func NewServer(cols *store.Collections, h *config.Heuristics, version string) *Server {
	s := &Server{
		cols:    cols,
		checker: check.New(h),
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "cronista",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
