// Package mcp exposes read-only marketplace discovery as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	serverName    = "automatehub"
	serverVersion = "1.0.0"
)

// Server hosts the MCP tool server.
type Server struct {
	mcpServer *mcp.Server
	logger    *zap.Logger
}

// New registers the discovery tools over experts and projects.
func New(experts ExpertReader, projects ProjectReader, logger *zap.Logger) (*Server, error) {
	if experts == nil || projects == nil {
		return nil, errors.New("expert and project readers are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, SearchExpertsTool(), SearchExpertsHandler(experts))
	mcp.AddTool(mcpServer, GetExpertTool(), GetExpertHandler(experts))
	mcp.AddTool(mcpServer, ListOpenProjectsTool(), ListOpenProjectsHandler(projects))
	return &Server{mcpServer: mcpServer, logger: logger}, nil
}

// Serve runs over stdio until ctx ends or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeTransport(ctx, &mcp.StdioTransport{})
}

// ServeTransport runs over transport until ctx ends or the client
// disconnects.
func (s *Server) ServeTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("MCP server is not configured")
	}
	s.logger.Info("mcp server started")
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
