// Package mcp implements the Model Context Protocol server for cleargate,
// exposing entity screening and graph traversal as assistant tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bouksibkhalid-create/cleargate/internal/aggregate"
	"github.com/bouksibkhalid-create/cleargate/internal/graph"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// Server wraps an MCPServer with cleargate dependencies. The graph service
// may be nil; the connections tool then returns an error result.
type Server struct {
	mcp    *mcpserver.MCPServer
	agg    *aggregate.Aggregator
	graphs *graph.Service
	logger *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(agg *aggregate.Aggregator, graphs *graph.Service, logger *slog.Logger) *Server {
	s := &Server{agg: agg, graphs: graphs, logger: logger}

	mcpSrv := mcpserver.NewMCPServer(
		"cleargate",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildScreenTool(), s.handleScreen)
	mcpSrv.AddTool(buildConnectionsTool(), s.handleConnections)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleScreen is the exported handler for the "screen_entity" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleScreen(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleScreen(ctx, req)
}

// HandleConnections is the exported handler for the "entity_connections" tool.
func (s *Server) HandleConnections(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleConnections(ctx, req)
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildScreenTool() mcpgo.Tool {
	return mcpgo.NewTool("screen_entity",
		mcpgo.WithDescription("Screen a person or organization against sanctions lists and offshore-leaks data. Returns per-source matches with similarity scores."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("Name of the person or organization to screen"),
		),
		mcpgo.WithString("search_type",
			mcpgo.Description("Matching mode: exact or fuzzy (default: fuzzy)"),
		),
		mcpgo.WithString("sources",
			mcpgo.Description("Comma-separated sources to search: opensanctions, sanctions_io, offshore_leaks (default: all)"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum results per source, 1-50 (default: 10)"),
		),
		mcpgo.WithNumber("fuzzy_threshold",
			mcpgo.Description("Minimum match score 0-100 kept in fuzzy mode (default: 80)"),
		),
	)
}

func buildConnectionsTool() mcpgo.Tool {
	return mcpgo.NewTool("entity_connections",
		mcpgo.WithDescription("Traverse the offshore-leaks graph around a node and return its relationship neighborhood."),
		mcpgo.WithNumber("node_id",
			mcpgo.Required(),
			mcpgo.Description("Graph node id, as returned in offshore_leaks search results"),
		),
		mcpgo.WithNumber("depth",
			mcpgo.Description("Traversal depth, 1-3 (default: 2)"),
		),
		mcpgo.WithNumber("max_nodes",
			mcpgo.Description("Maximum nodes returned, 1-100 (default: 50)"),
		),
	)
}

// --- tool handlers ---

func (s *Server) handleScreen(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}

	search := models.SearchRequest{
		Query:          query,
		SearchType:     models.SearchMode(req.GetString("search_type", "")),
		Limit:          req.GetInt("limit", 0),
		FuzzyThreshold: req.GetInt("fuzzy_threshold", 0),
	}
	if raw := req.GetString("sources", ""); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				search.Sources = append(search.Sources, models.SourceID(part))
			}
		}
	}

	env, err := s.agg.Search(ctx, search)
	if err != nil {
		return mcpgo.NewToolResultErrorf("invalid request: %s", err.Error()), nil
	}

	s.logger.Info("mcp: screened entity",
		"query", env.Query, "total_results", env.TotalResults, "total_sanctioned", env.TotalSanctioned)
	return toolResultJSON(env)
}

func (s *Server) handleConnections(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.graphs == nil {
		return mcpgo.NewToolResultError("offshore graph is unavailable"), nil
	}

	conn := models.ConnectionRequest{
		NodeID:   int64(req.GetInt("node_id", -1)),
		Depth:    req.GetInt("depth", 0),
		MaxNodes: req.GetInt("max_nodes", 0),
	}
	if conn.NodeID < 0 {
		return mcpgo.NewToolResultError("node_id is required and must not be negative"), nil
	}

	resp, err := s.graphs.Connections(ctx, conn)
	if err != nil {
		return mcpgo.NewToolResultErrorf("traversal failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: traversed connections",
		"node_id", conn.NodeID, "nodes", resp.Graph.NodeCount, "edges", resp.Graph.EdgeCount)
	return toolResultJSON(resp)
}
