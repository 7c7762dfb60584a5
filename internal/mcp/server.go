// Package mcp provides a Model Context Protocol server for NexIntel.
//
// It exposes persisted textual factors, their observations, and store
// statistics as MCP tools over stdio transport, so an MCP-capable
// client can browse pipeline output without touching SQLite directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/RusaUB/nexintel/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string
}

// dbMu serializes MCP tool calls that touch the database. The mcp-go
// library dispatches handlers concurrently; SQLite supports only one
// writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all NexIntel tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"NexIntel",
		ver,
		server.WithToolCapabilities(false),
	)

	registerFactorsTool(s, cfg.Store)
	registerObservationsTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerFactorsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("nexintel_factors",
		mcp.WithDescription("List persisted textual factors, newest first. Optionally filter by agent name or date (YYYY-MM-DD)."),
		mcp.WithString("agent",
			mcp.Description("Filter by agent name (e.g. 'NewsDataAgent' or 'NewsDataAgent#etf')"),
		),
		mcp.WithString("date",
			mcp.Description("Filter by factor date, YYYY-MM-DD"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		opts := store.ListOpts{Limit: 20}
		if agent, err := req.RequireString("agent"); err == nil && agent != "" {
			opts.AgentName = agent
		}
		if date, err := req.RequireString("date"); err == nil && date != "" {
			opts.Date = date
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > 100 {
				limit = 100
			}
			if limit > 0 {
				opts.Limit = limit
			}
		}

		rows, err := st.ListFactors(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing factors: %v", err)), nil
		}
		data, _ := json.MarshalIndent(rows, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerObservationsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("nexintel_observations",
		mcp.WithDescription("List the observations inside one textual factor, in insert order."),
		mcp.WithNumber("factor_id",
			mcp.Required(),
			mcp.Description("The factor ID from nexintel_factors"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		idVal, err := req.RequireFloat("factor_id")
		if err != nil {
			return mcp.NewToolResultError("factor_id is required"), nil
		}

		obs, err := st.ListObservations(ctx, int64(idVal))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing observations: %v", err)), nil
		}
		data, _ := json.MarshalIndent(obs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("nexintel_stats",
		mcp.WithDescription("Show store statistics: run, factor and observation counts plus database size."),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading stats: %v", err)), nil
		}
		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
