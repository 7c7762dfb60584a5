package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/RusaUB/nexintel/internal/factor"
	"github.com/RusaUB/nexintel/internal/store"
)

// setupTestStore creates an in-memory store with one persisted run.
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	runID, err := s.BeginRun(ctx, "NewsDataAgent", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	factors := []*factor.TextualFactor{
		{
			Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			AgentName: "NewsDataAgent#etf",
			Observations: []factor.Observation{
				{Text: "Spot BTC ETF inflows hit a weekly record.", Asset: "BTC", Rating: 2, Tags: []string{"etf"}},
			},
			Preference:   "etf",
			LengthTokens: 12,
		},
	}
	if err := s.SaveFactors(ctx, runID, factors); err != nil {
		t.Fatalf("SaveFactors: %v", err)
	}
	if err := s.FinishRun(ctx, runID, 3, 1, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	return s
}

func TestNewServer(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Version: "test"})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the server's JSON-RPC handler.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestFactorsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "nexintel_factors", map[string]interface{}{
		"agent": "NewsDataAgent#etf",
	})
	text := getTextContent(t, result)
	if !strings.Contains(text, "NewsDataAgent#etf") {
		t.Errorf("factors output missing agent name: %s", text)
	}
}

func TestObservationsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	rows, err := s.ListFactors(context.Background(), store.ListOpts{})
	if err != nil || len(rows) == 0 {
		t.Fatalf("listing factors: %v", err)
	}

	result := callTool(t, srv, "nexintel_observations", map[string]interface{}{
		"factor_id": float64(rows[0].ID),
	})
	text := getTextContent(t, result)
	if !strings.Contains(text, "ETF inflows") {
		t.Errorf("observations output missing text: %s", text)
	}

	missing := callTool(t, srv, "nexintel_observations", map[string]interface{}{})
	if !missing.IsError {
		t.Error("expected error when factor_id is absent")
	}
}

func TestStatsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "nexintel_stats", map[string]interface{}{})
	text := getTextContent(t, result)
	if !strings.Contains(text, "FactorCount") {
		t.Errorf("stats output missing counts: %s", text)
	}
}
