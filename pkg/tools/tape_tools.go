package tools

// This file implements tape tools that let MCP clients inspect and steer a
// conversation tape: info, anchors, search, handoff, and reset.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/render"
	"github.com/theapemachine/bub-go/pkg/tape"
)

/*
TapeTools bundles the MCP tools that operate on a single conversation tape
through its agent.
*/
type TapeTools struct {
	store     tape.Store
	tapeAgent *agent.Agent
}

func NewTapeTools(store tape.Store, tapeAgent *agent.Agent) *TapeTools {
	return &TapeTools{
		store:     store,
		tapeAgent: tapeAgent,
	}
}

// RegisterTapeTools attaches all tape tools to the supplied MCP server instance.
func (tt *TapeTools) RegisterTapeTools(srv *server.MCPServer) {
	srv.AddTool(buildTapeInfoTool(), tt.handleTapeInfo)
	srv.AddTool(buildTapeAnchorsTool(), tt.handleTapeAnchors)
	srv.AddTool(buildTapeSearchTool(), tt.handleTapeSearch)
	srv.AddTool(buildTapeHandoffTool(), tt.handleTapeHandoff)
	srv.AddTool(buildTapeResetTool(), tt.handleTapeReset)
}

// ---------------------------------------------------------------------------
// Tape tool builders (schema only, no execution logic)
// ---------------------------------------------------------------------------

func buildTapeInfoTool() mcp.Tool {
	return mcp.NewTool(
		"tape_info",
		mcp.WithDescription("Reports the current tape: name, entry count, anchor count, estimated tokens, and token health."),
	)
}

func buildTapeAnchorsTool() mcp.Tool {
	return mcp.NewTool(
		"tape_anchors",
		mcp.WithDescription("Lists the handoff anchors recorded on the tape, oldest first, with their phase, summary, and facts."),
	)
}

func buildTapeSearchTool() mcp.Tool {
	return mcp.NewTool(
		"tape_search",
		mcp.WithDescription("Searches tape entries for a substring and returns the newest matches first."),
		mcp.WithString("query",
			mcp.Description("Search term (case-insensitive substring match)"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of matches to return (default 5, 0 = no limit)"),
		),
	)
}

func buildTapeHandoffTool() mcp.Tool {
	return mcp.NewTool(
		"tape_handoff",
		mcp.WithDescription("Records a handoff anchor on the tape so a later session can resume from it."),
		mcp.WithString("name",
			mcp.Description("Anchor name; normalized to a 'handoff:' name unless it already carries a prefix"),
			mcp.Required(),
		),
		mcp.WithString("phase",
			mcp.Description("Short phase label, e.g. 'Implementation'"),
		),
		mcp.WithString("summary",
			mcp.Description("One-paragraph summary of where the work stands"),
		),
		mcp.WithArray("facts",
			mcp.Description("Facts to carry across the handoff; a list of strings, or one string with a fact per line"),
		),
	)
}

func buildTapeResetTool() mcp.Tool {
	return mcp.NewTool(
		"tape_reset",
		mcp.WithDescription("Archives the current tape and starts a fresh one with a bootstrap anchor."),
	)
}

// ---------------------------------------------------------------------------
// Tape tool handlers
// ---------------------------------------------------------------------------

func (tt *TapeTools) handleTapeInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := tt.tapeAgent.Snapshot(ctx, tape.ViewLatest, "")
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot tape: %v", err)
	}

	info := map[string]any{
		"tape":             snapshot.TapeName,
		"entries":          snapshot.TotalEntries(),
		"anchors":          len(snapshot.Anchors),
		"estimated_tokens": snapshot.EstimatedTokens,
		"health":           render.TokenHealth(snapshot.EstimatedTokens),
	}

	b, _ := json.Marshal(info)
	return mcp.NewToolResultText(string(b)), nil
}

func (tt *TapeTools) handleTapeAnchors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := tt.tapeAgent.Snapshot(ctx, tape.ViewFull, "")
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot tape: %v", err)
	}

	b, _ := json.MarshalIndent(snapshot.Anchors, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (tt *TapeTools) handleTapeSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	// `limit` might come through as float64 (JSON spec) or string, handle both.
	limit := 5
	if rawLimit, ok := args["limit"]; ok {
		switch v := rawLimit.(type) {
		case float64:
			limit = int(v)
		case int:
			limit = v
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				limit = i
			}
		}
	}

	entries, err := tt.store.Read(ctx, tt.tapeAgent.TapeName())
	if err != nil {
		return nil, fmt.Errorf("failed to read tape: %v", err)
	}

	needle := strings.ToLower(query)
	var matches []map[string]any

	// newest matches first.
	for i := len(entries) - 1; i >= 0; i-- {
		text := render.HumanText(entries[i])

		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}

		matches = append(matches, map[string]any{
			"id":   entries[i].ID,
			"kind": entries[i].Kind,
			"text": text,
		})

		if limit > 0 && len(matches) >= limit {
			break
		}
	}

	b, _ := json.Marshal(map[string]any{
		"query":   query,
		"count":   len(matches),
		"matches": matches,
	})
	return mcp.NewToolResultText(string(b)), nil
}

func (tt *TapeTools) handleTapeHandoff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	name, _ := args["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name parameter is required")
	}

	phase, _ := args["phase"].(string)
	summary, _ := args["summary"].(string)

	// Facts may arrive as a JSON list or as a single newline-separated string.
	var facts []string
	if rawFacts, ok := args["facts"]; ok {
		switch v := rawFacts.(type) {
		case []interface{}:
			for _, fact := range v {
				if factStr, ok := fact.(string); ok && strings.TrimSpace(factStr) != "" {
					facts = append(facts, strings.TrimSpace(factStr))
				}
			}
		case string:
			for _, line := range strings.Split(v, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					facts = append(facts, line)
				}
			}
		}
	}

	state, err := tt.tapeAgent.Handoff(ctx, name, phase, summary, facts)
	if err != nil {
		return nil, fmt.Errorf("failed to record handoff: %v", err)
	}

	result := map[string]any{
		"status":  "success",
		"anchor":  state.Name,
		"label":   state.Label,
		"message": "Handoff created: " + state.Name,
	}
	b, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(b)), nil
}

func (tt *TapeTools) handleTapeReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	archived, err := tt.tapeAgent.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reset tape: %v", err)
	}

	result := map[string]any{
		"status":   "success",
		"archived": archived,
	}
	b, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(b)), nil
}
