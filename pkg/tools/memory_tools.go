package tools

// This file implements memory tools so MCP clients can persist facts across
// conversations and recall them later.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/bub-go/pkg/memory"
)

/*
MemoryTools bundles the MCP tools backed by a memory store.
*/
type MemoryTools struct {
	memories *memory.Store
}

func NewMemoryTools(memories *memory.Store) *MemoryTools {
	if memories == nil {
		memories = memory.New()
	}

	return &MemoryTools{memories: memories}
}

// RegisterMemoryTools attaches all memory tools to the supplied MCP server instance.
func (mt *MemoryTools) RegisterMemoryTools(srv *server.MCPServer) {
	srv.AddTool(buildMemoryStoreTool(), mt.handleMemoryStore)
	srv.AddTool(buildMemoryQueryTool(), mt.handleMemoryQuery)
	srv.AddTool(buildMemorySearchTool(), mt.handleMemorySearch)
}

// ---------------------------------------------------------------------------
// Memory tool builders (schema only, no execution logic)
// ---------------------------------------------------------------------------

func buildMemoryStoreTool() mcp.Tool {
	return mcp.NewTool(
		"memory_store",
		mcp.WithDescription("Stores a piece of content in the memory store and returns the generated memory ID."),
		mcp.WithString("content",
			mcp.Description("Textual content to remember"),
			mcp.Required(),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags to attach; a list of strings, or one comma-separated string"),
		),
	)
}

func buildMemoryQueryTool() mcp.Tool {
	return mcp.NewTool(
		"memory_query",
		mcp.WithDescription("Retrieves a previously stored memory by ID."),
		mcp.WithString("id",
			mcp.Description("Memory ID returned by memory_store"),
			mcp.Required(),
		),
	)
}

func buildMemorySearchTool() mcp.Tool {
	return mcp.NewTool(
		"memory_search",
		mcp.WithDescription("Performs a substring search across stored memories and returns the newest matches first."),
		mcp.WithString("query",
			mcp.Description("Search term (case-insensitive substring match against content and tags)"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of matches to return (0 = no limit)"),
		),
	)
}

// ---------------------------------------------------------------------------
// Memory tool handlers
// ---------------------------------------------------------------------------

func (mt *MemoryTools) handleMemoryStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	content, _ := args["content"].(string)
	if content == "" {
		return nil, fmt.Errorf("content parameter is required")
	}

	// Tags may arrive as a JSON list or as a single comma-separated string.
	var tags []string
	if rawTags, ok := args["tags"]; ok {
		switch v := rawTags.(type) {
		case []interface{}:
			for _, tag := range v {
				if tagStr, ok := tag.(string); ok && tagStr != "" {
					tags = append(tags, tagStr)
				}
			}
		case string:
			for _, tag := range strings.Split(v, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
		}
	}

	id := mt.memories.Remember(content, tags...)
	return mcp.NewToolResultText(id), nil
}

func (mt *MemoryTools) handleMemoryQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("id parameter is required")
	}

	mem, ok := mt.memories.Get(id)
	if !ok {
		return nil, fmt.Errorf("memory not found")
	}

	// Compact JSON result.
	b, _ := json.Marshal(mem)
	return mcp.NewToolResultText(string(b)), nil
}

func (mt *MemoryTools) handleMemorySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	// `limit` might come through as float64 (JSON spec) or string, handle both.
	var limit int
	switch v := args["limit"].(type) {
	case float64:
		limit = int(v)
	case int:
		limit = v
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			limit = i
		}
	}

	results := mt.memories.Search(query, limit)
	b, _ := json.Marshal(results)
	return mcp.NewToolResultText(string(b)), nil
}
