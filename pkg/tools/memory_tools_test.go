package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/theapemachine/bub-go/pkg/memory"
)

func TestMemoryStoreTool(t *testing.T) {
	memories := memory.New()
	tools := NewMemoryTools(memories)

	t.Run("memory_store", func(t *testing.T) {
		result, err := tools.handleMemoryStore(context.Background(), callReq("memory_store", map[string]any{
			"content": "Test content",
			"tags":    []interface{}{"topic", "testing"},
		}))
		if err != nil {
			t.Fatalf("memory_store failed: %v", err)
		}

		id := resultText(t, result)
		if id == "" {
			t.Fatalf("expected non-empty memory ID")
		}

		mem, found := memories.Get(id)
		if !found {
			t.Fatalf("memory not found with ID: %s", id)
		}

		if mem.Content != "Test content" {
			t.Fatalf("content mismatch, got: %s", mem.Content)
		}

		if len(mem.Tags) != 2 || mem.Tags[0] != "topic" {
			t.Fatalf("tags not stored correctly: %v", mem.Tags)
		}
	})

	t.Run("tags as comma string", func(t *testing.T) {
		result, err := tools.handleMemoryStore(context.Background(), callReq("memory_store", map[string]any{
			"content": "More content",
			"tags":    "alpha, beta",
		}))
		if err != nil {
			t.Fatalf("memory_store failed: %v", err)
		}

		mem, _ := memories.Get(resultText(t, result))
		if len(mem.Tags) != 2 || mem.Tags[1] != "beta" {
			t.Fatalf("tags not split correctly: %v", mem.Tags)
		}
	})

	t.Run("requires content", func(t *testing.T) {
		if _, err := tools.handleMemoryStore(context.Background(), callReq("memory_store", map[string]any{})); err == nil {
			t.Fatalf("expected error for missing content")
		}
	})
}

func TestMemoryQueryTool(t *testing.T) {
	memories := memory.New()
	tools := NewMemoryTools(memories)

	id := memories.Remember("Query test content", "query")

	result, err := tools.handleMemoryQuery(context.Background(), callReq("memory_query", map[string]any{
		"id": id,
	}))
	if err != nil {
		t.Fatalf("memory_query failed: %v", err)
	}

	var mem memory.Memory
	if err := json.Unmarshal([]byte(resultText(t, result)), &mem); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}

	if mem.ID != id || mem.Content != "Query test content" {
		t.Fatalf("memory mismatch: %+v", mem)
	}

	if _, err := tools.handleMemoryQuery(context.Background(), callReq("memory_query", map[string]any{
		"id": "missing",
	})); err == nil {
		t.Fatalf("expected error for unknown ID")
	}
}

func TestMemorySearchTool(t *testing.T) {
	memories := memory.New()
	tools := NewMemoryTools(memories)

	memories.Remember("Apple is a fruit", "fruits")
	memories.Remember("Banana is yellow", "fruits")

	result, err := tools.handleMemorySearch(context.Background(), callReq("memory_search", map[string]any{
		"query": "fruit",
		"limit": float64(5),
	}))
	if err != nil {
		t.Fatalf("memory_search failed: %v", err)
	}

	var results []memory.Memory
	if err := json.Unmarshal([]byte(resultText(t, result)), &results); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}

	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
}
