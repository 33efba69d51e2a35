package agent

import (
	"encoding/json"
	"fmt"

	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/tape"
)

/*
ReplayMessages converts a context slice into the message list a provider
consumes. Message entries map straight through. A tool_call entry opens
a pending set that the next tool_result entry closes, pairing result
content to calls by index. Pending calls still open when another entry
kind arrives, or when the tape ends, flush as empty tool results so the
transcript never carries a call without its reply.
*/
func ReplayMessages(entries []tape.Entry) []provider.Message {
	var messages []provider.Message
	var pending []provider.ToolCall

	flush := func() {
		for _, call := range pending {
			messages = append(messages, toolResultMessage(call, ""))
		}

		pending = nil
	}

	for _, entry := range entries {
		switch entry.Kind {
		case tape.KindMessage:
			flush()
			messages = append(messages, provider.Message{
				Role:       entry.StringField("role"),
				Content:    entry.Content(),
				Name:       entry.StringField("name"),
				ToolCallID: entry.StringField("tool_call_id"),
			})

		case tape.KindToolCall:
			flush()
			calls := decodeToolCalls(entry.Payload["calls"])

			if len(calls) == 0 {
				continue
			}

			messages = append(messages, provider.Message{
				Role:      "assistant",
				ToolCalls: calls,
			})
			pending = calls

		case tape.KindToolResult:
			results, _ := entry.Payload["results"].([]any)

			for index, call := range pending {
				content := ""

				if index < len(results) {
					content = dumpToolResult(results[index])
				}

				messages = append(messages, toolResultMessage(call, content))
			}

			pending = nil
		}
	}

	flush()
	return messages
}

func toolResultMessage(call provider.ToolCall, content string) provider.Message {
	return provider.Message{
		Role:       "tool",
		Content:    content,
		Name:       call.Name,
		ToolCallID: call.ID,
	}
}

/*
decodeToolCalls accepts both the nested function-call wire shape and the
flat one, skipping anything without at least a name or an id.
*/
func decodeToolCalls(raw any) []provider.ToolCall {
	items, ok := raw.([]any)

	if !ok {
		return nil
	}

	var calls []provider.ToolCall

	for _, item := range items {
		fields, ok := item.(map[string]any)

		if !ok {
			continue
		}

		call := provider.ToolCall{}
		call.ID, _ = fields["id"].(string)

		if function, ok := fields["function"].(map[string]any); ok {
			call.Name, _ = function["name"].(string)
			call.Arguments = stringifyArguments(function["arguments"])
		} else {
			call.Name, _ = fields["name"].(string)
			call.Arguments = stringifyArguments(fields["arguments"])
		}

		if call.Name == "" && call.ID == "" {
			continue
		}

		calls = append(calls, call)
	}

	return calls
}

func stringifyArguments(raw any) string {
	switch value := raw.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		encoded, err := json.Marshal(value)

		if err != nil {
			return fmt.Sprintf("%v", value)
		}

		return string(encoded)
	}
}

// dumpToolResult flattens a recorded result to the string form tool
// messages carry. Unserializable values degrade to a typed wrapper
// rather than dropping the result.
func dumpToolResult(value any) string {
	if text, ok := value.(string); ok {
		return text
	}

	encoded, err := json.Marshal(value)

	if err != nil {
		fallback, _ := json.Marshal(map[string]any{
			"_type": fmt.Sprintf("%T", value),
			"value": fmt.Sprintf("%v", value),
		})
		return string(fallback)
	}

	return string(encoded)
}
