package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/theapemachine/bub-go/pkg/tape"
)

const (
	argsMaxValues = 4
	argsMaxLen    = 24

	humanResultLen = 90
	humanLineLen   = 120
)

// orderedKeys fixes the display order of payload fields per entry kind.
// Unknown kinds fall back to sorted payload keys.
var orderedKeys = map[string][]string{
	tape.KindMessage:    {"role", "content"},
	tape.KindEvent:      {"name", "data"},
	tape.KindAnchor:     {"name", "state"},
	tape.KindSystem:     {"content"},
	tape.KindError:      {"kind", "message", "details"},
	tape.KindToolCall:   {"calls"},
	tape.KindToolResult: {"results"},
}

// KindLabel is the short badge text for an entry kind.
func KindLabel(kind string) string {
	return truncateRunes(strings.ToUpper(kind), 10)
}

/*
HumanText reduces an entry to a one-line summary. Tool calls render as
name(args) lists, tool results surface their first message, messages
lead with their role, and everything else falls through name and data
fields down to compact JSON.
*/
func HumanText(entry tape.Entry) string {
	payload := entry.Payload

	if payload == nil {
		payload = map[string]any{}
	}

	if calls, ok := payload["calls"].([]any); ok && len(calls) > 0 {
		return callsSummary(calls)
	}

	if results, ok := payload["results"].([]any); ok {
		return resultsSummary(results)
	}

	if content, ok := payload["content"].(string); ok && strings.TrimSpace(content) != "" {
		line := strings.ReplaceAll(strings.TrimSpace(content), "\n", " ")

		if role, ok := payload["role"].(string); ok && strings.TrimSpace(role) != "" {
			return role + ": " + line
		}

		return line
	}

	for _, key := range []string{"message", "name", "content"} {
		value, ok := payload[key].(string)

		if !ok || strings.TrimSpace(value) == "" {
			continue
		}

		line := truncateRunes(strings.TrimSpace(value), humanLineLen)

		if key == "name" && entry.Kind == tape.KindEvent {
			if data, ok := payload["data"].(map[string]any); ok && len(data) > 0 {
				line += " (" + strings.Join(sortedKeys(data, 3), ", ") + ")"
			}
			line = "event: " + line
		}

		if key == "name" && entry.Kind == tape.KindAnchor {
			if state, ok := payload["state"].(map[string]any); ok {
				if phase, ok := state["phase"].(string); ok && strings.TrimSpace(phase) != "" {
					line += " (" + strings.TrimSpace(phase) + ")"
				}
			}
		}

		return line
	}

	if data, ok := payload["data"].(map[string]any); ok {
		for _, key := range []string{"message", "error", "name", "status"} {
			if value, ok := data[key].(string); ok && strings.TrimSpace(value) != "" {
				return truncateRunes(strings.TrimSpace(value), humanLineLen)
			}
		}
	}

	compact, err := json.Marshal(payload)

	if err != nil {
		return truncateRunes(fmt.Sprintf("%v", payload), humanLineLen)
	}

	return truncateRunes(string(compact), humanLineLen)
}

func callsSummary(calls []any) string {
	var parts []string

	for index, raw := range calls {
		if index == 3 {
			break
		}

		call, ok := raw.(map[string]any)

		if !ok {
			continue
		}

		name := "?"
		var arguments any

		if function, ok := call["function"].(map[string]any); ok {
			if text, ok := function["name"].(string); ok {
				name = text
			}
			arguments = function["arguments"]
		}

		if summary := argsSummary(arguments); summary != "" {
			parts = append(parts, name+"("+summary+")")
		} else {
			parts = append(parts, name+"()")
		}
	}

	if len(calls) > 3 {
		parts = append(parts, "...")
	}

	if len(parts) == 0 {
		return tape.KindToolCall
	}

	return strings.Join(parts, ", ")
}

func resultsSummary(results []any) string {
	if len(results) == 0 {
		return "tool_result (0 results)"
	}

	switch first := results[0].(type) {
	case map[string]any:
		for _, key := range []string{"message", "error", "content"} {
			if value, ok := first[key].(string); ok && strings.TrimSpace(value) != "" {
				return truncateRunes(strings.TrimSpace(value), humanResultLen)
			}
		}
	case string:
		if strings.TrimSpace(first) != "" {
			return truncateRunes(strings.TrimSpace(first), humanResultLen)
		}
	}

	return fmt.Sprintf("results: %d item(s)", len(results))
}

// argsSummary pulls the first few parameter values out of a JSON string
// or object and flattens them into a short comma list.
func argsSummary(raw any) string {
	var fields map[string]any

	switch value := raw.(type) {
	case map[string]any:
		fields = value
	case string:
		if strings.TrimSpace(value) == "" {
			return ""
		}
		if err := json.Unmarshal([]byte(value), &fields); err != nil {
			return ""
		}
	default:
		return ""
	}

	if len(fields) == 0 {
		return ""
	}

	var parts []string

	for _, key := range sortedKeys(fields, argsMaxValues) {
		text := strings.ReplaceAll(strings.TrimSpace(fmt.Sprintf("%v", fields[key])), "\n", " ")

		if len([]rune(text)) > argsMaxLen {
			text = truncateRunes(text, argsMaxLen-1) + "..."
		}

		parts = append(parts, text)
	}

	return strings.Join(parts, ", ")
}

/*
StructuredLines expands an entry payload into display rows: the kind's
ordered keys first, any remaining keys after, lists of objects as
numbered blocks. An empty payload yields a single placeholder row.
*/
func StructuredLines(entry tape.Entry) []string {
	payload := entry.Payload

	if payload == nil {
		payload = map[string]any{}
	}

	ordered := orderedKeys[entry.Kind]

	if ordered == nil {
		ordered = sortedKeys(payload, 0)
	}

	seen := map[string]bool{}
	var lines []string

	for _, key := range ordered {
		value, ok := payload[key]

		if !ok {
			continue
		}

		seen[key] = true
		lines = append(lines, structuredValue(key, value)...)
	}

	for _, key := range sortedKeys(payload, 0) {
		if !seen[key] {
			lines = append(lines, structuredValue(key, payload[key])...)
		}
	}

	if len(lines) == 0 {
		lines = append(lines, kvRow("payload", "(empty)"))
	}

	return lines
}

// structuredValue renders one payload field: lists become numbered
// blocks, everything else a single key/value row.
func structuredValue(key string, value any) []string {
	items, ok := value.([]any)

	if !ok {
		return []string{kvRow(key, value)}
	}

	var lines []string

	for index, item := range items {
		title := fmt.Sprintf("%s %d:", key, index+1)

		fields, ok := item.(map[string]any)

		if !ok {
			lines = append(lines, title, "  "+kvRow("value", item))
			continue
		}

		if key == "calls" {
			name, arguments := callFields(fields)
			lines = append(lines,
				title,
				"  "+kvRow("id", fields["id"]),
				"  "+kvRow("name", name),
				"  "+kvRow("arguments", arguments),
			)
			continue
		}

		lines = append(lines, title)

		for _, fieldKey := range sortedKeys(fields, 0) {
			lines = append(lines, "  "+kvRow(fieldKey, fields[fieldKey]))
		}
	}

	if len(lines) == 0 {
		return []string{kvRow(key, value)}
	}

	return lines
}

func callFields(call map[string]any) (any, any) {
	function, ok := call["function"].(map[string]any)

	if !ok {
		return nil, nil
	}

	arguments := function["arguments"]

	// JSON-string arguments display as their decoded object.
	if text, ok := arguments.(string); ok && strings.TrimSpace(text) != "" {
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			arguments = decoded
		}
	}

	return function["name"], arguments
}

func kvRow(key string, value any) string {
	switch value.(type) {
	case map[string]any, []any, []string:
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err == nil {
			return key + ": " + string(encoded)
		}
	}

	return key + ": " + fmt.Sprintf("%v", value)
}

// sortedKeys returns up to limit keys in sorted order; limit 0 means
// all of them.
func sortedKeys(fields map[string]any, limit int) []string {
	keys := make([]string, 0, len(fields))

	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	return keys
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)

	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit])
}
