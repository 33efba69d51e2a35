package tape

import (
	"fmt"
	"strings"
)

// Entry kinds known to the tape. The set is open: unknown kinds are stored
// and rendered generically.
const (
	KindMessage    = "message"
	KindEvent      = "event"
	KindAnchor     = "anchor"
	KindSystem     = "system"
	KindError      = "error"
	KindToolCall   = "tool_call"
	KindToolResult = "tool_result"
)

/*
Entry is a single record on a tape. Entries are append-only and numbered
per tape starting from 1.
*/
type Entry struct {
	ID      int64          `json:"id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
	Meta    map[string]any `json:"meta"`
}

/*
NewEntry validates kind and payload and returns an Entry with ID 0. The
store assigns the real ID on append.
*/
func NewEntry(kind string, payload, meta map[string]any) (Entry, error) {
	kind = strings.TrimSpace(kind)

	if kind == "" {
		return Entry{}, fmt.Errorf("entry kind cannot be empty")
	}

	if err := ValidatePayload(kind, payload); err != nil {
		return Entry{}, err
	}

	if meta == nil {
		meta = map[string]any{}
	}

	return Entry{Kind: kind, Payload: payload, Meta: meta}, nil
}

/*
ValidatePayload enforces the per-kind payload contract: message entries
need a non-empty role and content, anchor entries a non-empty name.
*/
func ValidatePayload(kind string, payload map[string]any) error {
	if payload == nil {
		return fmt.Errorf("entry payload must be an object")
	}

	switch kind {
	case KindMessage:
		role, _ := payload["role"].(string)
		content, _ := payload["content"].(string)

		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("message entry requires a role")
		}

		if content == "" {
			return fmt.Errorf("message entry requires content")
		}
	case KindAnchor:
		name, _ := payload["name"].(string)

		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("anchor entry requires a name")
		}
	}

	return nil
}

// StringField returns a trimmed string payload field, or "" when absent or
// not a string.
func (entry Entry) StringField(key string) string {
	value, _ := entry.Payload[key].(string)
	return strings.TrimSpace(value)
}

// Role is the message role, or "" for non-message entries.
func (entry Entry) Role() string {
	if entry.Kind != KindMessage {
		return ""
	}
	return entry.StringField("role")
}

// Content is the message content. Unlike StringField it preserves
// whitespace, which is significant in message bodies.
func (entry Entry) Content() string {
	content, _ := entry.Payload["content"].(string)
	return content
}

// CreatedAt returns the meta created_at stamp when the store recorded one.
func (entry Entry) CreatedAt() string {
	value, _ := entry.Meta["created_at"].(string)
	return value
}
