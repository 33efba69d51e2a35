package tape

import (
	"fmt"
	"strings"
)

// BootstrapAnchorName is the anchor created on an empty tape so that the
// latest view always has a slicing point.
const BootstrapAnchorName = "session/start"

// BootstrapAnchorState marks the bootstrap anchor as human-owned.
func BootstrapAnchorState() map[string]any {
	return map[string]any{"owner": "human", "phase": "Bootstrap"}
}

/*
AnchorState is the decoded view of an anchor entry: the handoff marker plus
whatever state the handoff recorded.
*/
type AnchorState struct {
	EntryID   int64    `json:"entry_id"`
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Summary   string   `json:"summary"`
	Facts     []string `json:"facts"`
	CreatedAt string   `json:"created_at,omitempty"`
}

/*
NormalizeAnchorName canonicalizes a handoff name. Names already carrying a
"handoff:" or "phase:" prefix pass through untouched; anything else is
lowercased, spaces become dashes, and the "handoff:" prefix is added.
*/
func NormalizeAnchorName(name string) (string, error) {
	raw := strings.TrimSpace(name)

	if raw == "" {
		return "", fmt.Errorf("anchor name cannot be empty")
	}

	if strings.HasPrefix(raw, "handoff:") || strings.HasPrefix(raw, "phase:") {
		return raw, nil
	}

	safe := strings.ReplaceAll(strings.ToLower(raw), " ", "-")
	return "handoff:" + safe, nil
}

/*
ExtractAnchors walks the entries in order and decodes every anchor entry
with a non-empty name. The label falls back to the name segment after the
last colon when the anchor state has no phase.
*/
func ExtractAnchors(entries []Entry) []AnchorState {
	var anchors []AnchorState

	for _, entry := range entries {
		if entry.Kind != KindAnchor {
			continue
		}

		name := strings.TrimSpace(stringify(entry.Payload["name"]))

		if name == "" {
			continue
		}

		state, _ := entry.Payload["state"].(map[string]any)

		label := ""
		if phase, ok := state["phase"].(string); ok {
			label = strings.TrimSpace(phase)
		}
		if label == "" {
			parts := strings.Split(name, ":")
			label = parts[len(parts)-1]
		}
		if label == "" {
			label = "anchor"
		}

		summary := ""
		if text, ok := state["summary"].(string); ok {
			summary = strings.TrimSpace(text)
		}

		var facts []string
		switch raw := state["facts"].(type) {
		case []any:
			for _, item := range raw {
				if fact := strings.TrimSpace(stringify(item)); fact != "" {
					facts = append(facts, fact)
				}
			}
		case []string:
			for _, item := range raw {
				if fact := strings.TrimSpace(item); fact != "" {
					facts = append(facts, fact)
				}
			}
		}

		anchors = append(anchors, AnchorState{
			EntryID:   entry.ID,
			Name:      name,
			Label:     label,
			Summary:   summary,
			Facts:     facts,
			CreatedAt: entry.CreatedAt(),
		})
	}

	return anchors
}

/*
FindAnchorByName resolves a name against the anchor list. The search runs
newest-first so duplicate names resolve to the most recent handoff.
*/
func FindAnchorByName(anchors []AnchorState, name string) *AnchorState {
	for i := len(anchors) - 1; i >= 0; i-- {
		if anchors[i].Name == name {
			return &anchors[i]
		}
	}
	return nil
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprintf("%v", value)
}
