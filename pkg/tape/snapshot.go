package tape

/*
Snapshot is a point-in-time view of a tape: every entry, the decoded
anchors, and the context slice the active view would feed to a model.
*/
type Snapshot struct {
	TapeName        string        `json:"tape_name"`
	ViewMode        ViewMode      `json:"view_mode"`
	AnchorName      string        `json:"anchor_name,omitempty"`
	Entries         []Entry       `json:"entries"`
	Anchors         []AnchorState `json:"anchors"`
	ActiveAnchor    *AnchorState  `json:"active_anchor,omitempty"`
	ContextEntries  []Entry       `json:"context_entries"`
	EstimatedTokens int           `json:"estimated_tokens"`
}

// TotalEntries is the full tape length.
func (snapshot Snapshot) TotalEntries() int {
	return len(snapshot.Entries)
}

// ContextEntryCount is the size of the active context slice.
func (snapshot Snapshot) ContextEntryCount() int {
	return len(snapshot.ContextEntries)
}

/*
ChatMessage is a plain role/content pair, the shape chat frontends consume.
*/
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

/*
Messages filters the tape down to the user/assistant exchange. Anchors,
events and tool records stay on the tape but never render as chat bubbles.
*/
func (snapshot Snapshot) Messages() []ChatMessage {
	var result []ChatMessage

	for _, entry := range snapshot.Entries {
		if entry.Kind != KindMessage {
			continue
		}

		role, _ := entry.Payload["role"].(string)
		content, ok := entry.Payload["content"].(string)

		if !ok || (role != "user" && role != "assistant") {
			continue
		}

		result = append(result, ChatMessage{Role: role, Content: content})
	}

	return result
}

/*
BuildSnapshot assembles a Snapshot from raw entries for the given view.
*/
func BuildSnapshot(tapeName string, entries []Entry, mode ViewMode, anchorName string) Snapshot {
	anchors := ExtractAnchors(entries)
	active, context := SelectContextEntries(entries, anchors, mode, anchorName)

	resolvedName := anchorName
	if active != nil {
		resolvedName = active.Name
	}
	if mode == ViewFull {
		resolvedName = ""
	}

	return Snapshot{
		TapeName:        tapeName,
		ViewMode:        mode,
		AnchorName:      resolvedName,
		Entries:         entries,
		Anchors:         anchors,
		ActiveAnchor:    active,
		ContextEntries:  context,
		EstimatedTokens: EstimateTokens(context),
	}
}
