package tape

/*
ViewMode selects how much of the tape feeds the conversation context.
*/
type ViewMode string

const (
	// ViewLatest slices everything after the most recent anchor.
	ViewLatest ViewMode = "latest"
	// ViewFull feeds the whole tape.
	ViewFull ViewMode = "full"
	// ViewFromAnchor slices everything after a named anchor.
	ViewFromAnchor ViewMode = "from-anchor"
)

// ParseViewMode maps a wire string onto a ViewMode, defaulting to latest.
func ParseViewMode(raw string) ViewMode {
	switch ViewMode(raw) {
	case ViewFull:
		return ViewFull
	case ViewFromAnchor:
		return ViewFromAnchor
	default:
		return ViewLatest
	}
}

/*
EntriesAfter returns the entries strictly after the entry with the given
ID. When the ID is not on the tape the whole list is returned.
*/
func EntriesAfter(entries []Entry, entryID int64) []Entry {
	for index, entry := range entries {
		if entry.ID == entryID {
			return entries[index+1:]
		}
	}
	return entries
}

/*
SelectContextEntries resolves which slice of the tape a view covers and
which anchor is active for it.

  - full: the whole tape, no active anchor.
  - latest: everything after the last anchor; the whole tape when the tape
    has no anchors yet.
  - from-anchor: everything after the named anchor, falling back to the
    last anchor when the name does not resolve.
*/
func SelectContextEntries(
	entries []Entry,
	anchors []AnchorState,
	mode ViewMode,
	anchorName string,
) (*AnchorState, []Entry) {
	switch mode {
	case ViewFull:
		return nil, entries

	case ViewLatest:
		if len(anchors) == 0 {
			return nil, entries
		}
		anchor := anchors[len(anchors)-1]
		return &anchor, EntriesAfter(entries, anchor.EntryID)

	case ViewFromAnchor:
		var target *AnchorState

		if anchorName != "" {
			target = FindAnchorByName(anchors, anchorName)
		}

		if target == nil {
			if len(anchors) == 0 {
				return nil, entries
			}
			target = &anchors[len(anchors)-1]
		}

		return target, EntriesAfter(entries, target.EntryID)
	}

	return nil, entries
}
