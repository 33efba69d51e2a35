package render

import (
	"fmt"

	"github.com/theapemachine/bub-go/pkg/tape"
)

// Token health thresholds. The budget is a soft 4000-token window.
const (
	tokenBudget        = 4000
	tokenHighWater     = 3000
	tokenModerateWater = 2000
)

const (
	HealthOK       = "OK"
	HealthModerate = "MODERATE"
	HealthHigh     = "HIGH"
)

// TokenHealth grades an estimated context size against the window.
func TokenHealth(estimated int) string {
	switch {
	case estimated > tokenHighWater:
		return HealthHigh
	case estimated > tokenModerateWater:
		return HealthModerate
	default:
		return HealthOK
	}
}

// Progress maps the estimate onto a 0-100 fill percentage.
func Progress(estimated int) int {
	progress := estimated * 100 / tokenBudget

	if progress > 100 {
		return 100
	}

	return progress
}

/*
ContextSourceLabel names where the active context comes from, phrased
per view mode.
*/
func ContextSourceLabel(snapshot tape.Snapshot) string {
	switch snapshot.ViewMode {
	case tape.ViewFull:
		return "Full Context"

	case tape.ViewLatest:
		if snapshot.ActiveAnchor != nil {
			return "Latest: " + snapshot.ActiveAnchor.Label
		}
		return "Latest (no anchor)"

	default:
		if snapshot.ActiveAnchor != nil {
			return "Anchor: " + snapshot.ActiveAnchor.Label
		}
		return "Anchor: not found"
	}
}

// ContextIndicator is the one-line context status: source, counts,
// token estimate and health.
func ContextIndicator(snapshot tape.Snapshot) string {
	return fmt.Sprintf(
		"%s | %d / %d entries | ~%d tok | %s",
		ContextSourceLabel(snapshot),
		snapshot.ContextEntryCount(),
		snapshot.TotalEntries(),
		snapshot.EstimatedTokens,
		TokenHealth(snapshot.EstimatedTokens),
	)
}

// TapeFooter is the line under the tape listing.
func TapeFooter(snapshot tape.Snapshot) string {
	var left string

	switch snapshot.ViewMode {
	case tape.ViewFull:
		left = "All entries in context"
	case tape.ViewLatest:
		left = "From latest anchor"
	default:
		if snapshot.ActiveAnchor != nil {
			left = "From: " + snapshot.ActiveAnchor.Label
		} else {
			left = "From: anchor (missing)"
		}
	}

	return fmt.Sprintf(
		"%s | %d in context | %d total | ~%d tokens",
		left,
		snapshot.ContextEntryCount(),
		snapshot.TotalEntries(),
		snapshot.EstimatedTokens,
	)
}

/*
AnchorRows flattens the anchor list into table rows: active marker,
label, name, summary. The marker column carries "*" on the active
anchor so clients can highlight it.
*/
func AnchorRows(snapshot tape.Snapshot) [][]string {
	activeName := ""

	if snapshot.ActiveAnchor != nil {
		activeName = snapshot.ActiveAnchor.Name
	}

	rows := make([][]string, 0, len(snapshot.Anchors))

	for _, anchor := range snapshot.Anchors {
		marker := ""

		if anchor.Name == activeName {
			marker = "*"
		}

		summary := anchor.Summary

		if summary == "" {
			summary = "-"
		}

		rows = append(rows, []string{marker, anchor.Label, anchor.Name, summary})
	}

	return rows
}

/*
Row is one transcript entry prepared for display: badge, one-line
summary, expanded rows, and the flags the log view highlights on.
*/
type Row struct {
	ID           int64    `json:"id"`
	Kind         string   `json:"kind"`
	Label        string   `json:"label"`
	Human        string   `json:"human"`
	Lines        []string `json:"lines"`
	InContext    bool     `json:"in_context"`
	ActiveAnchor bool     `json:"active_anchor"`
}

/*
TranscriptRows renders every tape entry for the log view. Event entries
hide unless showEvents is set, matching the default of keeping system
noise out of the transcript.
*/
func TranscriptRows(snapshot tape.Snapshot, showEvents bool) []Row {
	contextIDs := make(map[int64]bool, len(snapshot.ContextEntries))

	for _, entry := range snapshot.ContextEntries {
		contextIDs[entry.ID] = true
	}

	var activeAnchorID int64 = -1

	if snapshot.ActiveAnchor != nil {
		activeAnchorID = snapshot.ActiveAnchor.EntryID
	}

	var rows []Row

	for _, entry := range snapshot.Entries {
		if !showEvents && entry.Kind == tape.KindEvent {
			continue
		}

		rows = append(rows, Row{
			ID:           entry.ID,
			Kind:         entry.Kind,
			Label:        KindLabel(entry.Kind),
			Human:        HumanText(entry),
			Lines:        StructuredLines(entry),
			InContext:    contextIDs[entry.ID],
			ActiveAnchor: entry.Kind == tape.KindAnchor && entry.ID == activeAnchorID,
		})
	}

	return rows
}
