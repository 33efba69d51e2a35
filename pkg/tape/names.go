package tape

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tape name conventions. Forks carry a double-underscore suffix, archived
// tapes an ::archived:: marker with a UTC stamp; neither shows up in
// listings of live tapes.
const (
	ForkDelimiter = "__"
	ArchiveMarker = "::archived::"

	archiveStampLayout = "20060102T150405Z"
)

// ForkName derives a unique fork name from the source tape.
func ForkName(source string) string {
	return source + ForkDelimiter + uuid.NewString()[:8]
}

// IsFork reports whether the name belongs to a fork.
func IsFork(name string) bool {
	return strings.Contains(name, ForkDelimiter)
}

// ArchiveName derives the archived name for a tape at the given time.
func ArchiveName(tape string, at time.Time) string {
	return tape + ArchiveMarker + at.UTC().Format(archiveStampLayout)
}

// IsArchived reports whether the name belongs to an archived tape.
func IsArchived(name string) bool {
	return strings.Contains(name, ArchiveMarker)
}

// IsLive reports whether the name should appear in tape listings.
func IsLive(name string) bool {
	return !IsFork(name) && !IsArchived(name)
}
