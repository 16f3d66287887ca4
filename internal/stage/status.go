// Package stage defines the per-unit lifecycle: the ordered set of statuses a
// chapter moves through and the rules that make task redelivery safe.
package stage

import "strings"

// Status represents the lifecycle of a processing unit.
type Status string

const (
	StatusPending         Status = "pending"
	StatusDiscovering     Status = "discovering"
	StatusMetadataFetched Status = "metadata_fetched"
	StatusChapterScraped  Status = "chapter_scraped"
	StatusSynthesized     Status = "synthesized"
	StatusConverted       Status = "converted"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusDiscovering,
	StatusMetadataFetched,
	StatusChapterScraped,
	StatusSynthesized,
	StatusConverted,
	StatusCompleted,
	StatusFailed,
}

// statusRank orders the forward chain. Failed has no rank: it is terminal and
// reachable from any non-terminal status.
var statusRank = map[Status]int{
	StatusPending:         0,
	StatusDiscovering:     1,
	StatusMetadataFetched: 2,
	StatusChapterScraped:  3,
	StatusSynthesized:     4,
	StatusConverted:       5,
	StatusCompleted:       6,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// Parse converts a string into a known Status.
func Parse(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions occur from this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AtOrPast implements the idempotent-skip rule: a unit already at or past the
// target status acknowledges a redelivered stage task without redoing work.
// Failed units are treated as past every target so redeliveries drain.
func (s Status) AtOrPast(target Status) bool {
	if s == StatusFailed {
		return true
	}
	current, ok := statusRank[s]
	if !ok {
		return false
	}
	want, ok := statusRank[target]
	if !ok {
		return false
	}
	return current >= want
}

// CanAdvance reports whether a transition is legal: strictly forward along
// the rank order, or into failed from any non-terminal status. Stages may be
// skipped (a chapter whose book metadata already exists jumps straight from
// pending to chapter_scraped) but never regressed.
func CanAdvance(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Label renders a status for human-facing output ("chapter_scraped" ->
// "Chapter Scraped").
func (s Status) Label() string {
	parts := strings.Fields(strings.ReplaceAll(string(s), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
