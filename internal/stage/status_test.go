package stage_test

import (
	"testing"

	"chaptercast/internal/stage"
)

func TestParse(t *testing.T) {
	status, ok := stage.Parse("  Chapter_Scraped ")
	if !ok || status != stage.StatusChapterScraped {
		t.Fatalf("Parse returned %q, %v", status, ok)
	}
	if _, ok := stage.Parse("ripping"); ok {
		t.Fatal("expected unknown status to fail parse")
	}
	if _, ok := stage.Parse(""); ok {
		t.Fatal("expected empty status to fail parse")
	}
}

func TestNoTransitionRegresses(t *testing.T) {
	ordered := []stage.Status{
		stage.StatusPending,
		stage.StatusDiscovering,
		stage.StatusMetadataFetched,
		stage.StatusChapterScraped,
		stage.StatusSynthesized,
		stage.StatusConverted,
		stage.StatusCompleted,
	}
	for i, from := range ordered {
		for j, to := range ordered {
			got := stage.CanAdvance(from, to)
			want := j > i && from != stage.StatusCompleted
			if got != want {
				t.Fatalf("CanAdvance(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestFailedReachableFromNonTerminalOnly(t *testing.T) {
	for _, from := range stage.AllStatuses() {
		got := stage.CanAdvance(from, stage.StatusFailed)
		want := !from.IsTerminal()
		if got != want {
			t.Fatalf("CanAdvance(%s, failed) = %v, want %v", from, got, want)
		}
	}
}

func TestAtOrPastSkipRule(t *testing.T) {
	if !stage.StatusChapterScraped.AtOrPast(stage.StatusChapterScraped) {
		t.Fatal("a unit at the target must skip")
	}
	if !stage.StatusSynthesized.AtOrPast(stage.StatusChapterScraped) {
		t.Fatal("a unit past the target must skip")
	}
	if stage.StatusPending.AtOrPast(stage.StatusChapterScraped) {
		t.Fatal("a unit before the target must not skip")
	}
	if !stage.StatusFailed.AtOrPast(stage.StatusChapterScraped) {
		t.Fatal("failed units drain redeliveries via skip")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range stage.AllStatuses() {
		want := status == stage.StatusCompleted || status == stage.StatusFailed
		if status.IsTerminal() != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, status.IsTerminal(), want)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := stage.StatusChapterScraped.Label(); got != "Chapter Scraped" {
		t.Fatalf("unexpected label %q", got)
	}
}
