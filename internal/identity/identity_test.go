package identity_test

import (
	"testing"

	"chaptercast/internal/identity"
)

func TestChapterIDDeterministic(t *testing.T) {
	a := identity.ChapterID("Ch1", "https://x/1")
	b := identity.ChapterID("Ch1", "https://x/1")
	if a != b {
		t.Fatalf("expected identical ids, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 128-bit hex id, got %q", a)
	}
}

func TestChapterIDDistinguishesInputs(t *testing.T) {
	base := identity.ChapterID("Ch1", "https://x/1")
	cases := map[string]string{
		"different title": identity.ChapterID("Ch2", "https://x/1"),
		"different url":   identity.ChapterID("Ch1", "https://x/2"),
		"shifted colon":   identity.ChapterID("Ch1:", "https://x/1"),
	}
	for name, id := range cases {
		if id == base {
			t.Fatalf("%s produced colliding id %s", name, id)
		}
	}
}

func TestBookIDPrefersShortName(t *testing.T) {
	named := identity.BookID("shadow-slave", "https://example.com/b/shadow-slave")
	renamed := identity.BookID("shadow-slave", "https://other.example/b/whatever")
	if named != renamed {
		t.Fatal("expected short name to determine book id regardless of URL")
	}

	fromURL := identity.BookID("", "https://Example.com/b/shadow-slave/")
	fromCanonical := identity.BookID("", "https://example.com/b/shadow-slave")
	if fromURL != fromCanonical {
		t.Fatal("expected canonicalized URLs to share an id")
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Chapter 160: Prodding the Devil", "chapter_160_prodding_the_devil"},
		{"  Épée & Świt  ", "epee_swit"},
		{"---", ""},
		{"Already_fine", "already_fine"},
	}
	for _, tc := range cases {
		if got := identity.Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
