// Package identity derives the deterministic identifiers that make pipeline
// work idempotent. A chapter's id is a content hash of its title and source
// URL, so rediscovery and task redelivery always land on the same record.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ChapterID returns the stable identifier for a chapter. Identical
// (title, url) pairs always produce the same id across runs.
func ChapterID(title, chapterURL string) string {
	sum := md5.Sum([]byte(title + ":" + chapterURL))
	return hex.EncodeToString(sum[:])
}

// BookID returns the stable identifier for a book. A caller-supplied short
// name wins; otherwise the canonicalized source URL is hashed.
func BookID(shortName, sourceURL string) string {
	seed := strings.TrimSpace(shortName)
	if seed == "" {
		seed = CanonicalURL(sourceURL)
	}
	sum := md5.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalizes a source URL for identity purposes: lowercased
// scheme and host, no fragment, no trailing slash.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

var slugStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts a display name into a filesystem- and URL-safe token.
// Diacritics are stripped, everything non-alphanumeric collapses to a
// single underscore.
func Slug(name string) string {
	stripped, _, err := transform.String(slugStripper, name)
	if err != nil {
		stripped = name
	}
	var b strings.Builder
	b.Grow(len(stripped))
	lastUnderscore := true
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
