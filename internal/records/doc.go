// Package records is the single source of truth for pipeline state. Books,
// chapters, and per-book metadata persist as versioned JSON documents in
// SQLite, keyed "{entity_type}:{id}". Stage consumers always re-read current
// state from here rather than trusting message payloads.
package records
