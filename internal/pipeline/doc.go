// Package pipeline orchestrates the stage workers that move books and
// chapters through the processing chain: discover, metadata, chapter,
// synthesize, convert, complete, sync. Each worker polls one queue channel;
// handlers re-read unit state from the record store, skip work the unit is
// already past, and enqueue the next stage only after their own state change
// is persisted.
package pipeline
