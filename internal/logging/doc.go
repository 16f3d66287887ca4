// Package logging wires log/slog with the handlers and field conventions
// used across chaptercast. Console output is a compact single-line format;
// JSON output is for shipped logs. Standardized field keys keep book,
// chapter, and stage context greppable across components.
package logging
