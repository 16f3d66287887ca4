// Package daemon runs the long-lived chaptercast process: it enforces
// single-instance execution with a lock file, owns the pipeline workers, and
// serves the HTTP introspection API.
package daemon
