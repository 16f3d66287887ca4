// Package config loads, validates, and normalizes chaptercast configuration
// from TOML. Path fields are tilde-expanded and made absolute during load so
// downstream packages never deal with relative or home-anchored paths.
package config
