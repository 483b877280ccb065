// Package config loads the application configuration from an optional
// YAML file, applies environment variable overrides, and validates the
// result. Every field has a sensible default so the binary runs with no
// configuration at all.
package config
