// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Besides the HTTP server settings it carries
// the default box limits, the input decoding options, and the run storage
// backend.
package config
