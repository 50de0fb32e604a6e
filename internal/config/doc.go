// Package config loads, normalizes, and validates platter's TOML
// configuration.
package config
