// Package config loads, normalizes, and validates camwatch configuration.
//
// Configuration lives in TOML (default ~/.config/camwatch/config.toml). Every
// timing and threshold used by the capture engine is a tunable here; the
// defaults mirror the values the engine was tuned with on HD network cameras.
// Load expands ~ paths, merges an optional .env file so camera credentials can
// stay out of the TOML, then validates each section.
package config
