// Package config loads, normalizes and validates the TOML configuration that
// drives the pipeline: filesystem layout, concurrency limits, LLM connection
// settings and knowledge-base sync behavior.
package config
