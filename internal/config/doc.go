// Package config provides configuration loading and validation for the voice
// capture service. It handles YAML-based configuration with optional .env and
// environment overrides, and validates every parameter at process start.
package config
