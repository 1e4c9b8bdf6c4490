// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, worker pool sizing, strategy selection, client IP
// trust mode, and health probe intervals.
package config
