// Package config loads the wsfeed YAML configuration.
//
// Values may reference environment variables as ${VAR}. Omitted fields fall
// back to the defaults in defaults.go.
package config
