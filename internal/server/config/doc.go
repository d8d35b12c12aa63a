// Package config provides server configuration for chaingate.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (address format, limits, path existence)
//   - sanitize.go: Log sanitization (hide password hashes)
//   - convert.go: Mapping onto the shard pool, state store and logger configs
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and CHAINGATE_* environment variables.
package config
