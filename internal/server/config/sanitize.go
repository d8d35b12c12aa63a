package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if len(cfg.Auth.Users) > 0 {
		users := make(map[string]string, len(cfg.Auth.Users))
		for name, hash := range cfg.Auth.Users {
			users[name] = maskSecret(hash)
		}
		sanitized.Auth.Users = users
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
