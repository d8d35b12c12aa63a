package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/chaingate/internal/core/service"
)

// reservedPrefixes are routed before the metrics path and static files.
var reservedPrefixes = []string{"/rpc", "/login", "/logout", "/api"}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if _, err := service.NewStaticAuthenticator(cfg.Auth.Users); err != nil {
		return fmt.Errorf("auth.users: %w", err)
	}
	if err := verifyRPC(&cfg.RPC); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", cfg.Addr, err)
	}
	if cfg.Workers < 1 {
		return errors.New("server.workers must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("server.poll_interval must be positive")
	}
	if cfg.QueueCapacity < 0 {
		return errors.New("server.queue_capacity must not be negative")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("server.max_header_bytes must be positive")
	}
	if cfg.DocumentRoot != "" {
		info, err := os.Stat(cfg.DocumentRoot)
		if err != nil {
			return fmt.Errorf("server.document_root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("server.document_root %q is not a directory", cfg.DocumentRoot)
		}
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file must be set together")
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server tls file: %w", err)
		}
	}
	if cfg.LocalSocket != "" {
		if _, err := os.Stat(filepath.Dir(cfg.LocalSocket)); err != nil {
			return fmt.Errorf("server.local_socket: %w", err)
		}
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if cfg.CheckInterval <= 0 {
		return errors.New("session.check_interval must be positive")
	}
	if cfg.CookieName == "" || strings.ContainsAny(cfg.CookieName, " \t\r\n;,=\"") {
		return fmt.Errorf("session.cookie_name %q is not a valid cookie name", cfg.CookieName)
	}
	return nil
}

func verifyRPC(cfg *RPCSection) error {
	if cfg.RateLimit < 0 {
		return errors.New("rpc.rate_limit must not be negative")
	}
	if cfg.CommandTimeout < 0 {
		return errors.New("rpc.command_timeout must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("rpc.rate_burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if !cfg.Enabled {
		return nil
	}
	if !strings.HasPrefix(cfg.Path, "/") || cfg.Path == "/" {
		return fmt.Errorf("metrics.path %q must be an absolute path below /", cfg.Path)
	}
	lower := strings.ToLower(cfg.Path)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(lower, p) {
			return fmt.Errorf("metrics.path %q collides with %s", cfg.Path, p)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}
