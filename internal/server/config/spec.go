package config

import "time"

// ServerConfig is the root configuration for chaingate-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Session   SessionSection   `koanf:"session"`
	Auth      AuthSection      `koanf:"auth"`
	RPC       RPCSection       `koanf:"rpc"`
	WebSocket WebSocketSection `koanf:"websocket"`
	State     StateSection     `koanf:"state"`
	Metrics   MetricsSection   `koanf:"metrics"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the listener and the worker pool.
type ServerSection struct {
	Addr string `koanf:"addr"`

	// Workers is the number of shards.
	Workers int `koanf:"workers"`

	// PollInterval is the longest a shard sleeps without a signal.
	PollInterval time.Duration `koanf:"poll_interval"`

	// QueueCapacity bounds each shard's handoff queue. Zero means unbounded.
	QueueCapacity int `koanf:"queue_capacity"`

	// ReadTimeout bounds waiting for one HTTP request. Zero disables it.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	WriteTimeout time.Duration `koanf:"write_timeout"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`

	// MaxHeaderBytes bounds the request line plus headers.
	MaxHeaderBytes int64 `koanf:"max_header_bytes"`

	// DocumentRoot is served for paths outside /rpc, /login, /logout, /api
	// and the metrics path. Empty disables static files.
	DocumentRoot string `koanf:"document_root"`

	// TLSCertFile and TLSKeyFile switch the listener to TLS. The pair is
	// reloaded when either file changes.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// LocalSocket is an optional Unix socket path served by the same
	// workers. It is never wrapped in TLS.
	LocalSocket string `koanf:"local_socket"`
}

// TLSEnabled reports whether a certificate pair is configured.
func (s ServerSection) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// SessionSection configures the session registry.
type SessionSection struct {
	TTL           time.Duration `koanf:"ttl"`
	CheckInterval time.Duration `koanf:"check_interval"`
	CookieName    string        `koanf:"cookie_name"`
}

// AuthSection configures login credentials. With no users, any non-empty
// user and password pair is accepted.
type AuthSection struct {
	// Users maps user names to argon2id hashes from
	// `chaingate-cli hash-password`.
	Users map[string]string `koanf:"users"`
}

// RPCSection configures the command channel.
type RPCSection struct {
	// RequireSession rejects /rpc and WebSocket commands without a session.
	RequireSession bool `koanf:"require_session"`

	// RateLimit is the per-client command rate (per second). Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// CommandTimeout bounds each bridge command. Zero disables it.
	CommandTimeout time.Duration `koanf:"command_timeout"`
}

// WebSocketSection configures WebSocket behavior.
type WebSocketSection struct {
	// BroadcastDepartures sends "left" to the other WebSocket clients of a
	// shard when one of them disconnects.
	BroadcastDepartures bool `koanf:"broadcast_departures"`

	// AllowAnyOrigin disables the same-origin handshake check.
	AllowAnyOrigin bool `koanf:"allow_any_origin"`
}

// StateSection configures the command state store.
type StateSection struct {
	// DataDir holds the Badger files. Empty keeps state in memory.
	DataDir    string        `koanf:"data_dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
