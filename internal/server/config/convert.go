package config

import (
	"net/http"

	"github.com/yndnr/chaingate/internal/server/dispatch"
	"github.com/yndnr/chaingate/internal/server/shardserver"
	"github.com/yndnr/chaingate/internal/storage"
	"github.com/yndnr/chaingate/internal/telemetry/logger"
)

// ToShardConfig maps the server section onto the worker pool config.
func ToShardConfig(cfg *ServerConfig) shardserver.Config {
	sc := shardserver.DefaultConfig()
	sc.Workers = cfg.Server.Workers
	sc.PollInterval = cfg.Server.PollInterval
	sc.QueueCapacity = cfg.Server.QueueCapacity
	sc.ReadTimeout = cfg.Server.ReadTimeout
	if cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sc.MaxBodyBytes = cfg.Server.MaxBodyBytes
	}
	if cfg.Server.MaxHeaderBytes > 0 {
		sc.MaxHeaderBytes = cfg.Server.MaxHeaderBytes
	}
	if cfg.WebSocket.AllowAnyOrigin {
		sc.CheckOrigin = func(*http.Request) bool { return true }
	}
	return sc
}

// ToDispatchConfig maps the session, rpc, websocket and metrics sections
// onto the dispatcher config.
func ToDispatchConfig(cfg *ServerConfig) dispatch.Config {
	dc := dispatch.DefaultConfig()
	dc.CookieName = cfg.Session.CookieName
	dc.CheckInterval = cfg.Session.CheckInterval
	dc.RequireSession = cfg.RPC.RequireSession
	dc.BroadcastDepartures = cfg.WebSocket.BroadcastDepartures
	dc.DocumentRoot = cfg.Server.DocumentRoot
	dc.Workers = cfg.Server.Workers
	dc.MetricsPath = ""
	if cfg.Metrics.Enabled {
		dc.MetricsPath = cfg.Metrics.Path
	}
	return dc
}

// ToStorageConfig maps the state section onto the state store config.
func ToStorageConfig(cfg *ServerConfig) storage.Config {
	sc := storage.DefaultConfig(cfg.State.DataDir)
	if cfg.State.GCInterval > 0 {
		sc.GCInterval = cfg.State.GCInterval
	}
	return sc
}

// ToLoggerConfig maps the log section onto the logger config.
func ToLoggerConfig(cfg *ServerConfig) logger.Config {
	lc := logger.DefaultConfig()
	if cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = cfg.Log.Format
	}
	return lc
}
