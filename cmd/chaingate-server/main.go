// Package main provides the entry point for chaingate-server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/yndnr/chaingate/internal/bridge"
	"github.com/yndnr/chaingate/internal/core/service"
	"github.com/yndnr/chaingate/internal/infra/buildinfo"
	"github.com/yndnr/chaingate/internal/infra/confloader"
	"github.com/yndnr/chaingate/internal/infra/shutdown"
	"github.com/yndnr/chaingate/internal/infra/tlsroots"
	"github.com/yndnr/chaingate/internal/server/config"
	"github.com/yndnr/chaingate/internal/server/dispatch"
	"github.com/yndnr/chaingate/internal/server/localserver"
	"github.com/yndnr/chaingate/internal/server/shardserver"
	"github.com/yndnr/chaingate/internal/storage"
	"github.com/yndnr/chaingate/internal/telemetry/logger"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
	"github.com/yndnr/chaingate/internal/telemetry/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the command line. Only flags that were set override the
// configuration.
type flags struct {
	configFile  string
	showVersion bool
	addr        string
	workers     int
	logLevel    string
}

func parseFlags() (*flags, map[string]any) {
	f := &flags{}
	flag.StringVar(&f.configFile, "config", "", "Path to configuration file")
	flag.BoolVar(&f.showVersion, "version", false, "Show version information")
	flag.StringVar(&f.addr, "addr", "", "Listen address (overrides server.addr)")
	flag.IntVar(&f.workers, "workers", 0, "Number of worker shards (overrides server.workers)")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (overrides log.level)")
	flag.Parse()

	overrides := make(map[string]any)
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			overrides["server.addr"] = f.addr
		case "workers":
			overrides["server.workers"] = f.workers
		case "log-level":
			overrides["log.level"] = f.logLevel
		}
	})
	return f, overrides
}

func run() error {
	f, overrides := parseFlags()

	if f.showVersion {
		fmt.Println("chaingate-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(f.configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	info := buildinfo.Get()
	log.Info("starting chaingate-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", f.configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	trace := tracer.New("chaingate")
	shutdownHandler := shutdown.NewHandler(shutdown.DefaultTimeout, shutdown.WithLogger(log))

	// Hooks run in reverse registration order: the listener closes first,
	// the state store last.
	store, err := storage.NewBadgerStore(config.ToStorageConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	shutdownHandler.OnShutdown("state store", func(context.Context) error {
		return store.Close()
	})
	if err := store.RegisterMetrics(metrics.Registerer()); err != nil {
		log.Warn("state store metrics not registered", "error", err)
	}

	commands := bridge.NewRegistry(store,
		bridge.WithLogger(log),
		bridge.WithTracer(trace),
		bridge.WithCommandTimeout(cfg.RPC.CommandTimeout))
	commands.Start()
	shutdownHandler.OnShutdown("command bridge", func(context.Context) error {
		commands.Stop()
		return nil
	})

	sessions := service.NewSessionRegistry(cfg.Session.TTL,
		service.WithSessionLogger(log),
		service.WithSessionMetrics(metrics))

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithMetrics(metrics),
		dispatch.WithTracer(trace),
		dispatch.WithRateLimiter(service.NewClientLimiter(cfg.RPC.RateLimit, cfg.RPC.RateBurst, 0)),
	}
	if len(cfg.Auth.Users) > 0 {
		auth, err := service.NewStaticAuthenticator(cfg.Auth.Users)
		if err != nil {
			return fmt.Errorf("auth.users: %w", err)
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithAuthenticator(auth))
	} else {
		log.Warn("no auth.users configured, any non-empty credentials will log in")
	}
	dispatcher := dispatch.New(config.ToDispatchConfig(cfg), sessions, commands, dispatchOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := shardserver.NewWorkerPool(config.ToShardConfig(cfg), dispatcher,
		shardserver.WithLogger(log),
		shardserver.WithMetrics(metrics))
	pool.Start(ctx)
	shutdownHandler.OnShutdown("worker pool", func(context.Context) error {
		pool.Stop()
		return nil
	})

	ln, err := listen(cfg, log, shutdownHandler)
	if err != nil {
		_ = shutdownHandler.Shutdown()
		return err
	}

	if f.configFile != "" {
		if err := watchConfig(f.configFile, overrides, log, shutdownHandler); err != nil {
			log.Warn("configuration reload disabled", "error", err)
		}
	}

	acceptor := shardserver.NewAcceptor(ln, pool,
		shardserver.WithLogger(log),
		shardserver.WithMetrics(metrics))
	shutdownHandler.OnShutdown("acceptor", func(context.Context) error {
		cancel()
		if err := acceptor.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	go serve(ctx, acceptor, log, shutdownHandler)

	if cfg.Server.LocalSocket != "" {
		local, err := localserver.Listen(cfg.Server.LocalSocket, localserver.DefaultMode)
		if err != nil {
			_ = shutdownHandler.Shutdown()
			return err
		}
		localAcceptor := shardserver.NewAcceptor(local, pool,
			shardserver.WithLogger(log),
			shardserver.WithMetrics(metrics))
		shutdownHandler.OnShutdown("local socket", func(context.Context) error {
			if err := localAcceptor.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		})
		go serve(ctx, localAcceptor, log, shutdownHandler)
	}

	log.Info("server started, press Ctrl+C to stop",
		"addr", acceptor.Addr().String(),
		"tls", cfg.Server.TLSEnabled(),
		"workers", pool.Size())
	if err := shutdownHandler.Wait(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// serve runs one accept loop. A fatal accept error shuts the server down.
func serve(ctx context.Context, a *shardserver.Acceptor, log *slog.Logger, h *shutdown.Handler) {
	if err := a.Serve(ctx); err != nil {
		log.Error("acceptor stopped", "addr", a.Addr().String(), "error", err)
		_ = h.Shutdown()
	}
}

// loadConfig loads and validates the configuration.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger installs the process logger and returns its slog form for
// the components.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	l, err := logger.New(config.ToLoggerConfig(cfg))
	if err != nil {
		return nil, err
	}
	logger.SetDefault(l)
	return logger.Slog(l), nil
}

// listen binds the server address, with TLS when a certificate pair is
// configured.
func listen(cfg *config.ServerConfig, log *slog.Logger, h *shutdown.Handler) (net.Listener, error) {
	ln, err := shardserver.Listen(cfg.Server.Addr)
	if err != nil {
		return nil, err
	}
	if !cfg.Server.TLSEnabled() {
		return ln, nil
	}

	certs, err := tlsroots.NewReloader(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, tlsroots.WithLogger(log))
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	if err := certs.Watch(); err != nil {
		log.Warn("certificate reload disabled", "error", err)
	}
	h.OnShutdown("certificate watcher", func(context.Context) error {
		return certs.Stop()
	})
	return certs.Listener(ln), nil
}

// watchConfig reloads the file on change and applies the settings that
// can change at runtime. Only log.level takes effect without a restart.
func watchConfig(configFile string, overrides map[string]any, log *slog.Logger, h *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(configFile); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(configFile, overrides)
		if err != nil {
			log.Error("configuration reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	h.OnShutdown("config watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
