package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/odvcencio/pagestream/pkg/config"
	"github.com/odvcencio/pagestream/pkg/engine"
	"github.com/odvcencio/pagestream/pkg/ipc"
	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/render/adapters/chrome"
	"github.com/odvcencio/pagestream/pkg/render/fake"
	"github.com/odvcencio/pagestream/pkg/session"
	"github.com/odvcencio/pagestream/pkg/stream"
	"github.com/odvcencio/pagestream/pkg/telemetry"
)

var serveLoadConfigFn = loadConfig

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func runServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file (default: ~/.pagestream/config.yaml, ./pagestream.yaml)")
	bind := fs.String("bind", "", "address to bind the server (overrides config)")
	engineKind := fs.String("engine", "", "render engine: chrome or fake (overrides config)")
	var origins []string
	fs.Var(&stringListValue{target: &origins}, "allow-origin", "additional allowed Origin (repeatable, accepts comma-separated list)")

	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitConfigError)
	}

	cfg, err := serveLoadConfigFn(*configFile)
	if err != nil {
		return withExitCode(err, exitConfigError)
	}
	if strings.TrimSpace(*bind) != "" {
		cfg.Server.Bind = strings.TrimSpace(*bind)
	}
	if strings.TrimSpace(*engineKind) != "" {
		cfg.Engine.Kind = strings.ToLower(strings.TrimSpace(*engineKind))
	}
	cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origins...)
	if err := cfg.Validate(); err != nil {
		return withExitCode(fmt.Errorf("config validation: %w", err), exitConfigError)
	}

	logger := observability.NewLoggerTo(os.Stderr, cfg.Logging.Format, "pagestream", observability.ParseLevel(cfg.Logging.Level))
	for _, warning := range cfg.ValidationWarnings() {
		logger.Warn("config warning", "warning", warning)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Tracing.Enabled {
		tp, err := observability.NewTracerProvider(cfg.Tracing.ServiceName, version, os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	return app.run(ctx)
}

// app is the assembled service.
type app struct {
	logger   *observability.Logger
	hub      *telemetry.Hub
	pool     *engine.Pool
	registry *session.Registry
	sweeper  *engine.Sweeper
	server   *ipc.Server
}

func newApp(cfg *config.Config, logger *observability.Logger) (*app, error) {
	if logger == nil {
		logger = observability.Discard()
	}
	launcher, err := newLauncher(cfg.Engine, logger)
	if err != nil {
		return nil, err
	}

	hub := telemetry.NewHub()
	pool := engine.NewPool(launcher, logger, hub)
	registry := session.NewRegistry(pool, sessionConfig(cfg), logger, hub)
	return &app{
		logger:   logger,
		hub:      hub,
		pool:     pool,
		registry: registry,
		sweeper:  engine.NewSweeper(pool, registry, cfg.Engine.SweepInterval, logger),
		server: ipc.NewServer(ipc.Config{
			BindAddress:     cfg.Server.Bind,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			PingInterval:    cfg.Server.PingInterval,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Version:         version,
		}, registry, pool, hub, logger),
	}, nil
}

// run serves until ctx is done, then tears down sessions before engines.
func (a *app) run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.sweeper.Run(sweepCtx)
	}()

	serveErr := a.server.Start(ctx)

	stopSweep()
	<-sweepDone
	a.registry.Close()
	closeErr := a.pool.Close()
	a.hub.Close()
	a.logger.Info("shutdown complete")
	return errors.Join(serveErr, closeErr)
}

func newLauncher(cfg config.EngineConfig, logger *observability.Logger) (render.Launcher, error) {
	switch cfg.Kind {
	case config.EngineFake:
		return fake.NewLauncher(), nil
	case config.EngineChrome, "":
		launcher, err := chrome.NewLauncher(chrome.Config{
			Bin:           cfg.Chrome.Bin,
			Headless:      cfg.Chrome.Headless,
			NoSandbox:     cfg.Chrome.NoSandbox,
			Flags:         cfg.Chrome.Flags,
			LaunchTimeout: cfg.Chrome.LaunchTimeout,
		}, logger)
		if err != nil {
			return nil, withExitCode(fmt.Errorf("chrome engine: %w", err), exitConfigError)
		}
		return launcher, nil
	default:
		return nil, withExitCode(fmt.Errorf("unknown engine kind %q", cfg.Kind), exitConfigError)
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		GracePeriod:       cfg.Session.GracePeriod,
		NavigationTimeout: cfg.Session.NavigationTimeout,
		DefaultURL:        cfg.Session.DefaultURL,
		Viewport:          cfg.Engine.Chrome.Viewport,
		Stream: stream.Config{
			InteractionFrameDelay: cfg.Stream.InteractionFrameDelay,
			SettleDelay:           cfg.Stream.SettleDelay,
			NavigationFrameDelay:  cfg.Stream.NavigationFrameDelay,
			CaptureFormat:         render.FrameFormat(cfg.Stream.CaptureFormat),
			CaptureQuality:        cfg.Stream.CaptureQuality,
			CaptureTimeout:        cfg.Stream.CaptureTimeout,
			ScrollMinInterval:     cfg.Stream.ScrollMinInterval,
			ScrollMultiplier:      cfg.Stream.ScrollMultiplier,
			TimeoutLogCooldown:    cfg.Stream.TimeoutLogCooldown,
		},
	}
}

type stringListValue struct {
	target *[]string
}

func (s *stringListValue) String() string {
	if s == nil || s.target == nil {
		return ""
	}
	return strings.Join(*s.target, ",")
}

func (s *stringListValue) Set(value string) error {
	if s.target == nil {
		return fmt.Errorf("no target slice configured")
	}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		*s.target = append(*s.target, trimmed)
	}
	return nil
}
