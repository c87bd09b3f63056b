// Trailobot Core - robot dashboard backend
//
// Trailobot Core keeps a reconnecting session to the robot's rosbridge (or
// MQTT) bridge, tracks live telemetry, publishes operator commands and
// serves the dashboard API.
//
// Usage:
//
//	trailobot                         run the service
//	trailobot token -subject NAME     print an operator bearer token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/trailobot-core/migrations"

	"github.com/nerrad567/trailobot-core/internal/api"
	"github.com/nerrad567/trailobot-core/internal/commands"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/database"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/logging"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/rosbridge"
	"github.com/nerrad567/trailobot-core/internal/session"
	"github.com/nerrad567/trailobot-core/internal/telemetry"
	"github.com/nerrad567/trailobot-core/internal/teleop"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthInterval is how often infrastructure health is logged.
const healthInterval = time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability. It
// returns nil on a clean, signal-driven shutdown.
func run(ctx context.Context) error { //nolint:gocognit,funlen // startup wiring reads top to bottom
	log := logging.Default()
	log.Info("starting Trailobot Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "transport", cfg.Bridge.Transport)

	// Goal history
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	// Telemetry recording is optional; the dashboard works without it.
	influx, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Robot.ID)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		influx = nil
		log.Info("InfluxDB disabled")
	case err != nil:
		influx = nil
		log.Warn("InfluxDB unavailable, telemetry will not be recorded", "error", err)
	default:
		influx.SetOnError(func(writeErr error) {
			log.Warn("InfluxDB write failed", "error", writeErr)
		})
		defer func() {
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	hub := api.NewHub(cfg.WebSocket, log)

	sm := session.NewManager(newDialer(cfg, log),
		session.WithReconnectDelay(cfg.Bridge.GetReconnectDelay()),
		session.WithLogger(log),
	)

	monitorOpts := []telemetry.Option{telemetry.WithBroadcaster(hub), telemetry.WithLogger(log)}
	if influx != nil {
		monitorOpts = append(monitorOpts, telemetry.WithRecorder(influx))
	}
	monitor := telemetry.NewMonitor(monitorOpts...)
	unbind := monitor.Bind(sm)

	cmdService := commands.NewService(sm,
		commands.WithRepository(commands.NewSQLiteRepository(db.DB)),
		commands.WithLogger(log),
	)
	controller := teleop.NewController(sm, cfg.Teleop, teleop.WithLogger(log))

	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Transport: cfg.Bridge.Transport,
		Logger:    log,
		Session:   sm,
		Telemetry: monitor,
		Commands:  cmdService,
		Teleop:    controller,
		DB:        db,
		Hub:       hub,
		Version:   version,
	}
	if influx != nil {
		deps.Influx = influx
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if err := server.Start(gctx); err != nil {
		unbind()
		stop()
		_ = g.Wait() //nolint:errcheck // background loops return nil
		return fmt.Errorf("starting API server: %w", err)
	}

	sm.Open(cfg.SessionEndpoint())
	log.Info("Trailobot Core started", "bridge", sm.Endpoint(), "api", server.Addr())

	g.Go(func() error {
		healthLoop(gctx, log, db, influx)
		return nil
	})

	<-gctx.Done()
	log.Info("shutdown signal received")

	controller.Close()
	unbind()
	sm.Shutdown()
	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("background task: %w", err)
	}

	log.Info("Trailobot Core stopped")
	return nil
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; an explicitly named file must exist.
func loadConfig() (*config.Config, string, error) {
	path, explicit := os.LookupEnv("TRAILOBOT_CONFIG")
	if !explicit || path == "" {
		path, explicit = defaultConfigPath, false
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", fmt.Errorf("loading default config: %w", err)
		}
		return cfg, "(defaults)", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

// newDialer returns the transport for the configured bridge.
func newDialer(cfg *config.Config, log *logging.Logger) session.Dialer {
	if cfg.Bridge.Transport == config.TransportMQTT {
		return mqtt.NewDialer(cfg.MQTT, log)
	}
	return rosbridge.NewDialer(rosbridge.OptionsFromConfig(cfg.Bridge), log)
}

// healthLoop logs failing infrastructure until ctx is cancelled.
func healthLoop(ctx context.Context, log *logging.Logger, db *database.DB, influx *influxdb.Client) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := db.HealthCheck(checkCtx); err != nil {
				log.Error("database health check failed", "error", err)
			}
			if influx != nil {
				if err := influx.HealthCheck(checkCtx); err != nil {
					log.Warn("InfluxDB health check failed", "error", err)
				}
			}
			cancel()
		}
	}
}

// runToken prints a signed operator token for the configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("token", flag.ContinueOnError)
	fset.SetOutput(out)
	subject := fset.String("subject", "", "operator name recorded with each command")
	ttl := fset.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := api.IssueToken(cfg.Security.JWT, *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
