// Incoming Webhook - authenticated switch entities for home automation.
//
// webhookd serves POST /webhook: callers holding a token signed with the
// shared secret turn declared boolean switches on, off or toggle them,
// optionally attaching attributes. State survives restarts and every
// change is published to MQTT, InfluxDB and WebSocket subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/incoming-webhook/internal/api"
	"github.com/nerrad567/incoming-webhook/internal/auth"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/broker"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/cache"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/config"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/database"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/influxdb"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/logging"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/mqtt"
	"github.com/nerrad567/incoming-webhook/internal/notify"
	"github.com/nerrad567/incoming-webhook/internal/switches"
	"github.com/nerrad567/incoming-webhook/migrations"
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

// shutdownTimeout bounds the final state flush.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// healthChecker is implemented by every infrastructure connection.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// closer pairs a shutdown step with a name for logging.
type closer struct {
	name  string
	close func() error
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout: Destination for --version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) (err error) { //nolint:gocognit,gocyclo // Startup wiring is linear
	flags := pflag.NewFlagSet("webhookd", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to config.yaml (default $WEBHOOK_CONFIG or "+defaultConfigPath+")")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "webhookd %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting incoming webhook",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"switches", len(cfg.Switches),
		"backend", cfg.Persistence.Backend,
	)
	if !cfg.Security.JWT.RequireExpiry {
		log.Warn("tokens without an exp claim are accepted and never expire; set security.jwt.require_expiry to reject them")
	}

	// Closers run in reverse order of registration.
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			log.Info("closing " + c.name)
			if closeErr := c.close(); closeErr != nil {
				log.Error("error closing "+c.name, "error", closeErr)
				if err == nil {
					err = fmt.Errorf("closing %s: %w", c.name, closeErr)
				}
			}
		}
	}()
	checks := map[string]healthChecker{}

	// Persistence
	repo, check, err := openRepository(ctx, cfg.Persistence, log)
	if err != nil {
		return err
	}
	if check != nil {
		checks[cfg.Persistence.Backend] = check
	}

	store, err := switches.NewStore(repo, definitions(cfg.Switches))
	if err != nil {
		repo.Close() //nolint:errcheck // Startup already failed
		return fmt.Errorf("creating switch store: %w", err)
	}
	store.SetLogger(log)
	if err := store.Init(ctx); err != nil {
		repo.Close() //nolint:errcheck // Startup already failed
		return fmt.Errorf("restoring switch state: %w", err)
	}
	closers = append(closers, closer{"switch store", func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return store.Close(flushCtx)
	}})

	// Notification sinks
	sinks, err := buildSinks(cfg, log, &closers, checks)
	if err != nil {
		return err
	}

	var hub *api.Hub
	if cfg.WebSocket.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		sinks = append(sinks, hub)
	}

	notifier := notify.New(cfg.Notifications.QueueSize, sinks...)
	notifier.SetLogger(log)
	dispatcher := switches.NewDispatcher(store, notifier)

	srv, err := api.New(api.Deps{
		Config: cfg.Server,
		WS:     cfg.WebSocket,
		Logger: log,
		Validator: auth.Validator{
			Secret:        cfg.Security.JWT.Secret,
			RequireExpiry: cfg.Security.JWT.RequireExpiry,
		},
		Store:      store,
		Dispatcher: dispatcher,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating webhook server: %w", err)
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Background workers outlive the HTTP server so events from
	// in-flight requests are still delivered.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	g, gctx := errgroup.WithContext(workerCtx)
	g.Go(func() error { return notifier.Run(gctx) })
	if hub != nil {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	if err := srv.Start(ctx); err != nil {
		stopWorkers()
		g.Wait() //nolint:errcheck // Startup already failed
		return fmt.Errorf("starting webhook server: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if closeErr := srv.Close(); closeErr != nil {
		log.Error("error stopping webhook server", "error", closeErr)
	}
	stopWorkers()
	if waitErr := g.Wait(); waitErr != nil {
		log.Error("background worker failed", "error", waitErr)
	}
	if dropped := notifier.Dropped(); dropped > 0 {
		log.Warn("notifications dropped during run", "count", dropped)
	}

	log.Info("incoming webhook stopped")
	return nil
}

// getConfigPath returns the configuration file path: the flag, then
// WEBHOOK_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("WEBHOOK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func definitions(cfgs []config.SwitchConfig) []switches.Definition {
	defs := make([]switches.Definition, 0, len(cfgs))
	for _, c := range cfgs {
		defs = append(defs, switches.Definition{ID: c.ID, Name: c.Name})
	}
	return defs
}

// openRepository connects the configured persistence backend.
//
// Returns:
//   - switches.Repository: backend ready for Store.Init
//   - healthChecker: connection to check at startup, nil for the file backend
//   - error: if the backend is unreachable
func openRepository(ctx context.Context, cfg config.PersistenceConfig, log *logging.Logger) (switches.Repository, healthChecker, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.SQLite.Path,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // Startup already failed
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", cfg.SQLite.Path)
		return switches.NewSQLiteRepository(db), db, nil

	case config.BackendFile:
		repo, err := switches.NewFileRepository(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening state file: %w", err)
		}
		log.Info("file persistence ready", "path", cfg.File.Path)
		return repo, nil, nil

	case config.BackendRedis:
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		log.Info("redis connected", "addr", client.Options().Addr, "key", cfg.Redis.Key)
		return switches.NewRedisRepository(client, cfg.Redis.Key), cache.Pinger{Client: client}, nil

	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}

// buildSinks connects the optional MQTT and InfluxDB outputs.
func buildSinks(cfg *config.Config, log *logging.Logger, closers *[]closer, checks map[string]healthChecker) ([]notify.Sink, error) {
	var sinks []notify.Sink

	if cfg.MQTT.Enabled {
		// #nosec G115 -- qos validated to 0..2
		qos := byte(cfg.MQTT.QoS)
		switch cfg.MQTT.Mode {
		case config.MQTTModeEmbedded:
			b, err := broker.New(broker.OptionsFromConfig(cfg.MQTT, log.Logger))
			if err != nil {
				return nil, fmt.Errorf("starting embedded MQTT broker: %w", err)
			}
			*closers = append(*closers, closer{"embedded MQTT broker", b.Close})
			checks["mqtt"] = b
			sinks = append(sinks, notify.NewMQTTSink(b, mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}, qos))
			log.Info("embedded MQTT broker started", "address", b.Address())

		default:
			client, err := mqtt.Connect(cfg.MQTT)
			if err != nil {
				return nil, fmt.Errorf("connecting to MQTT: %w", err)
			}
			client.SetLogger(log)
			*closers = append(*closers, closer{"MQTT connection", client.Close})
			checks["mqtt"] = client
			sinks = append(sinks, notify.NewMQTTSink(client, client.Topics(), qos))
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		*closers = append(*closers, closer{"InfluxDB connection", client.Close})
		checks["influxdb"] = client
		sinks = append(sinks, notify.NewInfluxSink(client))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	return sinks, nil
}

// healthCheck verifies every infrastructure connection.
//
// Returns:
//   - error: all failures joined, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]healthChecker) error {
	var errs []error
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
