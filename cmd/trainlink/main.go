// TrainLink - model railway loco control server
//
// This is the main entry point for TrainLink. It keeps the loco registry in
// memory, persists it to SQLite, and serves throttles over HTTP, WebSocket
// and (optionally) MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/trainlink-org/shared-lib/migrations"

	"github.com/trainlink-org/shared-lib/internal/api"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/config"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/database"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/influxdb"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/logging"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/metrics"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/mqtt"
	"github.com/trainlink-org/shared-lib/internal/loco"
	"github.com/trainlink-org/shared-lib/internal/throttle"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when TRAINLINK_CONFIG is not set.
	defaultConfigPath = "configs/config.yaml"

	// shutdownPersistTimeout bounds the final registry snapshot write.
	shutdownPersistTimeout = 10 * time.Second

	// startupHealthTimeout bounds the post-start health check.
	startupHealthTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting TrainLink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"level", cfg.Logging.Level,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	repo := loco.NewSQLiteRepository(db.DB)
	registry := loco.NewRegistry()
	registry.SetLogger(log.With("component", "registry"))

	hub := throttle.NewHub(registry)
	hub.SetLogger(log.With("component", "throttle"))
	registry.AddObserver(hub)

	m := metrics.New(registry)
	registry.AddObserver(m)
	hub.SetCommandRecorder(m)
	hub.SetListenerReporter(m.SetListeners)

	if loadErr := loadRegistry(ctx, registry, repo, cfg.Registry.Seed, log); loadErr != nil {
		return fmt.Errorf("loading loco registry: %w", loadErr)
	}
	hub.MarkLoaded()

	influxClient, err := connectInfluxDB(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder := influxdb.NewRecorder(influxClient)
		registry.AddObserver(recorder)
		hub.AddStateObserver(recorder)
	}

	mqttClient, bridge, err := startMQTT(cfg.MQTT, hub, registry, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		Registry:   registry,
		Throttles:  hub,
		Repository: repo,
		Metrics:    m,
		MQTT:       mqttClient,
		DB:         db,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}

	healthCtx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	if healthErr := healthCheck(healthCtx, db, mqttClient, influxClient); healthErr != nil {
		log.Warn("startup health check failed", "error", healthErr)
	}
	cancel()

	log.Info("TrainLink started",
		"address", server.Addr(),
		"locos", registry.Len(),
		"mqtt", mqttClient != nil,
		"influxdb", influxClient != nil,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")

	if closeErr := server.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	if bridge != nil {
		if stopErr := bridge.Stop(); stopErr != nil {
			log.Warn("error stopping MQTT bridge", "error", stopErr)
		}
	}

	persistCtx, done := context.WithTimeout(context.Background(), shutdownPersistTimeout)
	defer done()
	if saveErr := repo.ReplaceAll(persistCtx, registry.Records()); saveErr != nil {
		log.Error("saving loco registry failed", "error", saveErr)
	} else {
		log.Info("loco registry saved", "locos", registry.Len())
	}

	log.Info("TrainLink stopped")
	return nil
}

// loadConfig reads TRAINLINK_CONFIG, or the default path. A missing file at
// the default path falls back to built-in defaults; a missing file named
// explicitly is an error.
func loadConfig() (*config.Config, string, error) {
	path := os.Getenv("TRAINLINK_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default()
		return cfg, "(defaults)", err
	}
	return nil, path, err
}

// loadRegistry restores the registry from the repository. An empty store
// is filled from the configured seed list, which is then saved.
func loadRegistry(ctx context.Context, registry *loco.Registry, repo loco.Repository, seed []config.SeedLoco, log *logging.Logger) error {
	records, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing stored locos: %w", err)
	}

	if len(records) > 0 {
		if err := registry.Restore(records); err != nil {
			return fmt.Errorf("restoring stored locos: %w", err)
		}
		log.Info("loco registry restored", "locos", registry.Len())
		return nil
	}

	for _, s := range seed {
		registry.Add(loco.New(s.Name, s.Address))
	}
	if len(seed) > 0 {
		if err := repo.ReplaceAll(ctx, registry.Records()); err != nil {
			return fmt.Errorf("saving seed locos: %w", err)
		}
	}
	log.Info("loco registry seeded", "locos", registry.Len())
	return nil
}

// connectInfluxDB connects when telemetry is enabled. It returns a nil
// client when disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// startMQTT connects to the broker and starts the throttle bridge when MQTT
// is enabled. Both results are nil when disabled.
func startMQTT(cfg config.MQTTConfig, hub *throttle.Hub, registry *loco.Registry, log *logging.Logger) (*mqtt.Client, *throttle.Bridge, error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil, nil, nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", client.ClientID(),
	)

	bridge := throttle.NewBridge(hub, client, client.Topics(), client.QoS())
	bridge.SetLogger(log.With("component", "mqtt-bridge"))
	if err := bridge.Start(registry); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	return client, bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Nil clients are disabled components and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
