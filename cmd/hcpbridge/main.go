// hcpbridge - Hörmann HCP2 garage door bridge
//
// The bridge answers the drive's Modbus RTU polls as the bus master expects,
// decodes door state from the registers the drive writes, and presses
// buttons by writing command registers for the drive to read back. The door
// is exposed over MQTT, an HTTP/WebSocket API and HomeKit, with state
// recorded to SQLite and optionally InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/api"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/audit"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/bridges/hcp"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/history"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/homekit"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/modbus"
	"github.com/nerrad567/gray-logic-hcpbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "/etc/hcpbridge/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting hcpbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to log to
	log.Info("configuration loaded", "path", configPath, "bridge_id", cfg.Bridge.ID, "door_id", cfg.Bridge.DoorID)

	// Door engine
	regMap, profile, err := doorProfile(cfg.Door)
	if err != nil {
		return fmt.Errorf("door profile: %w", err)
	}
	bank := hoermann.NewRegisterBank()
	engine, err := hoermann.NewEngine(hoermann.EngineOptions{
		Registers:    bank,
		Map:          regMap,
		Profile:      &profile,
		TickInterval: cfg.GetTickInterval(),
		Logger:       log.With("component", "engine"),
	})
	if err != nil {
		return fmt.Errorf("creating door engine: %w", err)
	}
	engine.Setup()

	// Database and history
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
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())
	historyRepo := history.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Modbus slave
	var busStats hcp.BusStatsSource
	mbServer, err := modbus.NewServer(bank, cfg.Modbus, log.With("component", "modbus"))
	switch {
	case errors.Is(err, modbus.ErrDisabled):
		log.Warn("modbus disabled, door state will stay invalid")
	case err != nil:
		return fmt.Errorf("creating modbus server: %w", err)
	default:
		if listenErr := mbServer.Listen(); listenErr != nil {
			return fmt.Errorf("starting modbus server: %w", listenErr)
		}
		defer func() {
			log.Info("closing modbus port")
			mbServer.Close()
		}()
		busStats = mbServer
	}

	// MQTT
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Bridge and health
	health := hcp.NewHealthReporter(hcp.HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   version,
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Bus:       busStats,
	})
	bridge, err := hcp.NewBridge(hcp.BridgeOptions{
		DoorID:       cfg.Bridge.DoorID,
		Door:         engine,
		MQTTClient:   mqttClient,
		QoS:          byte(cfg.MQTT.QoS),
		PollInterval: cfg.GetPollInterval(),
		Health:       health,
		Logger:       log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	health.SetDoor(bridge)
	health.SetLogger(log)
	bridge.AddObserver(historyRecorder(historyRepo, log))
	bridge.AddCommandObserver(auditRecorder(auditRepo, log))

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		var influxErr error
		influxClient, influxErr = influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bridge.AddObserver(influxStateWriter(influxClient))
		bridge.AddCommandObserver(influxCommandWriter(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log)
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Door:    bridge,
			History: historyRepo,
			Audit:   auditRepo,
			Health:  health,
			Checks:  dependencyChecks(db, mqttClient, influxClient),
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		bridge.AddObserver(hub)
		bridge.AddCommandObserver(hub)
	} else {
		log.Info("HTTP API disabled")
	}

	// HomeKit (optional)
	if cfg.HomeKit.Enabled {
		accessories := homekit.NewAccessories(cfg.HomeKit.Name, version, bridge, log)
		bridge.AddObserver(accessories)
		hkServer := homekit.NewServer(cfg.HomeKit, accessories, log)
		go func() {
			if hkErr := hkServer.ListenAndServe(ctx); hkErr != nil && !errors.Is(hkErr, context.Canceled) {
				log.Error("homekit server stopped", "error", hkErr)
			}
		}()
	} else {
		log.Info("HomeKit disabled")
	}

	go engine.Run(ctx)

	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if retention := cfg.GetHistoryRetention(); retention > 0 {
		go pruneHistory(ctx, historyRepo, retention, log)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HCPBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HCPBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. influxClient may be
// nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// dependencyChecks names the connections reported by GET /api/v1/health.
func dependencyChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.Checker {
	checks := map[string]api.Checker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	return checks
}
