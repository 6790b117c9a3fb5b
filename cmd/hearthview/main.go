// Hearthview Core - Smart Home Dashboard Backend
//
// This is the main entry point for the Hearthview Core application.
// Hearthview connects to a smart-home controller over its MCP endpoint,
// maintains a polled device cache, and serves the dashboard API:
//   - Resilient SSE/JSON-RPC controller connection with reconnect + watchdog
//   - Sub-second device cache with relevance filtering and change detection
//   - REST + WebSocket dashboard API with single-operator auth
//   - Optional state history (SQLite), MQTT publishing, and InfluxDB metrics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthview/hearthview-core/internal/api"
	"github.com/hearthview/hearthview-core/internal/dashboard"
	"github.com/hearthview/hearthview-core/internal/history"
	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
	"github.com/hearthview/hearthview-core/internal/infrastructure/database"
	"github.com/hearthview/hearthview-core/internal/infrastructure/influxdb"
	"github.com/hearthview/hearthview-core/internal/infrastructure/logging"
	"github.com/hearthview/hearthview-core/internal/infrastructure/mqtt"
	"github.com/hearthview/hearthview-core/internal/mcp"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// connectionEventInterval is how often the controller connection state is
// sampled for InfluxDB.
const connectionEventInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearthview Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Create the MCP client for the controller connection
	client, err := mcp.New(mcp.Options{
		BaseURL:            cfg.Controller.BaseURL,
		StreamPath:         cfg.Controller.StreamPath,
		Token:              cfg.Controller.Token,
		RequestTimeout:     time.Duration(cfg.Controller.RequestTimeout) * time.Second,
		EndpointGrace:      time.Duration(cfg.Controller.EndpointGrace) * time.Second,
		BackoffInitial:     time.Duration(cfg.Stream.BackoffInitial) * time.Second,
		BackoffMax:         time.Duration(cfg.Stream.BackoffMax) * time.Second,
		MaxAttempts:        cfg.Stream.MaxAttempts,
		Cooldown:           time.Duration(cfg.Stream.Cooldown) * time.Second,
		WatchdogInterval:   time.Duration(cfg.Stream.WatchdogInterval) * time.Second,
		StalenessThreshold: time.Duration(cfg.Stream.StalenessThreshold) * time.Second,
		ClientVersion:      version,
		Logger:             log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP client: %w", err)
	}
	defer func() {
		log.Info("closing controller connection")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MCP client", "error", closeErr)
		}
	}()

	// Build the device cache. Listeners must be registered before Start().
	filter := dashboard.NewFilter(cfg.Categories)
	cache := dashboard.NewCache(client, filter, time.Duration(cfg.Cache.PollIntervalMs)*time.Millisecond)
	cache.SetLogger(log)

	// State history recorder (optional)
	var recorder *history.Recorder
	if cfg.History.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening history database: %w", dbErr)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		recorder, err = history.NewRecorder(db, cfg.History.MaxEntries)
		if err != nil {
			return fmt.Errorf("initialising state history: %w", err)
		}
		log.Info("state history enabled", "path", cfg.History.Path, "max_entries", cfg.History.MaxEntries)

		cache.OnChange(func(ch dashboard.Change) {
			if recErr := recorder.Record(context.Background(), ch); recErr != nil {
				log.Warn("state history write failed", "entity", ch.Entity.ID, "error", recErr)
			}
		})
	} else {
		log.Info("state history disabled")
	}

	// MQTT event publisher (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		var topics mqtt.Topics
		cache.OnChange(func(ch dashboard.Change) {
			topic := topics.StateChange(ch.Category, ch.Entity.ID)
			if pubErr := mqttClient.PublishJSON(topic, ch, true); pubErr != nil {
				log.Debug("MQTT state publish failed", "topic", topic, "error", pubErr)
			}
		})
		cache.OnPoll(func(res dashboard.PollResult, pollErr error) {
			if pollErr != nil {
				return
			}
			if pubErr := mqttClient.PublishJSON(topics.PollStats(), res, false); pubErr != nil {
				log.Debug("MQTT poll stats publish failed", "error", pubErr)
			}
		})
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB metrics (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		cache.OnPoll(func(res dashboard.PollResult, pollErr error) {
			influxClient.WritePollMetric(res.Latency, res.EntitiesRaw, res.EntitiesKept, pollErr == nil)
		})

		// Sample the controller connection state on a slow cadence so
		// reconnect churn shows up in dashboards.
		go func() {
			ticker := time.NewTicker(connectionEventInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					status := client.ConnectionStatus()
					influxClient.WriteConnectionEvent(status.State, status.Attempts)
				}
			}
		}()
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server. Start() registers its own cache listener for the
	// WebSocket relay, so it runs before the cache's poll loop starts.
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Cameras:    cfg.Cameras,
		Logger:     log,
		Controller: client,
		Cache:      cache,
		History:    recorder,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Establish the controller connection. A failed first attempt is not
	// fatal: the client keeps reconnecting in the background and the API
	// serves "no data" placeholders until the first poll succeeds.
	if err := client.Connect(ctx); err != nil {
		log.Warn("controller not reachable yet, retrying in background", "error", err)
	} else {
		log.Info("controller connected", "base_url", cfg.Controller.BaseURL)
	}

	// Start polling. The cache waits for the connection internally.
	cache.Start()
	defer cache.Stop()
	log.Info("device cache polling started", "interval_ms", cfg.Cache.PollIntervalMs)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Cache poll loop
	// 2. API server
	// 3. InfluxDB / MQTT / history database (if enabled)
	// 4. MCP client

	log.Info("Hearthview Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTHVIEW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTHVIEW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
