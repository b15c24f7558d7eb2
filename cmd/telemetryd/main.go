// Command telemetryd runs the community telemetry service: it accepts
// gated pushes from the game server, keeps in-memory live snapshots,
// records the 24 hour player-count history, aggregates the event log and
// probes the game server's status endpoints for the community site.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkview-rp/telemetry/internal/config"
	"github.com/parkview-rp/telemetry/internal/database"
	"github.com/parkview-rp/telemetry/internal/eventlog"
	"github.com/parkview-rp/telemetry/internal/gate"
	"github.com/parkview-rp/telemetry/internal/history"
	"github.com/parkview-rp/telemetry/internal/influx"
	"github.com/parkview-rp/telemetry/internal/logging"
	intOtel "github.com/parkview-rp/telemetry/internal/otel"
	"github.com/parkview-rp/telemetry/internal/probe"
	"github.com/parkview-rp/telemetry/internal/server"
	"github.com/parkview-rp/telemetry/internal/store"
	"github.com/parkview-rp/telemetry/internal/ws"
)

// Version can be set at build time via ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configDir := flag.String("config", ".", "directory containing telemetryd.cfg.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("telemetryd", Version)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "telemetryd:", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	configErr := config.Load(configDir)

	logsDir := config.GetString("logsDir")
	os.MkdirAll(logsDir, 0755)

	var logFile io.Writer = io.Discard
	f, err := os.Create(logging.LogFilePath(logsDir, sessionStart))
	if err == nil {
		logFile = f
		defer f.Close()
	}

	otelProvider, err := setupOtel(logsDir, sessionStart)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telemetryd: otel disabled:", err)
		otelProvider, _ = intOtel.New(intOtel.Config{})
	}

	logManager := logging.NewManager()
	logManager.Setup(logFile, config.GetString("logLevel"), otelProvider.LoggerProvider())
	logger := logManager.Logger()
	slog.SetDefault(logger)

	logger.Info("starting telemetryd", "version", Version)
	if configErr != nil {
		logger.Warn("no config file loaded, using defaults", "error", configErr)
	}

	secret := config.GetString("ingest.secret")
	if secret == "" {
		logger.Warn("ingest.secret is empty, all telemetry pushes will be rejected")
	}

	// zerolog feeds the database and influx managers
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	dbManager := database.NewManager(zl, config.GetString("db.localDBPath"))
	if err := dbManager.Connect(); err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer dbManager.Close()
	if err := dbManager.Setup(); err != nil {
		return fmt.Errorf("database setup: %w", err)
	}

	logWriter := eventlog.NewWriter(dbManager.DB, logger)
	logWriter.Start()
	logReader := eventlog.NewReader(dbManager.DB, logger)

	stores := store.NewRegistry()
	hc := config.GetHistoryConfig()
	recorder := history.NewRecorderWith(hc.SampleInterval, hc.MaxEntries, hc.Retention)

	gameProbe := probe.New(
		config.GetString("game.host"),
		config.GetString("game.port"),
		config.GetDuration("game.timeout"),
		config.GetString("game.fallbackName"),
		config.GetInt("game.fallbackMaxPlayers"),
	)

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		m := influx.NewManager(zl)
		if err := m.Connect(); err != nil {
			logger.Warn("influx export disabled", "error", err)
		} else {
			influxManager = m
			defer m.Close()
		}
	}

	hub := ws.NewHub(logger)

	srv := server.New(config.GetString("server.listenAddr"), server.RouterConfig{
		Gate:        gate.New(secret),
		Stores:      stores,
		History:     recorder,
		LogReader:   logReader,
		LogWriter:   logWriter,
		Probe:       gameProbe,
		Hub:         hub,
		Influx:      influxManager,
		Logger:      logger,
		CORSOrigins: config.GetStringSlice("server.corsOrigins"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The recorder samples on accepted pushes, but a game server that
	// stops pushing would freeze the history on its last value. This
	// ticker records the current snapshot size so outages show up as
	// zero-player samples.
	go func() {
		ticker := time.NewTicker(hc.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count := stores.Positions.Count()
				recorder.Sample(count)
				if influxManager != nil {
					influxManager.WritePlayerCount(count)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	hub.Close()
	logWriter.Stop()

	logManager.Flush(shutdownCtx)
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}

	logger.Info("telemetryd stopped")
	return nil
}

func setupOtel(logsDir string, sessionStart time.Time) (*intOtel.Provider, error) {
	cfg := intOtel.Config{
		Enabled:      config.GetBool("otel.enabled"),
		ServiceName:  config.GetString("otel.serviceName"),
		BatchTimeout: config.GetDuration("otel.batchTimeout"),
		Endpoint:     config.GetString("otel.endpoint"),
		Insecure:     config.GetBool("otel.insecure"),
	}
	if cfg.Enabled {
		path := filepath.Join(logsDir,
			fmt.Sprintf("telemetryd.otel.%s.log", sessionStart.Format("20060102_150405")))
		f, err := os.Create(path)
		if err != nil {
			return intOtel.New(intOtel.Config{})
		}
		cfg.LogWriter = f
	}
	return intOtel.New(cfg)
}
