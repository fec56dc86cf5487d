package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/commands"
	"github.com/ishandutta2007/taskt/internal/infrastructure/config"
	"github.com/ishandutta2007/taskt/internal/infrastructure/database"
	"github.com/ishandutta2007/taskt/internal/infrastructure/influxdb"
	"github.com/ishandutta2007/taskt/internal/infrastructure/logging"
	"github.com/ishandutta2007/taskt/internal/infrastructure/mqtt"
	"github.com/ishandutta2007/taskt/internal/script"

	// Register the embedded schema with the database package.
	_ "github.com/ishandutta2007/taskt/migrations"
)

// environment is the loaded settings plus the collaborators that need no
// network or disk access beyond the settings file.
type environment struct {
	cfg      *config.Config
	logger   *logging.Logger
	settings automation.Settings
	loader   *script.Loader
	opts     *RootOptions
}

func (e *environment) version() string { return e.opts.Version }

// loadEnvironment reads the settings file, falling back to defaults with a
// warning, and builds the logger and script loader. Logs go to stderr so
// stdout carries only command output.
func loadEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	log := logging.NewWithWriter(cfg.Logging, opts.Version, cmd.ErrOrStderr())

	if err != nil {
		if !errors.Is(err, config.ErrFallback) {
			return nil, WrapExitError(ExitCommandError, "loading settings", err)
		}
		log.Warn("settings file unusable, using defaults", "path", opts.ConfigPath, "error", err)
	}

	settings := settingsFromConfig(cfg)
	return &environment{
		cfg:      cfg,
		logger:   log,
		settings: settings,
		loader:   script.NewLoader(commands.NewCatalog(settings), settings.Codec()),
		opts:     opts,
	}, nil
}

// settingsFromConfig maps the engine section of the settings document onto
// run settings.
func settingsFromConfig(cfg *config.Config) automation.Settings {
	e := cfg.Engine
	return automation.Settings{
		VariableStart:             e.VariableStartMarker,
		VariableEnd:               e.VariableEndMarker,
		MissingVariables:          automation.MissingVariablePolicy(e.MissingVariablePolicy),
		CancellationKey:           e.CancellationKey,
		CommandDelay:              e.Delay(),
		OverrideExistingInstances: e.OverrideExistingInstances,
		TrackMetrics:              e.TrackExecutionMetrics,
		DiagnosticLogging:         e.EnableDiagnosticLogging,
		InstanceNames:             instanceNamesFromConfig(cfg.Client.Instances),
		Keywords:                  keywordsFromConfig(e.Keywords),
	}
}

func instanceNamesFromConfig(n config.InstanceNamesConfig) map[automation.InstanceKind]string {
	return map[automation.InstanceKind]string{
		automation.KindBrowser:   n.Browser,
		automation.KindStopwatch: n.Stopwatch,
		automation.KindExcel:     n.Excel,
		automation.KindWord:      n.Word,
		automation.KindDatabase:  n.Database,
		automation.KindProcess:   n.Process,
	}
}

func keywordsFromConfig(k config.KeywordConfig) []automation.Keyword {
	display := map[string]string{
		automation.KeywordCurrentWindow:    k.CurrentWindow,
		automation.KeywordDesktop:          k.Desktop,
		automation.KeywordAllWindows:       k.AllWindows,
		automation.KeywordCurrentPosition:  k.CurrentPosition,
		automation.KeywordCurrentXPosition: k.CurrentXPosition,
		automation.KeywordCurrentYPosition: k.CurrentYPosition,
		automation.KeywordCurrentSheet:     k.CurrentSheet,
		automation.KeywordNextSheet:        k.NextSheet,
		automation.KeywordPreviousSheet:    k.PreviousSheet,
	}

	kws := automation.DefaultKeywords()
	for i := range kws {
		if d := display[kws[i].Name]; d != "" {
			kws[i].Display = d
		}
	}
	return kws
}

// ─── Infrastructure ─────────────────────────────────────────────────────────

// services holds the optional infrastructure enabled in the settings file.
// Nil fields are disabled.
type services struct {
	logger *logging.Logger
	db     *database.DB
	repo   automation.Repository
	mqtt   *mqtt.Client
	influx *influxdb.Client
	qos    byte
}

// connectServices opens every enabled backend. On error, anything already
// opened is closed.
func connectServices(ctx context.Context, env *environment) (*services, error) {
	cfg := env.cfg
	log := env.logger
	svc := &services{logger: log, qos: byte(cfg.MQTT.QoS)} //nolint:gosec // QoS validated to 0-2

	if cfg.Database.Enabled {
		db, repo, err := openHistory(ctx, env)
		if err != nil {
			return nil, err
		}
		svc.db, svc.repo = db, repo
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		svc.mqtt = client
		log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)
	}

	if cfg.InfluxDB.Enabled && env.settings.TrackMetrics {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			svc.close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		svc.influx = client
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	return svc, nil
}

// openHistory opens and migrates the run-history database.
func openHistory(ctx context.Context, env *environment) (*database.DB, *automation.SQLiteRepository, error) {
	cfg := env.cfg.Database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening run history: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		//nolint:errcheck // already failing
		db.Close()
		return nil, nil, fmt.Errorf("migrating run history: %w", err)
	}
	env.logger.Info("run history opened", "path", cfg.Path)
	return db, automation.NewSQLiteRepository(db.DB), nil
}

// options builds engine options from the enabled services. hub may be nil.
func (s *services) options(hub automation.WSHub) automation.Options {
	opts := automation.Options{Logger: s.logger, Hub: hub}
	if s.repo != nil {
		opts.Store = s.repo
	}
	if s.mqtt != nil {
		opts.Publisher = mqtt.NewEventPublisher(s.mqtt, s.qos)
	}
	if s.influx != nil {
		opts.Metrics = s.influx
	}
	return opts
}

// healthCheck verifies every enabled backend.
func (s *services) healthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// close shuts the services down in reverse order of opening.
func (s *services) close() {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			s.logger.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			s.logger.Error("error closing MQTT", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("error closing database", "error", err)
		}
	}
}
