package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Missing-variable policies accepted by EngineConfig.MissingVariablePolicy.
const (
	MissingVariableCreate = "create"
	MissingVariableFail   = "fail"
)

// DefaultListenerPort is the port the control listener binds when none is configured.
const DefaultListenerPort = 19312

// ErrFallback marks a LoadOrDefault result that was built from defaults
// because the settings file could not be used.
var ErrFallback = errors.New("config: using default settings")

// Config is the root settings document for the taskt runtime.
// All values are loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Client   ClientConfig   `yaml:"client"`
	Listener ListenerConfig `yaml:"listener"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig describes the optional remote task server this runtime reports to.
type ServerConfig struct {
	ServerConnectionEnabled  bool   `yaml:"server_connection_enabled"`
	ConnectToServerOnStartup bool   `yaml:"connect_to_server_on_startup"`
	HTTPServerURL            string `yaml:"http_server_url"`
	HTTPGuid                 string `yaml:"http_guid"`
	CheckForUpdatesOnStartup bool   `yaml:"check_for_updates_on_startup"`
}

// EngineConfig controls how scripts are executed.
type EngineConfig struct {
	// VariableStartMarker and VariableEndMarker delimit variable references
	// in command text. Both must be non-empty and different.
	VariableStartMarker string `yaml:"variable_start_marker"`
	VariableEndMarker   string `yaml:"variable_end_marker"`

	// MissingVariablePolicy is "create" (auto-create with an empty value)
	// or "fail" (abort the command with an unresolved-variable error).
	MissingVariablePolicy string `yaml:"missing_variable_policy"`

	// CancellationKey names the hotkey a desktop front-end binds to cancel.
	CancellationKey string `yaml:"cancellation_key"`

	// DelayBetweenCommands is the pause inserted before each command, in milliseconds.
	DelayBetweenCommands int `yaml:"delay_between_commands"`

	OverrideExistingInstances bool `yaml:"override_existing_instances"`
	TrackExecutionMetrics     bool `yaml:"track_execution_metrics"`
	EnableDiagnosticLogging   bool `yaml:"enable_diagnostic_logging"`

	Keywords KeywordConfig `yaml:"keywords"`
}

// KeywordConfig holds the display strings of the engine keywords.
type KeywordConfig struct {
	CurrentWindow    string `yaml:"current_window"`
	Desktop          string `yaml:"desktop"`
	AllWindows       string `yaml:"all_windows"`
	CurrentPosition  string `yaml:"current_position"`
	CurrentXPosition string `yaml:"current_x_position"`
	CurrentYPosition string `yaml:"current_y_position"`
	CurrentSheet     string `yaml:"current_sheet"`
	NextSheet        string `yaml:"next_sheet"`
	PreviousSheet    string `yaml:"previous_sheet"`
}

// ClientConfig holds client-side defaults such as the scripts folder and
// the default names given to new automation instances.
type ClientConfig struct {
	ScriptsFolder string              `yaml:"scripts_folder"`
	Instances     InstanceNamesConfig `yaml:"instances"`
}

// InstanceNamesConfig contains the default instance name per kind.
type InstanceNamesConfig struct {
	Browser   string `yaml:"browser"`
	Stopwatch string `yaml:"stopwatch"`
	Excel     string `yaml:"excel"`
	Word      string `yaml:"word"`
	Database  string `yaml:"database"`
	Process   string `yaml:"process"`
}

// ListenerConfig contains the control listener settings.
type ListenerConfig struct {
	StartOnStartup        bool          `yaml:"start_on_startup"`
	Enabled               bool          `yaml:"enabled"`
	Host                  string        `yaml:"host"`
	Port                  int           `yaml:"port"`
	RequireAuthentication bool          `yaml:"require_authentication"`
	AuthKey               string        `yaml:"auth_key"`
	EnableWhitelist       bool          `yaml:"enable_whitelist"`
	Whitelist             []string      `yaml:"whitelist"`
	TokenTTL              int           `yaml:"token_ttl"`
	Timeouts              TimeoutConfig `yaml:"timeouts"`
	MaxBodyBytes          int64         `yaml:"max_body_bytes"`
}

// TimeoutConfig contains HTTP timeout settings in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite run-history settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for execution metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads settings from a YAML file and applies environment variable overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (TASKT_SECTION_KEY)
//
// Load is strict: a missing, unparsable or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but never fails to produce settings.
// When the file is absent, unreadable or invalid it returns defaults (with
// environment overrides applied) together with an error wrapping ErrFallback
// that callers should log as a warning.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	cfg = Default()
	applyEnvOverrides(cfg)
	if verr := cfg.Validate(); verr != nil {
		// Environment overrides broke the defaults; drop them.
		cfg = Default()
	}
	return cfg, fmt.Errorf("%w: %w", ErrFallback, err)
}

// Save writes the settings document to path, creating the parent directory.
// The file is written with 0600 permissions because it carries the listener key.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Default returns a Config populated with the stock settings.
// Every call generates a fresh listener auth key.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPServerURL: "https://localhost:44377/",
		},
		Engine: EngineConfig{
			VariableStartMarker:     "{",
			VariableEndMarker:       "}",
			MissingVariablePolicy:   MissingVariableCreate,
			CancellationKey:         "Pause",
			DelayBetweenCommands:    250,
			TrackExecutionMetrics:   true,
			EnableDiagnosticLogging: true,
			Keywords: KeywordConfig{
				CurrentWindow:    "Current Window",
				Desktop:          "Desktop",
				AllWindows:       "All Windows",
				CurrentPosition:  "Current Position",
				CurrentXPosition: "Current XPosition",
				CurrentYPosition: "Current YPosition",
				CurrentSheet:     "Current Sheet",
				NextSheet:        "Next Sheet",
				PreviousSheet:    "Previous Sheet",
			},
		},
		Client: ClientConfig{
			ScriptsFolder: "./scripts",
			Instances: InstanceNamesConfig{
				Browser:   "RPABrowser",
				Stopwatch: "RPAStopwatch",
				Excel:     "RPAExcel",
				Word:      "RPAWord",
				Database:  "RPADB",
				Process:   "RPAProcess",
			},
		},
		Listener: ListenerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultListenerPort,
			AuthKey:      uuid.NewString(),
			TokenTTL:     60,
			MaxBodyBytes: 1 << 20,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/taskt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "taskt-runtime",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "taskt",
			Bucket:        "taskt",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKT_SCRIPTS_FOLDER"); v != "" {
		cfg.Client.ScriptsFolder = v
	}
	if v := os.Getenv("TASKT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("TASKT_LISTENER_HOST"); v != "" {
		cfg.Listener.Host = v
	}
	if v := os.Getenv("TASKT_LISTENER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Listener.Port = port
		}
	}
	if v := os.Getenv("TASKT_LISTENER_AUTH_KEY"); v != "" {
		cfg.Listener.AuthKey = v
	}

	if v := os.Getenv("TASKT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TASKT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TASKT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("TASKT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("TASKT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	e := c.Engine
	if e.VariableStartMarker == "" {
		errs = append(errs, "engine.variable_start_marker is required")
	}
	if e.VariableEndMarker == "" {
		errs = append(errs, "engine.variable_end_marker is required")
	}
	if e.VariableStartMarker != "" && e.VariableStartMarker == e.VariableEndMarker {
		errs = append(errs, "engine.variable_start_marker and variable_end_marker must differ")
	}
	switch e.MissingVariablePolicy {
	case MissingVariableCreate, MissingVariableFail:
	default:
		errs = append(errs, `engine.missing_variable_policy must be "create" or "fail"`)
	}
	if e.DelayBetweenCommands < 0 {
		errs = append(errs, "engine.delay_between_commands must not be negative")
	}
	if dup := duplicateKeyword(e.Keywords); dup != "" {
		errs = append(errs, fmt.Sprintf("engine.keywords: %q is used more than once", dup))
	}

	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		errs = append(errs, "listener.port must be between 1 and 65535")
	}
	if c.Listener.RequireAuthentication && c.Listener.AuthKey == "" {
		errs = append(errs, "listener.auth_key is required when authentication is enabled (set TASKT_LISTENER_AUTH_KEY)")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// duplicateKeyword returns the first keyword display string that appears
// more than once, or "" when all are unique. Empty strings are ignored.
func duplicateKeyword(k KeywordConfig) string {
	seen := make(map[string]bool)
	for _, s := range []string{
		k.CurrentWindow, k.Desktop, k.AllWindows,
		k.CurrentPosition, k.CurrentXPosition, k.CurrentYPosition,
		k.CurrentSheet, k.NextSheet, k.PreviousSheet,
	} {
		if s == "" {
			continue
		}
		if seen[s] {
			return s
		}
		seen[s] = true
	}
	return ""
}

// Delay returns the inter-command delay as a Duration.
func (e EngineConfig) Delay() time.Duration {
	return time.Duration(e.DelayBetweenCommands) * time.Millisecond
}

// GetReadTimeout returns the listener read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Listener.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the listener write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Listener.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the listener idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Listener.Timeouts.Idle) * time.Second
}
