package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
engine:
  variable_start_marker: "<<"
  variable_end_marker: ">>"
  missing_variable_policy: "fail"
  delay_between_commands: 0
listener:
  port: 20000
  require_authentication: true
  auth_key: "secret-key"
database:
  enabled: true
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "taskt.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.VariableStartMarker != "<<" {
		t.Errorf("Engine.VariableStartMarker = %q, want %q", cfg.Engine.VariableStartMarker, "<<")
	}
	if cfg.Engine.MissingVariablePolicy != MissingVariableFail {
		t.Errorf("Engine.MissingVariablePolicy = %q, want %q", cfg.Engine.MissingVariablePolicy, MissingVariableFail)
	}
	if cfg.Listener.Port != 20000 {
		t.Errorf("Listener.Port = %d, want 20000", cfg.Listener.Port)
	}
	// Keywords were not in the file, so defaults survive.
	if cfg.Engine.Keywords.CurrentWindow != "Current Window" {
		t.Errorf("Keywords.CurrentWindow = %q, want default", cfg.Engine.Keywords.CurrentWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/taskt.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "taskt.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
engine:
  missing_variable_policy: "ignore"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "taskt.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for unknown policy, got nil")
	}
	if !strings.Contains(err.Error(), "missing_variable_policy") {
		t.Errorf("error = %v, want mention of missing_variable_policy", err)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil config")
	}
	if !errors.Is(err, ErrFallback) {
		t.Errorf("LoadOrDefault() error = %v, want ErrFallback", err)
	}
	if cfg.Listener.Port != DefaultListenerPort {
		t.Errorf("Listener.Port = %d, want %d", cfg.Listener.Port, DefaultListenerPort)
	}
}

func TestLoadOrDefault_CorruptFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "taskt.yaml")
	if err := os.WriteFile(configPath, []byte("engine: [not a map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadOrDefault(configPath)
	if !errors.Is(err, ErrFallback) {
		t.Errorf("LoadOrDefault() error = %v, want ErrFallback", err)
	}
	if cfg.Engine.VariableStartMarker != "{" {
		t.Errorf("VariableStartMarker = %q, want default", cfg.Engine.VariableStartMarker)
	}
}

func TestLoadOrDefault_ValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "taskt.yaml")
	if err := os.WriteFile(configPath, []byte("listener:\n  port: 1234\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadOrDefault(configPath)
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Listener.Port != 1234 {
		t.Errorf("Listener.Port = %d, want 1234", cfg.Listener.Port)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "taskt.yaml")

	cfg := Default()
	cfg.Listener.AuthKey = "fixed-key"
	cfg.Engine.DelayBetweenCommands = 10

	if err := Save(configPath, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Listener.AuthKey != "fixed-key" {
		t.Errorf("AuthKey = %q, want %q", loaded.Listener.AuthKey, "fixed-key")
	}
	if loaded.Engine.DelayBetweenCommands != 10 {
		t.Errorf("DelayBetweenCommands = %d, want 10", loaded.Engine.DelayBetweenCommands)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty start marker",
			mutate:  func(c *Config) { c.Engine.VariableStartMarker = "" },
			wantErr: true,
		},
		{
			name: "identical markers",
			mutate: func(c *Config) {
				c.Engine.VariableStartMarker = "%"
				c.Engine.VariableEndMarker = "%"
			},
			wantErr: true,
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Engine.DelayBetweenCommands = -1 },
			wantErr: true,
		},
		{
			name:    "duplicate keyword",
			mutate:  func(c *Config) { c.Engine.Keywords.Desktop = "Current Window" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.Listener.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.Listener.Port = 70000 },
			wantErr: true,
		},
		{
			name: "auth without key",
			mutate: func(c *Config) {
				c.Listener.RequireAuthentication = true
				c.Listener.AuthKey = ""
			},
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "database enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Listener: ListenerConfig{
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("TASKT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("TASKT_LISTENER_PORT", "4000")
	t.Setenv("TASKT_LISTENER_AUTH_KEY", "env-key")
	t.Setenv("TASKT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("TASKT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("TASKT_SCRIPTS_FOLDER", "/srv/scripts")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Listener.Port != 4000 {
		t.Errorf("Listener.Port = %d, want 4000", cfg.Listener.Port)
	}
	if cfg.Listener.AuthKey != "env-key" {
		t.Errorf("Listener.AuthKey = %q, want %q", cfg.Listener.AuthKey, "env-key")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Client.ScriptsFolder != "/srv/scripts" {
		t.Errorf("Client.ScriptsFolder = %q, want %q", cfg.Client.ScriptsFolder, "/srv/scripts")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listener.Port != 19312 {
		t.Errorf("Listener.Port = %d, want 19312", cfg.Listener.Port)
	}
	if cfg.Listener.AuthKey == "" {
		t.Error("Default should generate a listener auth key")
	}
	if other := Default(); other.Listener.AuthKey == cfg.Listener.AuthKey {
		t.Error("Default should generate a fresh auth key per call")
	}
	if cfg.Engine.CancellationKey != "Pause" {
		t.Errorf("CancellationKey = %q, want Pause", cfg.Engine.CancellationKey)
	}
	if cfg.Engine.Delay().Milliseconds() != 250 {
		t.Errorf("Delay() = %v, want 250ms", cfg.Engine.Delay())
	}
	if cfg.Client.Instances.Stopwatch != "RPAStopwatch" {
		t.Errorf("Instances.Stopwatch = %q, want RPAStopwatch", cfg.Client.Instances.Stopwatch)
	}
}
