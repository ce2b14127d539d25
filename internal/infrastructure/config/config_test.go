package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJWTSecret is a secret that meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	cfg.Switches = []SwitchConfig{{ID: "doorbell", Name: "Doorbell"}}
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9000
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
switches:
  - id: doorbell
    name: Doorbell
  - id: garage_door
persistence:
  backend: file
  file:
    path: /tmp/switches.json
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Switches) != 2 {
		t.Fatalf("len(Switches) = %d, want 2", len(cfg.Switches))
	}
	if cfg.Switches[1].ID != "garage_door" {
		t.Errorf("Switches[1].ID = %q, want garage_door", cfg.Switches[1].ID)
	}
	if cfg.Persistence.Backend != BackendFile {
		t.Errorf("Persistence.Backend = %q, want %q", cfg.Persistence.Backend, BackendFile)
	}
	// Defaults survive partial files
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Notifications.QueueSize != 64 {
		t.Errorf("Notifications.QueueSize = %d, want 64", cfg.Notifications.QueueSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
switches:
  - id: doorbell
`)
	t.Setenv("WEBHOOK_JWT_SECRET", validJWTSecret)
	t.Setenv("WEBHOOK_SERVER_PORT", "8200")
	t.Setenv("WEBHOOK_PERSISTENCE_BACKEND", "redis")
	t.Setenv("WEBHOOK_REDIS_URL", "redis://cache:6379/2")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Error("JWT secret was not taken from WEBHOOK_JWT_SECRET")
	}
	if cfg.Server.Port != 8200 {
		t.Errorf("Server.Port = %d, want 8200", cfg.Server.Port)
	}
	if cfg.Persistence.Backend != BackendRedis {
		t.Errorf("Persistence.Backend = %q, want redis", cfg.Persistence.Backend)
	}
	if cfg.Persistence.Redis.URL != "redis://cache:6379/2" {
		t.Errorf("Persistence.Redis.URL = %q", cfg.Persistence.Redis.URL)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "too-short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "privileged port",
			mutate:  func(c *Config) { c.Server.Port = 80 },
			wantErr: "server.port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "no switches",
			mutate:  func(c *Config) { c.Switches = nil },
			wantErr: "at least one switch",
		},
		{
			name:    "switch id with dash",
			mutate:  func(c *Config) { c.Switches = []SwitchConfig{{ID: "front-door"}} },
			wantErr: "letters, digits and underscores",
		},
		{
			name: "duplicate switch id",
			mutate: func(c *Config) {
				c.Switches = []SwitchConfig{{ID: "doorbell"}, {ID: "doorbell"}}
			},
			wantErr: "declared more than once",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Persistence.Backend = "etcd" },
			wantErr: "persistence.backend",
		},
		{
			name: "redis without key",
			mutate: func(c *Config) {
				c.Persistence.Backend = BackendRedis
				c.Persistence.Redis.Key = ""
			},
			wantErr: "persistence.redis.key",
		},
		{
			name:    "zero queue",
			mutate:  func(c *Config) { c.Notifications.QueueSize = 0 },
			wantErr: "notifications.queue_size",
		},
		{
			name: "bad mqtt mode",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Mode = "bridge"
			},
			wantErr: "mqtt.mode",
		},
		{
			name: "bad mqtt qos ignored when disabled",
			mutate: func(c *Config) {
				c.MQTT.QoS = 5
			},
		},
		{
			name: "influx without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Org = "home"
			},
			wantErr: "influxdb",
		},
		{
			name: "tls without files",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
			},
			wantErr: "server.tls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDoesNotLeakSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Security.JWT.Secret = "short-but-secret"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if strings.Contains(err.Error(), "short-but-secret") {
		t.Error("validation error must not echo the secret")
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8099, Timeouts: ServerTimeoutConfig{Read: 3, Write: 4, Idle: 5}}

	if got := s.Address(); got != "127.0.0.1:8099" {
		t.Errorf("Address() = %q", got)
	}
	if got := s.ReadTimeout().Seconds(); got != 3 {
		t.Errorf("ReadTimeout() = %vs, want 3s", got)
	}
	if got := s.WriteTimeout().Seconds(); got != 4 {
		t.Errorf("WriteTimeout() = %vs, want 4s", got)
	}
	if got := s.IdleTimeout().Seconds(); got != 5 {
		t.Errorf("IdleTimeout() = %vs, want 5s", got)
	}
}
