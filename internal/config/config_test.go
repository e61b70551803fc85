package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxViewers:      1000,
		StreamTimeout:   5 * time.Minute,
		QueueSize:       256,
		SendWindow:      time.Minute,
		SendMax:         100,
		ConnectWindow:   time.Minute,
		ConnectMax:      10,
		CreateWindow:    time.Hour,
		CreateMax:       10,
		ChatWindow:      6 * time.Second,
		ChatMax:         1,
		Timezone:        "UTC",
		LogLevel:        "info",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxViewers != 1000 {
		t.Errorf("MaxViewers = %d, want 1000", cfg.MaxViewers)
	}
	if cfg.StreamTimeout != 5*time.Minute {
		t.Errorf("StreamTimeout = %v, want 5m", cfg.StreamTimeout)
	}
	if cfg.QueueSize != 256 {
		t.Errorf("QueueSize = %d, want 256", cfg.QueueSize)
	}
	if cfg.SendMax != 100 || cfg.SendWindow != time.Minute {
		t.Errorf("send rule = %d/%v, want 100/1m", cfg.SendMax, cfg.SendWindow)
	}
	if cfg.ChatMax != 1 || cfg.ChatWindow != 6*time.Second {
		t.Errorf("chat rule = %d/%v, want 1/6s", cfg.ChatMax, cfg.ChatWindow)
	}
	if cfg.Timezone != "UTC" || cfg.LogLevel != "info" || cfg.Debug {
		t.Errorf("ambient defaults = %q/%q/%v, want UTC/info/false", cfg.Timezone, cfg.LogLevel, cfg.Debug)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STREAMCAST_PORT", "9999")
	t.Setenv("STREAMCAST_STREAM_TIMEOUT", "90s")
	t.Setenv("STREAMCAST_DEBUG", "true")
	t.Setenv("STREAMCAST_ADMIN_TOKEN", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.StreamTimeout != 90*time.Second {
		t.Errorf("StreamTimeout = %v, want 90s", cfg.StreamTimeout)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.AdminToken != "hunter2" {
		t.Errorf("AdminToken = %q, want hunter2", cfg.AdminToken)
	}
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("STREAMCAST_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load() with garbage port succeeded, want error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty host", func(c *Config) { c.Host = "" }, true},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, true},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, true},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, true},
		{"zero max viewers", func(c *Config) { c.MaxViewers = 0 }, true},
		{"zero stream timeout", func(c *Config) { c.StreamTimeout = 0 }, true},
		{"zero queue size", func(c *Config) { c.QueueSize = 0 }, true},
		{"enabled rule without window", func(c *Config) { c.ChatWindow = 0 }, true},
		{"disabled rule without window", func(c *Config) { c.ChatWindow = 0; c.ChatMax = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Not/AZone" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8080", got)
	}
}

func TestConfig_Rules(t *testing.T) {
	cfg := validConfig()

	if r := cfg.SendRule(); r.Window != time.Minute || r.Max != 100 {
		t.Errorf("SendRule() = %+v, want 1m/100", r)
	}
	if r := cfg.ConnectRule(); r.Window != time.Minute || r.Max != 10 {
		t.Errorf("ConnectRule() = %+v, want 1m/10", r)
	}
	if r := cfg.CreateRule(); r.Window != time.Hour || r.Max != 10 {
		t.Errorf("CreateRule() = %+v, want 1h/10", r)
	}
	if r := cfg.ChatRule(); r.Window != 6*time.Second || r.Max != 1 {
		t.Errorf("ChatRule() = %+v, want 6s/1", r)
	}
}
