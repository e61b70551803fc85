package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"streamcast/internal/ratelimit"
)

// Config holds all runtime settings, loaded from STREAMCAST_* variables
// with defaults baked into the tags.
type Config struct {
	Host string `env:"STREAMCAST_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"STREAMCAST_PORT" envDefault:"8080"`

	ReadTimeout     time.Duration `env:"STREAMCAST_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"STREAMCAST_WRITE_TIMEOUT"    envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"STREAMCAST_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	MaxViewers    int           `env:"STREAMCAST_MAX_VIEWERS"    envDefault:"1000"`
	StreamTimeout time.Duration `env:"STREAMCAST_STREAM_TIMEOUT" envDefault:"5m"`
	QueueSize     int           `env:"STREAMCAST_QUEUE_SIZE"     envDefault:"256"`

	SendWindow    time.Duration `env:"STREAMCAST_SEND_WINDOW"    envDefault:"60s"`
	SendMax       int           `env:"STREAMCAST_SEND_MAX"       envDefault:"100"`
	ConnectWindow time.Duration `env:"STREAMCAST_CONNECT_WINDOW" envDefault:"60s"`
	ConnectMax    int           `env:"STREAMCAST_CONNECT_MAX"    envDefault:"10"`
	CreateWindow  time.Duration `env:"STREAMCAST_CREATE_WINDOW"  envDefault:"1h"`
	CreateMax     int           `env:"STREAMCAST_CREATE_MAX"     envDefault:"10"`
	ChatWindow    time.Duration `env:"STREAMCAST_CHAT_WINDOW"    envDefault:"6s"`
	ChatMax       int           `env:"STREAMCAST_CHAT_MAX"       envDefault:"1"`

	Timezone   string `env:"STREAMCAST_TIMEZONE" envDefault:"UTC"`
	AdminToken string `env:"STREAMCAST_ADMIN_TOKEN"`

	LogLevel string `env:"STREAMCAST_LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"STREAMCAST_DEBUG"     envDefault:"false"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	if c.MaxViewers <= 0 {
		return fmt.Errorf("max viewers must be positive")
	}

	if c.StreamTimeout <= 0 {
		return fmt.Errorf("stream timeout must be positive")
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}

	for _, rule := range []struct {
		name   string
		window time.Duration
		max    int
	}{
		{"send", c.SendWindow, c.SendMax},
		{"connect", c.ConnectWindow, c.ConnectMax},
		{"create", c.CreateWindow, c.CreateMax},
		{"chat", c.ChatWindow, c.ChatMax},
	} {
		if rule.max > 0 && rule.window <= 0 {
			return fmt.Errorf("%s window must be positive when the %s limit is enabled", rule.name, rule.name)
		}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level %q is not valid: %w", c.LogLevel, err)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q is not valid: %w", c.Timezone, err)
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the configured timezone. Validate has already
// checked it parses.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Level resolves the configured log level.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

// SendRule is the per-stream line append limit.
func (c *Config) SendRule() ratelimit.Rule {
	return ratelimit.Rule{Window: c.SendWindow, Max: c.SendMax}
}

// ConnectRule is the per-IP WebSocket connect limit.
func (c *Config) ConnectRule() ratelimit.Rule {
	return ratelimit.Rule{Window: c.ConnectWindow, Max: c.ConnectMax}
}

// CreateRule is the per-IP stream claim limit.
func (c *Config) CreateRule() ratelimit.Rule {
	return ratelimit.Rule{Window: c.CreateWindow, Max: c.CreateMax}
}

// ChatRule is the per-connection chat cooldown.
func (c *Config) ChatRule() ratelimit.Rule {
	return ratelimit.Rule{Window: c.ChatWindow, Max: c.ChatMax}
}
