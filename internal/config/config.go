package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.tabsync/config.toml.
type Config struct {
	DefaultSession    string   `toml:"default_session"`
	BackendURL        string   `toml:"backend_url"`
	WSURL             string   `toml:"ws_url,omitempty"`
	BrowserListen     string   `toml:"browser_listen"`
	BrowserOrigins    []string `toml:"browser_origins"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	ReconnectInterval Duration `toml:"reconnect_interval"`
	DialTimeout       Duration `toml:"dial_timeout"`
	RequestTimeout    Duration `toml:"request_timeout"`
	LogLevel          string   `toml:"log_level"`
}

// Duration is a time.Duration encoded in TOML as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		BrowserListen:     "127.0.0.1:7878",
		BrowserOrigins:    []string{"chrome-extension://*", "moz-extension://*"},
		HeartbeatInterval: Duration{10 * time.Second},
		ReconnectInterval: Duration{15 * time.Second},
		DialTimeout:       Duration{10 * time.Second},
		RequestTimeout:    Duration{15 * time.Second},
		LogLevel:          "info",
	}
}

// Load reads config from the given path. Returns nil and error if file missing.
// Unset fields are filled from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// RealtimeURL returns the websocket endpoint. When ws_url is unset it is
// derived from backend_url by swapping the http scheme prefix for ws.
func (c *Config) RealtimeURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	if after, ok := strings.CutPrefix(c.BackendURL, "http"); ok {
		return "ws" + after
	}
	return ""
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.BrowserListen == "" {
		c.BrowserListen = def.BrowserListen
	}
	if len(c.BrowserOrigins) == 0 {
		c.BrowserOrigins = def.BrowserOrigins
	}
	if c.HeartbeatInterval.Duration <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.ReconnectInterval.Duration <= 0 {
		c.ReconnectInterval = def.ReconnectInterval
	}
	if c.DialTimeout.Duration <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.RequestTimeout.Duration <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}
