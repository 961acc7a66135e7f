// Package config loads ~/.vibechat/config.toml and the environment
// overrides layered on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvToken      = "VIBECHAT_TOKEN"
	EnvBackendURL = "VIBECHAT_BACKEND_URL"
	EnvPushURL    = "VIBECHAT_PUSH_URL"
	EnvUserID     = "VIBECHAT_USER_ID"
	EnvLogLevel   = "VIBECHAT_LOG_LEVEL"
)

// Duration is a time.Duration written as a string ("10s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.vibechat/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	Backend        Backend `toml:"backend"`
	Upload         Upload  `toml:"upload"`
	Push           Push    `toml:"push"`
	Log            Log     `toml:"log"`
}

// Backend is the REST API the daemon talks to.
type Backend struct {
	URL string `toml:"url"`
	// PushURL is the websocket endpoint. It defaults to /ws on URL's host.
	PushURL string   `toml:"push_url"`
	Token   string   `toml:"token"`
	UserID  string   `toml:"user_id"`
	Timeout Duration `toml:"timeout"`
}

// Upload bounds media uploads.
type Upload struct {
	MaxConcurrency int   `toml:"max_concurrency"`
	MaxBytes       int64 `toml:"max_bytes"`
}

// Push tunes the push socket.
type Push struct {
	Enabled      bool     `toml:"enabled"`
	MinBackoff   Duration `toml:"min_backoff"`
	MaxBackoff   Duration `toml:"max_backoff"`
	PingInterval Duration `toml:"ping_interval"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend: Backend{Timeout: Duration{30 * time.Second}},
		Upload:  Upload{MaxConcurrency: 4, MaxBytes: 10 << 20},
		Push: Push{
			Enabled:      true,
			MinBackoff:   Duration{time.Second},
			MaxBackoff:   Duration{time.Minute},
			PingInterval: Duration{30 * time.Second},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults. Returns
// an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
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

// ApplyEnv overrides cfg from envFile (a dotenv file, skipped when missing)
// and then from the process environment, which wins.
func ApplyEnv(cfg *Config, envFile string) error {
	vals := map[string]string{}
	if envFile != "" {
		fileVals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			vals = fileVals
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	for _, k := range []string{EnvToken, EnvBackendURL, EnvPushURL, EnvUserID, EnvLogLevel} {
		if v, ok := os.LookupEnv(k); ok {
			vals[k] = v
		}
	}

	set := func(dst *string, key string) {
		if v := strings.TrimSpace(vals[key]); v != "" {
			*dst = v
		}
	}
	set(&cfg.Backend.Token, EnvToken)
	set(&cfg.Backend.URL, EnvBackendURL)
	set(&cfg.Backend.PushURL, EnvPushURL)
	set(&cfg.Backend.UserID, EnvUserID)
	set(&cfg.Log.Level, EnvLogLevel)
	return nil
}

// Validate reports settings the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is not set (config backend.url or %s)", EnvBackendURL)
	}
	if c.Upload.MaxConcurrency < 1 {
		return fmt.Errorf("upload.max_concurrency must be at least 1, got %d", c.Upload.MaxConcurrency)
	}
	return nil
}

// PushEndpoint returns the websocket URL for pushes: PushURL when set,
// otherwise ws(s)://<backend host>/ws.
func (b Backend) PushEndpoint() (string, error) {
	if b.PushURL != "" {
		return b.PushURL, nil
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("backend url %q: scheme must be http or https", b.URL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}
