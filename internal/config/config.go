// Package config loads the service configuration: defaults, then an optional
// YAML file, then RR_* environment variables (a .env file is read first).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

const (
	OutboxFile  = "file"
	OutboxRedis = "redis"
)

type Config struct {
	// address the page-facing server listens on
	Listen string `json:"listen" yaml:"listen"`

	API          APIConfig          `json:"api" yaml:"api"`
	Store        StoreConfig        `json:"store" yaml:"store"`
	Outbox       OutboxConfig       `json:"outbox" yaml:"outbox"`
	Assets       AssetsConfig       `json:"assets" yaml:"assets"`
	Connectivity ConnectivityConfig `json:"connectivity" yaml:"connectivity"`
	Log          LogConfig          `json:"log" yaml:"log"`
	MockAPI      MockAPIConfig      `json:"mock_api" yaml:"mock_api"`
}

type APIConfig struct {
	BaseURL string   `json:"base_url" yaml:"base_url"`
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

type OutboxConfig struct {
	Backend string `json:"backend" yaml:"backend"` // file or redis
	Path    string `json:"path" yaml:"path"`
	Key     string `json:"key" yaml:"key"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
}

type AssetsConfig struct {
	Version string `json:"version" yaml:"version"`
	// where the buckets live
	Dir string `json:"dir" yaml:"dir"`
	// static site served by this binary; assets are installed from it
	// unless Origin is set
	StaticDir   string   `json:"static_dir" yaml:"static_dir"`
	Origin      string   `json:"origin" yaml:"origin"`
	Manifest    []string `json:"manifest" yaml:"manifest"`
	Discover    bool     `json:"discover" yaml:"discover"`
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
}

type ConnectivityConfig struct {
	ProbeInterval Duration `json:"probe_interval" yaml:"probe_interval"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

type MockAPIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Listen  string `json:"listen" yaml:"listen"`
	DBPath  string `json:"db_path" yaml:"db_path"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen: ":8000",
		API: APIConfig{
			BaseURL: "http://localhost:1337",
			Timeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			Path: "data/restaurants.db",
		},
		Outbox: OutboxConfig{
			Backend:   OutboxFile,
			Path:      "data/outbox.json",
			Key:       "pending-review",
			RedisAddr: "localhost:6379",
		},
		Assets: AssetsConfig{
			Version:     "restaurant-review-v2",
			Dir:         "data/assets",
			StaticDir:   "public",
			Discover:    true,
			Concurrency: 4,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MockAPI: MockAPIConfig{
			Listen: ":1337",
			DBPath: ":memory:",
		},
	}
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api timeout cannot be negative")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	switch c.Outbox.Backend {
	case OutboxFile:
		if c.Outbox.Path == "" {
			return fmt.Errorf("outbox path is required for the file backend")
		}
	case OutboxRedis:
		if c.Outbox.RedisAddr == "" {
			return fmt.Errorf("outbox redis_addr is required for the redis backend")
		}
		if c.Outbox.Key == "" {
			return fmt.Errorf("outbox key is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown outbox backend %q", c.Outbox.Backend)
	}
	if c.Assets.Version == "" {
		return fmt.Errorf("assets version is required")
	}
	if c.Assets.Dir == "" {
		return fmt.Errorf("assets dir is required")
	}
	if c.Assets.Concurrency < 1 {
		return fmt.Errorf("assets concurrency must be at least 1")
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return fmt.Errorf("connectivity probe_interval must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	if c.MockAPI.Enabled && c.MockAPI.Listen == "" {
		return fmt.Errorf("mock_api listen address is required when enabled")
	}
	return nil
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RR_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"RR_LISTEN":          &c.Listen,
		"RR_API_BASE_URL":    &c.API.BaseURL,
		"RR_STORE_PATH":      &c.Store.Path,
		"RR_OUTBOX_BACKEND":  &c.Outbox.Backend,
		"RR_OUTBOX_PATH":     &c.Outbox.Path,
		"RR_OUTBOX_KEY":      &c.Outbox.Key,
		"RR_REDIS_ADDR":      &c.Outbox.RedisAddr,
		"RR_REDIS_PASSWORD":  &c.Outbox.RedisPassword,
		"RR_ASSETS_VERSION":  &c.Assets.Version,
		"RR_ASSETS_DIR":      &c.Assets.Dir,
		"RR_STATIC_DIR":      &c.Assets.StaticDir,
		"RR_ASSETS_ORIGIN":   &c.Assets.Origin,
		"RR_LOG_LEVEL":       &c.Log.Level,
		"RR_LOG_FORMAT":      &c.Log.Format,
		"RR_MOCK_API_LISTEN": &c.MockAPI.Listen,
		"RR_MOCK_API_DB":     &c.MockAPI.DBPath,
	}
	for name, field := range strs {
		if v, ok := lookup(name); ok {
			*field = v
		}
	}

	durations := map[string]*Duration{
		"RR_API_TIMEOUT":    &c.API.Timeout,
		"RR_PROBE_INTERVAL": &c.Connectivity.ProbeInterval,
	}
	for name, field := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*field = Duration(d)
		}
	}

	if v, ok := lookup("RR_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RR_REDIS_DB: %w", err)
		}
		c.Outbox.RedisDB = n
	}

	bools := map[string]*bool{
		"RR_ASSETS_DISCOVER": &c.Assets.Discover,
		"RR_MOCK_API":        &c.MockAPI.Enabled,
	}
	for name, field := range bools {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*field = b
		}
	}
	return nil
}

// Duration is a time.Duration written as "5s" in config files. Plain numbers
// are read as nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}
