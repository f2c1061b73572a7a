package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if cfg.Assets.Version != "restaurant-review-v2" {
		t.Errorf("unexpected default version %q", cfg.Assets.Version)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9000"
api:
  base_url: http://api.local:1337
  timeout: 3s
outbox:
  backend: redis
  redis_addr: redis.local:6379
connectivity:
  probe_interval: 250ms
log:
  level: debug
  format: json
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	t.Setenv("RR_LISTEN", ":9100")
	t.Setenv("RR_REDIS_DB", "2")
	t.Setenv("RR_MOCK_API", "true")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// the environment wins over the file
	if cfg.Listen != ":9100" {
		t.Errorf("Expected env listen, got %q", cfg.Listen)
	}
	if cfg.API.BaseURL != "http://api.local:1337" || cfg.API.Timeout.Std() != 3*time.Second {
		t.Errorf("unexpected api config %+v", cfg.API)
	}
	if cfg.Outbox.Backend != config.OutboxRedis || cfg.Outbox.RedisDB != 2 {
		t.Errorf("unexpected outbox config %+v", cfg.Outbox)
	}
	if cfg.Connectivity.ProbeInterval.Std() != 250*time.Millisecond {
		t.Errorf("unexpected probe interval %v", cfg.Connectivity.ProbeInterval.Std())
	}
	if !cfg.MockAPI.Enabled {
		t.Errorf("Expected mock API to be enabled from env")
	}
	// untouched sections keep their defaults
	if cfg.Store.Path != "data/restaurants.db" {
		t.Errorf("Expected default store path, got %q", cfg.Store.Path)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown backend":    func(c *config.Config) { c.Outbox.Backend = "sqs" },
		"no store path":      func(c *config.Config) { c.Store.Path = "" },
		"no version":         func(c *config.Config) { c.Assets.Version = "" },
		"zero probe":         func(c *config.Config) { c.Connectivity.ProbeInterval = 0 },
		"bad log format":     func(c *config.Config) { c.Log.Format = "xml" },
		"redis without addr": func(c *config.Config) { c.Outbox.Backend = config.OutboxRedis; c.Outbox.RedisAddr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for name, value := range map[string]string{
		"RR_API_TIMEOUT": "soon",
		"RR_REDIS_DB":    "zero",
		"RR_MOCK_API":    "maybe",
	} {
		cfg := config.DefaultConfig()
		lookup := func(key string) (string, bool) {
			if key == name {
				return value, true
			}
			return "", false
		}
		if err := cfg.ApplyEnv(lookup); err == nil {
			t.Errorf("Expected error for %s=%s", name, value)
		}
	}
}

func TestDurationAcceptsNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  timeout: 1000000000\n"), 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Timeout.Std() != time.Second {
		t.Errorf("Expected 1s, got %v", cfg.API.Timeout.Std())
	}
}
