package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"127.0.0.1:6379"}},
		Sources: map[string]SourceConfig{
			"bargainbay": {
				Enabled: true,
				BaseURL: "https://api.bargainbay.test/search",
				Paths: SourcePaths{
					Items: "results", URL: "url", Title: "title", Price: "price",
				},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"no database", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"no enabled sources", func(c *Config) {
			s := c.Sources["bargainbay"]
			s.Enabled = false
			c.Sources["bargainbay"] = s
		}, "at least one enabled source"},
		{"enabled source without base_url", func(c *Config) {
			s := c.Sources["bargainbay"]
			s.BaseURL = ""
			c.Sources["bargainbay"] = s
		}, "base_url"},
		{"enabled source without paths", func(c *Config) {
			s := c.Sources["bargainbay"]
			s.Paths.Price = ""
			c.Sources["bargainbay"] = s
		}, "paths"},
		{"floor fraction above one", func(c *Config) { c.Search.FloorFraction = 1.5 }, "floor_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Search.DeadlineSec != 15 {
		t.Errorf("search.deadline_sec default = %d, want 15", cfg.Search.DeadlineSec)
	}
	if cfg.Search.MaxWorkers != 8 {
		t.Errorf("search.max_workers default = %d, want 8", cfg.Search.MaxWorkers)
	}
	if cfg.Search.FloorFraction != 0.2 {
		t.Errorf("search.floor_fraction default = %g, want 0.2", cfg.Search.FloorFraction)
	}
	if cfg.Cache.TTLSec != 300 {
		t.Errorf("cache.ttl_sec default = %d, want 300", cfg.Cache.TTLSec)
	}

	src := cfg.Sources["bargainbay"]
	if src.RatePerSec != 1 || src.Burst != 5 || src.BreakerTrips != 3 {
		t.Errorf("source limiter defaults not applied: %+v", src)
	}
	if src.Currency != "USD" {
		t.Errorf("source currency default = %q, want USD", src.Currency)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DeadlineSec = 5
	src := cfg.Sources["bargainbay"]
	src.RatePerSec = 0.5
	cfg.Sources["bargainbay"] = src

	cfg.ApplyDefaults()
	if cfg.Search.DeadlineSec != 5 {
		t.Errorf("explicit deadline overwritten: %d", cfg.Search.DeadlineSec)
	}
	if cfg.Sources["bargainbay"].RatePerSec != 0.5 {
		t.Errorf("explicit rate overwritten: %g", cfg.Sources["bargainbay"].RatePerSec)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DEALHOUND_TEST_KEY", "s3cret")

	in := []byte("api_key: ${DEALHOUND_TEST_KEY}\nmodel: ${DEALHOUND_TEST_MISSING:-gpt-4o-mini}\nempty: ${DEALHOUND_TEST_MISSING}\n")
	out := string(expandEnvVars(in))

	if !strings.Contains(out, "api_key: s3cret") {
		t.Errorf("env var not substituted: %s", out)
	}
	if !strings.Contains(out, "model: gpt-4o-mini") {
		t.Errorf("default not applied: %s", out)
	}
	if !strings.Contains(out, "empty: \n") {
		t.Errorf("missing var without default should be empty: %s", out)
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port == 0 {
		t.Error("http.port not set in local config")
	}
	if len(cfg.Sources) == 0 {
		t.Error("no sources in local config")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
