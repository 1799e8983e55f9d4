package config

import (
	"reflect"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		DatabaseURL: "postgres://localhost:5432/nightfeed",
		DBMinConns:  1,
		DBMaxConns:  8,
		SourceDelay: 2 * time.Second,
		ScrapeActor: "scraper",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "  " }},
		{"negative min conns", func(c *Config) { c.DBMinConns = -1 }},
		{"zero max conns", func(c *Config) { c.DBMaxConns = 0 }},
		{"min above max", func(c *Config) { c.DBMinConns = 9; c.DBMaxConns = 8 }},
		{"negative delay", func(c *Config) { c.SourceDelay = -time.Second }},
		{"empty actor", func(c *Config) { c.ScrapeActor = "" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}

func TestCORSAllowedOriginsList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CORSAllowedOrigins = " https://a.example , https://b.example,https://a.example ,, "
	got := cfg.CORSAllowedOriginsList()
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CORSAllowedOriginsList = %v, want %v", got, want)
	}

	cfg.CORSAllowedOrigins = ""
	if got := cfg.CORSAllowedOriginsList(); len(got) != 0 {
		t.Fatalf("empty setting produced origins: %v", got)
	}
}
