package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("STRATEGIES", "")
	t.Setenv("PORT", "")
	t.Setenv("FILL_POLL_INTERVAL", "")

	cfg := Load()
	if cfg.Port != "8099" {
		t.Fatalf("expected default port 8099, got %s", cfg.Port)
	}
	if cfg.GatewayKind != "paper" {
		t.Fatalf("expected default gateway kind paper, got %s", cfg.GatewayKind)
	}
	if cfg.FillPollInterval != 500*time.Millisecond {
		t.Fatalf("expected default poll interval 500ms, got %s", cfg.FillPollInterval)
	}
	if cfg.Strategies != nil {
		t.Fatalf("expected no strategies by default, got %v", cfg.Strategies)
	}
}

func TestLoad_SplitsStrategyCSV(t *testing.T) {
	t.Setenv("STRATEGIES", "momentum, mean-reversion ,breakout")
	cfg := Load()
	want := []string{"momentum", "mean-reversion", "breakout"}
	if len(cfg.Strategies) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Strategies)
	}
	for i := range want {
		if cfg.Strategies[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.Strategies)
		}
	}
}

func TestValidate_RequiresDSNAndStrategies(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty config")
	}

	cfg.PostgresDSN = "postgres://localhost/db"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing strategies")
	}

	cfg.Strategies = []string{"momentum"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
