package config

import (
	"log/slog"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DBPath != "data/coopquest.db" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MinPlayers != 2 || cfg.MaxPlayers != 4 || cfg.StartNode != "start" || cfg.WaveNode != "exp_wave" {
		t.Errorf("session bounds = %+v", cfg)
	}
	if cfg.DebugEndpoints || cfg.RedisURL != "" {
		t.Errorf("optional features on by default: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DEBUG_ENDPOINTS", "true")
	t.Setenv("MAX_PLAYERS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || !cfg.DebugEndpoints || cfg.MaxPlayers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max string
	}{
		{"max below min", "3", "2"},
		{"zero min", "0", "4"},
		{"more than roles", "2", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MIN_PLAYERS", tt.min)
			t.Setenv("MAX_PLAYERS", tt.max)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
