package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_FILE", "ACCESS_TOKEN_TTL_MINUTES", "LOW_STOCK_THRESHOLD"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DataFile != "data/shoppro.json" {
		t.Fatalf("DataFile = %q", cfg.DataFile)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("AccessTokenTTLMinutes = %d, want 480", cfg.AccessTokenTTLMinutes)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("LowStockThreshold = %v, want 5", cfg.LowStockThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("LOW_STOCK_THRESHOLD", "12")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")
	t.Setenv("GEMINI_API_KEY", "  key  ")

	cfg := Load()
	if cfg.Port != "9191" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.LowStockThreshold != 12 {
		t.Fatalf("LowStockThreshold = %v", cfg.LowStockThreshold)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("invalid TTL should fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.GeminiAPIKey != "key" {
		t.Fatalf("GeminiAPIKey = %q, want trimmed", cfg.GeminiAPIKey)
	}
	if cfg.Address() != ":9191" {
		t.Fatalf("Address = %q", cfg.Address())
	}
}
