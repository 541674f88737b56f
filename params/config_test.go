package params

import "testing"

func TestDefaultMatchesCompiledInMagnitudes(t *testing.T) {
	cfg := Default()
	if cfg.Margin.IMRBps != 500 {
		t.Fatalf("expected default IMRBps=500, got %d", cfg.Margin.IMRBps)
	}
	if cfg.Margin.MMRBps != 250 {
		t.Fatalf("expected default MMRBps=250, got %d", cfg.Margin.MMRBps)
	}
	if cfg.Service.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr :8080, got %q", cfg.Service.ListenAddr)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("IMR_BPS", "750")
	t.Setenv("LIQ_BAND_BPS", "300")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("VESTING_BURN_PRINCIPAL_FIRST", "true")

	cfg := LoadFromEnv("/nonexistent/.env")

	if cfg.Margin.IMRBps != 750 {
		t.Fatalf("expected IMRBps overridden to 750, got %d", cfg.Margin.IMRBps)
	}
	if cfg.Liquidation.LiqBandBps != 300 {
		t.Fatalf("expected LiqBandBps overridden to 300, got %d", cfg.Liquidation.LiqBandBps)
	}
	if cfg.Service.ListenAddr != "127.0.0.1:9090" {
		t.Fatalf("expected listen addr overridden, got %q", cfg.Service.ListenAddr)
	}
	if !cfg.Materialize.BurnPrincipalFirst {
		t.Fatalf("expected BurnPrincipalFirst=true")
	}

	// Unset knobs keep their compiled-in defaults.
	if cfg.Margin.MMRBps != 250 {
		t.Fatalf("expected MMRBps to retain default 250, got %d", cfg.Margin.MMRBps)
	}
}

func TestLoadFromEnvIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("IMR_BPS", "not-a-number")
	cfg := LoadFromEnv("/nonexistent/.env")
	if cfg.Margin.IMRBps != 500 {
		t.Fatalf("expected malformed IMR_BPS to leave default intact, got %d", cfg.Margin.IMRBps)
	}
}
