package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadMergesTOMLOntoDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "engine"
log_level = "debug"

[engine]
symbols = ["A-B", "B-C"]

[feed]
ws_url = "wss://exchange.example/ws"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mode != "engine" {
		t.Errorf("Mode = %q, want engine", cfg.Mode)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.Engine.Symbols) != 2 {
		t.Errorf("Engine.Symbols = %v, want 2 entries", cfg.Engine.Symbols)
	}
	// Fields untouched by the TOML file should retain their default.
	defaults := Defaults()
	if cfg.Postgres.SSLMode != defaults.Postgres.SSLMode {
		t.Errorf("Postgres.SSLMode = %q, want default %q", cfg.Postgres.SSLMode, defaults.Postgres.SSLMode)
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error for a nonexistent config file")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTOML(t, `
mode = "engine"

[feed]
ws_url = "wss://exchange.example/ws"
`)

	t.Setenv("ARBENGINE_MODE", "replay")
	t.Setenv("ARBENGINE_ENGINE_SYMBOLS", "X-Y, Y-Z")
	t.Setenv("ARBENGINE_POSTGRES_POOL_MAX_CONNS", "25")
	t.Setenv("ARBENGINE_ARCHIVER_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mode != "replay" {
		t.Errorf("Mode = %q, want replay (env override)", cfg.Mode)
	}
	if len(cfg.Engine.Symbols) != 2 || cfg.Engine.Symbols[0] != "X-Y" || cfg.Engine.Symbols[1] != "Y-Z" {
		t.Errorf("Engine.Symbols = %v, want [X-Y Y-Z]", cfg.Engine.Symbols)
	}
	if cfg.Postgres.PoolMaxConns != 25 {
		t.Errorf("Postgres.PoolMaxConns = %d, want 25", cfg.Postgres.PoolMaxConns)
	}
	if !cfg.Archiver.Enabled {
		t.Errorf("Archiver.Enabled = false, want true (env override)")
	}
}

func TestApplyEnvOverridesIgnoresEmptyAndMalformedValues(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.PoolMaxConns = 10

	t.Setenv("ARBENGINE_POSTGRES_POOL_MAX_CONNS", "not-a-number")
	applyEnvOverrides(&cfg)
	if cfg.Postgres.PoolMaxConns != 10 {
		t.Errorf("PoolMaxConns = %d, want unchanged 10 for a malformed int override", cfg.Postgres.PoolMaxConns)
	}
}

func TestSetStringSliceTrimsAndDropsEmptyEntries(t *testing.T) {
	var dst []string
	t.Setenv("ARBENGINE_TEST_SLICE", " a , b ,, c")
	setStringSlice(&dst, "ARBENGINE_TEST_SLICE")
	want := []string{"a", "b", "c"}
	if len(dst) != len(want) {
		t.Fatalf("dst = %v, want %v", dst, want)
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %q, want %q", i, dst[i], want[i])
		}
	}
}
