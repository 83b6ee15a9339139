package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MASH_CONFIG", "")
	t.Setenv("MASH_DB_DSN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.TickInterval() != 10*time.Second || cfg.MaxAP != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mash.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9999\"\ntick_ms: 2000\nmax_ap: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MASH_CONFIG", path)
	t.Setenv("MASH_TICK_MS", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.MaxAP != 6 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TickMS != 3000 {
		t.Fatalf("env must override the file, got %d", cfg.TickMS)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mash.yaml")
	if err := os.WriteFile(path, []byte("addr: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MASH_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
