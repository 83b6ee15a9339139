// Package config loads server tunables from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mash/internal/domain/mud"
)

type Config struct {
	Addr   string `yaml:"addr"`
	DBDSN  string `yaml:"db_dsn"`
	TickMS int    `yaml:"tick_ms"`

	MaxAP         int `yaml:"max_ap"`
	MaxBuyPerTick int `yaml:"max_buy_ap_per_tick"`
	MaxBuyPerCall int `yaml:"max_buy_ap_per_call"`

	IdleTimeoutMS int `yaml:"idle_timeout_ms"`
	EventTTLMS    int `yaml:"event_ttl_ms"`
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		TickMS:        int(mud.DefaultTickInterval.Milliseconds()),
		MaxAP:         mud.MaxAP,
		MaxBuyPerTick: mud.MaxBuyAPPerTick,
		MaxBuyPerCall: mud.MaxBuyAPPerCall,
		IdleTimeoutMS: int(mud.DefaultIdleTimeout.Milliseconds()),
		EventTTLMS:    int(mud.DefaultEventTTL.Milliseconds()),
	}
}

// Load reads the file named by MASH_CONFIG (if any), then applies env
// overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("MASH_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Addr = strEnv("MASH_ADDR", cfg.Addr)
	cfg.DBDSN = strEnv("MASH_DB_DSN", cfg.DBDSN)
	cfg.TickMS = intEnv("MASH_TICK_MS", cfg.TickMS)
	cfg.MaxAP = intEnv("MASH_MAX_AP", cfg.MaxAP)
	cfg.MaxBuyPerTick = intEnv("MASH_MAX_BUY_AP_PER_TICK", cfg.MaxBuyPerTick)
	cfg.MaxBuyPerCall = intEnv("MASH_MAX_BUY_AP_PER_CALL", cfg.MaxBuyPerCall)
	cfg.IdleTimeoutMS = intEnv("MASH_IDLE_TIMEOUT_MS", cfg.IdleTimeoutMS)
	cfg.EventTTLMS = intEnv("MASH_EVENT_TTL_MS", cfg.EventTTLMS)
	return cfg, nil
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

func (c Config) EventTTL() time.Duration {
	return time.Duration(c.EventTTLMS) * time.Millisecond
}

func strEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
