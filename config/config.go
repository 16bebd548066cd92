// Package config loads and validates the platform configuration. Field names
// are part of the operational contract; production deployments are refused
// when live-traffic invariants do not hold.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Environment selects the deployment tier.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvSandbox Environment = "sandbox"
	EnvProd    Environment = "prod"
)

// Valid reports whether the environment is recognised.
func (e Environment) Valid() bool {
	return e == EnvDev || e == EnvSandbox || e == EnvProd
}

// ChainMode selects real or simulated chain dispatch.
type ChainMode string

const (
	ChainSimulated ChainMode = "simulated"
	ChainLive      ChainMode = "live"
)

// RateLimitConfig throttles agent payment submission.
type RateLimitConfig struct {
	Enabled       bool `toml:"enabled"`
	MaxRequests   int  `toml:"max_requests"`
	WindowSeconds int  `toml:"window_seconds"`
}

// ERC4337Config gates account-abstraction rollout.
type ERC4337Config struct {
	Enabled              bool     `toml:"enabled"`
	ChainAllowlist       []string `toml:"chain_allowlist"`
	EntrypointV07Address string   `toml:"entrypoint_v07_address"`
	RolloutStage         string   `toml:"rollout_stage"`
}

// SettlementConfig controls the escrow settlement engine.
type SettlementConfig struct {
	AllowOffchainInProd bool `toml:"allow_offchain_in_prod"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	Metrics     bool    `toml:"metrics"`
	Traces      bool    `toml:"traces"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// LogConfig controls structured log output. An empty File logs to stdout.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config is the full platform configuration.
type Config struct {
	Environment    Environment `toml:"environment"`
	ChainMode      ChainMode   `toml:"chain_mode"`
	ListenAddress  string      `toml:"listen_address"`
	APIBaseURL     string      `toml:"api_base_url"`
	AllowedOrigins []string    `toml:"allowed_origins"`
	AllowedDomains []string    `toml:"allowed_domains"`

	MandateTTLSeconds int    `toml:"mandate_ttl_seconds"`
	DatabaseURL       string `toml:"database_url"`
	RedisURL          string `toml:"redis_url"`
	DataDir           string `toml:"data_dir"`
	SecretKey         string `toml:"secret_key"`
	Signer            string `toml:"signer"`

	ChainRPC  map[string]string `toml:"chain_rpc"`
	SignerKey string            `toml:"signer_key"`

	AgentPaymentRateLimit RateLimitConfig  `toml:"agent_payment_rate_limit"`
	ERC4337               ERC4337Config    `toml:"erc4337"`
	Settlement            SettlementConfig `toml:"settlement"`
	Telemetry             TelemetryConfig  `toml:"telemetry"`
	Log                   LogConfig        `toml:"log"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Environment:       EnvDev,
		ChainMode:         ChainSimulated,
		ListenAddress:     ":8080",
		APIBaseURL:        "http://localhost:8080",
		AllowedOrigins:    []string{"http://localhost:3000"},
		AllowedDomains:    []string{"pay.sardis.xyz"},
		MandateTTLSeconds: 900,
		DataDir:           "./sardis-data",
		Signer:            "simulated",
		AgentPaymentRateLimit: RateLimitConfig{
			Enabled:       true,
			MaxRequests:   60,
			WindowSeconds: 60,
		},
	}
}

// Load reads the TOML file at path; a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %s", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Persist writes the configuration back out, creating parent directories.
func Persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
