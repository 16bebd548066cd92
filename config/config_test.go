package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, ChainSimulated, cfg.ChainMode)
	require.Equal(t, 900, cfg.MandateTTLSeconds)
	require.True(t, cfg.AgentPaymentRateLimit.Enabled)
}

func TestLoadDecodesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sardis.toml")
	body := `
environment = "sandbox"
chain_mode = "simulated"
listen_address = ":9090"
api_base_url = "https://api.sandbox.sardis.xyz"
allowed_origins = ["https://app.sandbox.sardis.xyz"]
allowed_domains = ["pay.sardis.xyz", "merchant.example"]
mandate_ttl_seconds = 300
secret_key = "0123456789abcdef0123456789abcdef"
signer = "kms"

[agent_payment_rate_limit]
enabled = true
max_requests = 120
window_seconds = 30

[erc4337]
enabled = true
chain_allowlist = ["base"]
entrypoint_v07_address = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"
rollout_stage = "canary"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EnvSandbox, cfg.Environment)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, []string{"pay.sardis.xyz", "merchant.example"}, cfg.AllowedDomains)
	require.Equal(t, 300, cfg.MandateTTLSeconds)
	require.Equal(t, 120, cfg.AgentPaymentRateLimit.MaxRequests)
	require.True(t, cfg.ERC4337.Enabled)
	require.Equal(t, "canary", cfg.ERC4337.RolloutStage)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sardis.toml")
	require.NoError(t, os.WriteFile(path, []byte("environment = \"dev\"\nmystery = true\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown key")
}

func TestValidateProdRules(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Environment = EnvProd
		cfg.ChainMode = ChainLive
		cfg.SecretKey = "0123456789abcdef0123456789abcdef"
		cfg.Signer = "kms"
		cfg.AllowedOrigins = []string{"https://app.sardis.xyz"}
		cfg.ChainRPC = map[string]string{"base": "https://mainnet.base.org"}
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.ChainMode = ChainSimulated
	require.ErrorContains(t, cfg.Validate(), "chain_mode must be live")
	cfg.Settlement.AllowOffchainInProd = true
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.SecretKey = "short"
	require.ErrorContains(t, cfg.Validate(), "secret_key")

	cfg = base()
	cfg.Signer = "simulated"
	require.ErrorContains(t, cfg.Validate(), "signer")

	cfg = base()
	cfg.AllowedOrigins = []string{"http://app.sardis.xyz"}
	require.ErrorContains(t, cfg.Validate(), "https")

	cfg = base()
	cfg.AllowedOrigins = []string{"https://localhost:3000"}
	require.ErrorContains(t, cfg.Validate(), "localhost")

	cfg = base()
	cfg.AllowedOrigins = []string{"*"}
	require.ErrorContains(t, cfg.Validate(), "wildcards")

	cfg = base()
	cfg.ChainRPC = nil
	require.ErrorContains(t, cfg.Validate(), "chain_rpc")
}

func TestValidateSandboxNeedsSecret(t *testing.T) {
	cfg := Default()
	cfg.Environment = EnvSandbox
	require.ErrorContains(t, cfg.Validate(), "secret_key")

	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.Validate())
}

func TestValidateERC4337(t *testing.T) {
	cfg := Default()
	cfg.ERC4337.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "entrypoint_v07_address")

	cfg.ERC4337.EntrypointV07Address = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"
	require.ErrorContains(t, cfg.Validate(), "chain_allowlist")

	cfg.ERC4337.ChainAllowlist = []string{"base"}
	require.NoError(t, cfg.Validate())
}

func TestPersistRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sardis.toml")
	cfg := Default()
	cfg.ListenAddress = ":7001"
	require.NoError(t, Persist(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7001", loaded.ListenAddress)
}
