package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks cross-field invariants. Production configurations must
// dispatch to live chains, carry a strong secret, and restrict CORS to
// HTTPS origins.
func (c *Config) Validate() error {
	if !c.Environment.Valid() {
		return fmt.Errorf("environment must be dev, sandbox, or prod; got %q", c.Environment)
	}
	if c.ChainMode != ChainSimulated && c.ChainMode != ChainLive {
		return fmt.Errorf("chain_mode must be simulated or live; got %q", c.ChainMode)
	}
	if c.MandateTTLSeconds <= 0 {
		return fmt.Errorf("mandate_ttl_seconds must be positive; got %d", c.MandateTTLSeconds)
	}
	if c.AgentPaymentRateLimit.Enabled {
		if c.AgentPaymentRateLimit.MaxRequests <= 0 {
			return fmt.Errorf("agent_payment_rate_limit.max_requests must be positive when enabled")
		}
		if c.AgentPaymentRateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("agent_payment_rate_limit.window_seconds must be positive when enabled")
		}
	}
	if c.ChainMode == ChainLive && len(c.ChainRPC) == 0 {
		return fmt.Errorf("chain_rpc endpoints are required when chain_mode is live")
	}
	if c.Environment != EnvDev {
		if len(c.SecretKey) < 32 {
			return fmt.Errorf("secret_key must be at least 32 characters outside dev")
		}
	}
	if c.Environment == EnvProd {
		if c.ChainMode != ChainLive && !c.Settlement.AllowOffchainInProd {
			return fmt.Errorf("chain_mode must be live in prod unless settlement.allow_offchain_in_prod is set")
		}
		if isSimulatedSigner(c.Signer) {
			return fmt.Errorf("signer %q is not permitted in prod", c.Signer)
		}
		for _, origin := range c.AllowedOrigins {
			if err := validateProdOrigin(origin); err != nil {
				return err
			}
		}
	}
	if c.ERC4337.Enabled {
		if c.ERC4337.EntrypointV07Address == "" {
			return fmt.Errorf("erc4337.entrypoint_v07_address is required when erc4337 is enabled")
		}
		if len(c.ERC4337.ChainAllowlist) == 0 {
			return fmt.Errorf("erc4337.chain_allowlist must not be empty when erc4337 is enabled")
		}
	}
	return nil
}

func isSimulatedSigner(signer string) bool {
	switch strings.ToLower(strings.TrimSpace(signer)) {
	case "", "simulated", "local":
		return true
	}
	return false
}

func validateProdOrigin(origin string) error {
	if origin == "*" || strings.Contains(origin, "*") {
		return fmt.Errorf("allowed_origins must not contain wildcards in prod")
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("allowed_origins entry %q is not a valid URL", origin)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("allowed_origins entry %q must use https in prod", origin)
	}
	host := parsed.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("allowed_origins entry %q must not target localhost in prod", origin)
	}
	return nil
}
