package config

import (
	"fmt"
	"strings"

	"parareq/internal/caller"
	"parareq/internal/spec"
	"parareq/internal/tokens"
)

// Validate checks a normalized config for contradictions.
func Validate(cfg *spec.Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.RequestsFile) == "" {
		return fmt.Errorf("requests_file is required")
	}
	endpoint, err := caller.EndpointFromURL(cfg.RequestURL)
	if err != nil {
		return err
	}
	if !tokens.SupportedEndpoint(endpoint) {
		return fmt.Errorf("unsupported API endpoint %q: token estimation covers completion and embedding requests only", endpoint)
	}
	if cfg.Limits.RequestsPerMinute <= 0 {
		return fmt.Errorf("limits.requests_per_minute must be positive")
	}
	if cfg.Limits.TokensPerMinute <= 0 {
		return fmt.Errorf("limits.tokens_per_minute must be positive")
	}
	if cfg.Limits.MaxInFlight < 1 {
		return fmt.Errorf("limits.max_in_flight must be at least 1")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if cfg.Retry.BaseDelayMs < 1 {
		return fmt.Errorf("retry.base_delay_ms must be positive")
	}
	if cfg.Retry.GrowthFactor < 1 {
		return fmt.Errorf("retry.growth_factor must be at least 1")
	}
	if cfg.Retry.MaxDelayMs < cfg.Retry.BaseDelayMs {
		return fmt.Errorf("retry.max_delay_ms must be at least retry.base_delay_ms")
	}
	if cfg.CallTimeoutMs < 1 {
		return fmt.Errorf("call_timeout_ms must be positive")
	}
	if cfg.RateLimitCooldownMs < 0 {
		return fmt.Errorf("rate_limit_cooldown_ms must not be negative")
	}
	switch cfg.UI {
	case "auto", "live", "plain":
	default:
		return fmt.Errorf("invalid ui mode %q (expected auto|live|plain)", cfg.UI)
	}
	return nil
}
