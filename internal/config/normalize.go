package config

import (
	"strings"

	"parareq/internal/spec"
)

// Defaults mirror the provider guidance for the embeddings endpoint:
// leave headroom below the published limits.
const (
	DefaultRequestURL        = "https://api.openai.com/v1/embeddings"
	DefaultAPIKeyEnv         = "OPENAI_API_KEY"
	DefaultTokenEncoding     = "cl100k_base"
	DefaultRequestsPerMinute = 1500
	DefaultTokensPerMinute   = 125000
	DefaultMaxInFlight       = 64
	DefaultMaxAttempts       = 5
	DefaultBaseDelayMs       = 1000
	DefaultGrowthFactor      = 2.0
	DefaultMaxDelayMs        = 60000
	DefaultCallTimeoutMs     = 120000
	DefaultCooldownMs        = 15000
)

// Normalize fills unset fields with defaults.
func Normalize(cfg *spec.Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.RequestURL) == "" {
		cfg.RequestURL = DefaultRequestURL
	}
	if strings.TrimSpace(cfg.APIKeyEnv) == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	if strings.TrimSpace(cfg.TokenEncoding) == "" {
		cfg.TokenEncoding = DefaultTokenEncoding
	}
	if strings.TrimSpace(cfg.UI) == "" {
		cfg.UI = "auto"
	}
	if strings.TrimSpace(cfg.ResultsFile) == "" && cfg.RequestsFile != "" {
		cfg.ResultsFile = DeriveResultsFile(cfg.RequestsFile)
	}
	if cfg.CallTimeoutMs == 0 {
		cfg.CallTimeoutMs = DefaultCallTimeoutMs
	}
	if cfg.RateLimitCooldownMs == 0 {
		cfg.RateLimitCooldownMs = DefaultCooldownMs
	}
	if cfg.Limits.RequestsPerMinute == 0 {
		cfg.Limits.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Limits.TokensPerMinute == 0 {
		cfg.Limits.TokensPerMinute = DefaultTokensPerMinute
	}
	if cfg.Limits.MaxInFlight == 0 {
		cfg.Limits.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = DefaultBaseDelayMs
	}
	if cfg.Retry.GrowthFactor == 0 {
		cfg.Retry.GrowthFactor = DefaultGrowthFactor
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = DefaultMaxDelayMs
	}
}

// DeriveResultsFile picks the default results path next to the requests
// file.
func DeriveResultsFile(requestsFile string) string {
	if strings.HasSuffix(requestsFile, ".jsonl") {
		return strings.TrimSuffix(requestsFile, ".jsonl") + "_results.jsonl"
	}
	return requestsFile + "_results.jsonl"
}
