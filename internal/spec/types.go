package spec

// Config is the full configuration surface for one run.
type Config struct {
	Version             int          `yaml:"version"`
	RequestsFile        string       `yaml:"requests_file"`
	ResultsFile         string       `yaml:"results_file"`
	RequestURL          string       `yaml:"request_url"`
	APIKeyEnv           string       `yaml:"api_key_env"`
	TokenEncoding       string       `yaml:"token_encoding"`
	ResultsDB           string       `yaml:"results_db"`
	UI                  string       `yaml:"ui"`
	CallTimeoutMs       int          `yaml:"call_timeout_ms"`
	RateLimitCooldownMs int          `yaml:"rate_limit_cooldown_ms"`
	Limits              LimitsConfig `yaml:"limits"`
	Retry               RetryConfig  `yaml:"retry"`
}

// LimitsConfig holds the externally imposed rate limits and the local
// concurrency cap.
type LimitsConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TokensPerMinute   float64 `yaml:"tokens_per_minute"`
	MaxInFlight       int     `yaml:"max_in_flight"`
}

// RetryConfig holds the retry and back-off knobs.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	BaseDelayMs  int     `yaml:"base_delay_ms"`
	GrowthFactor float64 `yaml:"growth_factor"`
	MaxDelayMs   int     `yaml:"max_delay_ms"`
}
