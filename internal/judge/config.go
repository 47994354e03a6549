package judge

import "time"

// Config configures the external judge adapter.
type Config struct {
	// URL is the text-generation endpoint the prompt is POSTed to.
	URL string
	// HealthURL is probed by reachability checks. Defaults to URL.
	HealthURL string
	// Token is sent as a bearer token when set.
	Token string

	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification. Off by default.
	InsecureSkipVerify bool

	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool

	// RatePerSecond and Burst throttle outbound calls. Zero disables throttling.
	RatePerSecond float64
	Burst         int

	// CacheTTL keeps genuine verdicts keyed by prompt. Zero disables caching.
	CacheTTL time.Duration
}

// DefaultConfig returns the generation parameters the prompt was tuned with.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		MaxNewTokens:  1024,
		Temperature:   0.1,
		TopP:          0.95,
		DoSample:      true,
		RatePerSecond: 2,
		Burst:         4,
		CacheTTL:      10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxNewTokens <= 0 {
		c.MaxNewTokens = d.MaxNewTokens
	}
	if c.TopP <= 0 {
		c.TopP = d.TopP
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.HealthURL == "" {
		c.HealthURL = c.URL
	}
	return c
}
