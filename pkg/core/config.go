package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Credentials holds API authentication credentials for an exchange.
// The secret never leaves the signing path: it is excluded from JSON
// and masked in fmt and zerolog output.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"-"`
	// APISecret is the private key used for signing requests.
	APISecret string `json:"-"`
}

// IsSet reports whether both the key and the secret are present.
func (c Credentials) IsSet() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// String renders the credentials with the key masked and the secret omitted.
func (c Credentials) String() string {
	return "Credentials{APIKey:" + maskKey(c.APIKey) + "}"
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string {
	return c.String()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("api_key", maskKey(c.APIKey)).Bool("secret_set", c.APISecret != "")
}

func maskKey(k string) string {
	if k == "" {
		return "<empty>"
	}
	if len(k) <= 4 {
		return "****"
	}
	return k[:4] + "****"
}

// Config contains all configuration options for an exchange adapter.
// It covers authentication, endpoints, networking, rate limiting, and circuit breaker settings.
type Config struct {
	Exchange    string      `json:"exchange" validate:"required,oneof=bitbank coincheck kraken quoine zaif"`
	Credentials Credentials `json:"-"`

	// PublicURL and PrivateURL override the venue's fixed endpoints. Empty means the default.
	PublicURL  string `json:"public_url,omitempty" validate:"omitempty,url"`
	PrivateURL string `json:"private_url,omitempty" validate:"omitempty,url"`

	// ConnectTimeout bounds dialing; ReadTimeout bounds waiting for response headers.
	ConnectTimeout time.Duration `json:"connect_timeout" validate:"min=1ms"`
	ReadTimeout    time.Duration `json:"read_timeout" validate:"min=1ms"`
	// TLSMaxChainDepth is the maximum number of issuer certificates above the peer
	// certificate in a verified chain.
	TLSMaxChainDepth int `json:"tls_max_chain_depth" validate:"min=1"`

	// RateLimitRequests of zero uses the venue's own budget.
	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=0"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// DefaultConfig returns a Config initialized with sensible defaults for the specified exchange.
// Default values: 5s connect and 15s read timeouts, chain depth 5, venue rate limits,
// circuit breaker with 5 failures/2 successes/30s timeout.
func DefaultConfig(exchange string) *Config {
	return &Config{
		Exchange:         exchange,
		ConnectTimeout:   5 * time.Second,
		ReadTimeout:      15 * time.Second,
		TLSMaxChainDepth: 5,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RateLimitPeriod must be positive when RateLimitRequests is set")
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// Level returns the zerolog level named by LogLevel, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(key, secret string) *Config {
	c.Credentials = Credentials{APIKey: key, APISecret: secret}
	return c
}

// WithURLs overrides the public and private endpoints and returns the config for chaining.
func (c *Config) WithURLs(public, private string) *Config {
	c.PublicURL = public
	c.PrivateURL = private
	return c
}

// WithTimeouts sets the connect and read timeouts and returns the config for chaining.
func (c *Config) WithTimeouts(connect, read time.Duration) *Config {
	c.ConnectTimeout = connect
	c.ReadTimeout = read
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCircuitBreaker enables or disables the circuit breaker and returns the config for chaining.
func (c *Config) WithCircuitBreaker(enabled bool) *Config {
	c.CircuitBreakerEnabled = enabled
	return c
}
