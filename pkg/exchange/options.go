package exchange

import (
	"crypto/x509"

	"github.com/rs/zerolog"

	"marketlink/pkg/core"
)

// Option is a functional option for configuring an Adapter.
type Option func(*Options)

// Options holds configuration options shared by every venue adapter.
type Options struct {
	Logger  zerolog.Logger
	Clock   core.Clock
	RootCAs *x509.CertPool
}

// WithLogger returns an option that sets the logger for the adapter.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClock returns an option that sets the clock used for nonces and local timestamps.
func WithClock(c core.Clock) Option {
	return func(o *Options) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithRootCAs returns an option that replaces the system certificate roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *Options) {
		o.RootCAs = pool
	}
}

// ApplyOptions resolves opts over the defaults: a no-op logger and the system clock.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		Logger: zerolog.Nop(),
		Clock:  core.SystemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
