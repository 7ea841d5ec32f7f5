package bitbank

import (
	"fmt"

	"marketlink/internal/nonce"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// Bitbank is the bitbank.cc adapter. Nonces count hundredths of a second.
type Bitbank struct {
	*exchange.Adapter
}

var _ exchange.Exchange = (*Bitbank)(nil)

// New creates a Bitbank adapter. Credentials are optional; without them only
// public operations succeed.
func New(config *core.Config, opts ...exchange.Option) (*Bitbank, error) {
	options := exchange.ApplyOptions(opts...)
	protocol := NewProtocol(getPublicURL(config), getPrivateURL(config), options.Clock)

	adapter, err := exchange.NewAdapter(protocol, nonce.Centiseconds, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bitbank adapter: %w", err)
	}
	return &Bitbank{Adapter: adapter}, nil
}

func getPublicURL(config *core.Config) string {
	if config.PublicURL != "" {
		return config.PublicURL
	}
	return PublicURL
}

func getPrivateURL(config *core.Config) string {
	if config.PrivateURL != "" {
		return config.PrivateURL
	}
	return PrivateURL
}
