package zaif

import (
	"fmt"

	"marketlink/internal/nonce"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// Zaif is the Zaif adapter. Nonces are microseconds rendered as fractional
// seconds, e.g. "1700000000.000001".
type Zaif struct {
	*exchange.Adapter
}

var _ exchange.Exchange = (*Zaif)(nil)

// New creates a Zaif adapter. Credentials are optional; without them only
// public operations succeed.
func New(config *core.Config, opts ...exchange.Option) (*Zaif, error) {
	options := exchange.ApplyOptions(opts...)
	publicURL, privateURL := PublicURL, PrivateURL
	if config.PublicURL != "" {
		publicURL = config.PublicURL
	}
	if config.PrivateURL != "" {
		privateURL = config.PrivateURL
	}

	adapter, err := exchange.NewAdapter(NewProtocol(publicURL, privateURL, options.Clock), nonce.MicroFloat, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create zaif adapter: %w", err)
	}
	return &Zaif{Adapter: adapter}, nil
}
