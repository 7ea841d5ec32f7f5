package quoine

import (
	"fmt"

	"marketlink/internal/nonce"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// Quoine is the Quoine adapter. Nonces count hundredths of a second.
type Quoine struct {
	*exchange.Adapter
}

var _ exchange.Exchange = (*Quoine)(nil)

// New creates a Quoine adapter. Public and private endpoints share one host.
func New(config *core.Config, opts ...exchange.Option) (*Quoine, error) {
	options := exchange.ApplyOptions(opts...)
	baseURL := BaseURL
	if config.PublicURL != "" {
		baseURL = config.PublicURL
	}

	adapter, err := exchange.NewAdapter(NewProtocol(baseURL, options.Clock), nonce.Centiseconds, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create quoine adapter: %w", err)
	}
	return &Quoine{Adapter: adapter}, nil
}
