package kraken

import (
	"fmt"

	"marketlink/internal/nonce"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// Kraken is the Kraken adapter. It never signs, so credentials are ignored.
type Kraken struct {
	*exchange.Adapter
}

var _ exchange.Exchange = (*Kraken)(nil)

func New(config *core.Config, opts ...exchange.Option) (*Kraken, error) {
	options := exchange.ApplyOptions(opts...)
	baseURL := PublicURL
	if config.PublicURL != "" {
		baseURL = config.PublicURL
	}

	adapter, err := exchange.NewAdapter(NewProtocol(baseURL, options.Clock), nonce.Centiseconds, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create kraken adapter: %w", err)
	}
	return &Kraken{Adapter: adapter}, nil
}
