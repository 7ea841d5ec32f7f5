package coincheck

import (
	"fmt"

	"marketlink/internal/nonce"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// Coincheck is the Coincheck adapter. Nonces count milliseconds.
// MarketBuy takes its amount in JPY; MarketSell takes it in BTC. Withdraw
// sends BTC only.
type Coincheck struct {
	*exchange.Adapter
}

var _ exchange.Exchange = (*Coincheck)(nil)

// New creates a Coincheck adapter. Public and private endpoints share one host,
// so only Config.PublicURL is consulted as an override.
func New(config *core.Config, opts ...exchange.Option) (*Coincheck, error) {
	options := exchange.ApplyOptions(opts...)
	protocol := NewProtocol(getBaseURL(config), options.Clock)

	adapter, err := exchange.NewAdapter(protocol, nonce.Milliseconds, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create coincheck adapter: %w", err)
	}
	return &Coincheck{Adapter: adapter}, nil
}

func getBaseURL(config *core.Config) string {
	if config.PublicURL != "" {
		return config.PublicURL
	}
	return BaseURL
}
