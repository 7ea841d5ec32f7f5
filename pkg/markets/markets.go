// Package markets builds venue adapters by exchange name.
package markets

import (
	"fmt"
	"slices"

	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
	"marketlink/pkg/exchange/bitbank"
	"marketlink/pkg/exchange/coincheck"
	"marketlink/pkg/exchange/kraken"
	"marketlink/pkg/exchange/quoine"
	"marketlink/pkg/exchange/zaif"
)

// Factory creates an adapter from a validated config.
type Factory func(config *core.Config, opts ...exchange.Option) (exchange.Exchange, error)

var factories = map[string]Factory{
	"bitbank": func(c *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
		return bitbank.New(c, opts...)
	},
	"coincheck": func(c *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
		return coincheck.New(c, opts...)
	},
	"kraken": func(c *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
		return kraken.New(c, opts...)
	},
	"quoine": func(c *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
		return quoine.New(c, opts...)
	},
	"zaif": func(c *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
		return zaif.New(c, opts...)
	},
}

// Names returns the supported exchange names in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New creates the adapter named by config.Exchange.
func New(config *core.Config, opts ...exchange.Option) (exchange.Exchange, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	factory, ok := factories[config.Exchange]
	if !ok {
		return nil, fmt.Errorf("unknown exchange %q", config.Exchange)
	}
	return factory(config, opts...)
}

// FromEnv creates the named adapter from ConfigFromEnv.
func FromEnv(name string, opts ...exchange.Option) (exchange.Exchange, error) {
	config, err := core.ConfigFromEnv(name)
	if err != nil {
		return nil, err
	}
	return New(config, opts...)
}

// NewContainer creates an adapter for each config and registers it. A later
// config for the same exchange replaces the earlier one. On failure every adapter created so far is closed.
func NewContainer(configs []*core.Config, opts ...exchange.Option) (*exchange.Container, error) {
	container := exchange.NewContainer()
	for _, config := range configs {
		ex, err := New(config, opts...)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("create %s: %w", config.Exchange, err)
		}
		if prev := container.Register(ex); prev != nil {
			prev.Close()
		}
	}
	return container, nil
}
