// Package aggregate compares market data for one pair across several venues.
// Every call fans out one request per venue and tolerates individual failures.
package aggregate

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

// percentPlaces is the number of fractional digits kept in SpreadPercent.
const percentPlaces = 4

// Venue is the part of exchange.Exchange the aggregator reads from.
type Venue interface {
	Name() string
	Pairs() []string
	Supports(op core.Operation) bool
	Ticker(ctx context.Context, pair string) (*core.Ticker, error)
}

// Aggregator combines tickers from multiple venues.
type Aggregator struct {
	mu     sync.RWMutex
	venues map[string]Venue
	clock  core.Clock
	logger zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used to report per-venue failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithClock sets the clock used for result timestamps.
func WithClock(clock core.Clock) Option {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// New creates an aggregator with no venues.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		venues: make(map[string]Venue),
		clock:  core.SystemClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FromContainer creates an aggregator over every adapter registered in c.
func FromContainer(c *exchange.Container, opts ...Option) *Aggregator {
	a := New(opts...)
	for _, name := range c.Names() {
		if ex, err := c.Get(name); err == nil {
			a.Add(ex)
		}
	}
	return a
}

// Add registers v under its name, replacing any venue of the same name.
func (a *Aggregator) Add(v Venue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.venues[v.Name()] = v
}

// Remove unregisters the named venue.
func (a *Aggregator) Remove(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.venues, name)
}

// Venues returns the registered venue names in sorted order.
func (a *Aggregator) Venues() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Sorted(maps.Keys(a.venues))
}

// TickerResult holds the ticker or the error from a single venue.
type TickerResult struct {
	Exchange string       `json:"exchange"`
	Ticker   *core.Ticker `json:"ticker,omitempty"`
	Err      error        `json:"-"`
}

// Tickers fetches pair from every venue that lists it, concurrently.
// Results are ordered by venue name.
func (a *Aggregator) Tickers(ctx context.Context, pair string) []TickerResult {
	a.mu.RLock()
	venues := make([]Venue, 0, len(a.venues))
	for _, v := range a.venues {
		if v.Supports(core.OpTicker) && slices.Contains(v.Pairs(), pair) {
			venues = append(venues, v)
		}
	}
	a.mu.RUnlock()
	slices.SortFunc(venues, func(x, y Venue) int {
		return strings.Compare(x.Name(), y.Name())
	})

	results := make([]TickerResult, len(venues))
	var wg sync.WaitGroup
	for i, v := range venues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := TickerResult{Exchange: v.Name()}
			ticker, err := v.Ticker(ctx, pair)
			if err != nil {
				a.logger.Warn().Err(err).Str("exchange", v.Name()).Str("pair", pair).Msg("ticker failed")
				result.Err = fmt.Errorf("get ticker: %w", err)
			} else {
				result.Ticker = ticker
			}
			results[i] = result
		}()
	}
	wg.Wait()
	return results
}

// BestPrice is the highest bid and lowest ask for a pair across venues.
type BestPrice struct {
	Pair        string      `json:"pair"`
	Bid         apd.Decimal `json:"bid"`
	Ask         apd.Decimal `json:"ask"`
	BidExchange string      `json:"bid_exchange"`
	AskExchange string      `json:"ask_exchange"`
	// Spread is Ask - Bid. It is negative when the book is crossed across venues.
	Spread apd.Decimal `json:"spread"`
	// SpreadPercent is Spread relative to Bid, in percent.
	SpreadPercent  apd.Decimal `json:"spread_percent"`
	Crossed        bool        `json:"crossed"`
	Venues         int         `json:"venues"`
	LocalTimestamp int64       `json:"ltimestamp"`
}

// BestPrice finds the highest bid and the lowest ask for pair. Ties keep the
// venue that sorts first by name.
func (a *Aggregator) BestPrice(ctx context.Context, pair string) (*BestPrice, error) {
	tickers := a.Tickers(ctx, pair)

	var best *BestPrice
	for _, result := range tickers {
		if result.Err != nil {
			continue
		}
		t := result.Ticker
		if !t.Bid.Valid || !t.Ask.Valid {
			continue
		}
		if best == nil {
			best = &BestPrice{
				Pair:        pair,
				Bid:         t.Bid.Decimal,
				Ask:         t.Ask.Decimal,
				BidExchange: result.Exchange,
				AskExchange: result.Exchange,
			}
			best.Venues++
			continue
		}
		best.Venues++
		if t.Bid.Decimal.Cmp(&best.Bid) > 0 {
			best.Bid = t.Bid.Decimal
			best.BidExchange = result.Exchange
		}
		if t.Ask.Decimal.Cmp(&best.Ask) < 0 {
			best.Ask = t.Ask.Decimal
			best.AskExchange = result.Exchange
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no ticker data available for pair %s", pair)
	}

	spread, percent, err := spreadOf(best.Bid, best.Ask)
	if err != nil {
		return nil, err
	}
	best.Spread = spread
	best.SpreadPercent = percent
	best.Crossed = spread.Sign() < 0
	best.LocalTimestamp = a.clock.Now().Unix()
	return best, nil
}

// VenueQuote is one venue's top of book and its own spread.
type VenueQuote struct {
	Exchange      string      `json:"exchange"`
	Bid           apd.Decimal `json:"bid"`
	Ask           apd.Decimal `json:"ask"`
	Spread        apd.Decimal `json:"spread"`
	SpreadPercent apd.Decimal `json:"spread_percent"`
}

// Compare returns the top of book of every venue quoting pair, ordered by venue name.
func (a *Aggregator) Compare(ctx context.Context, pair string) ([]VenueQuote, error) {
	tickers := a.Tickers(ctx, pair)

	quotes := make([]VenueQuote, 0, len(tickers))
	for _, result := range tickers {
		if result.Err != nil || !result.Ticker.Bid.Valid || !result.Ticker.Ask.Valid {
			continue
		}
		bid, ask := result.Ticker.Bid.Decimal, result.Ticker.Ask.Decimal
		spread, percent, err := spreadOf(bid, ask)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", result.Exchange, err)
		}
		quotes = append(quotes, VenueQuote{
			Exchange:      result.Exchange,
			Bid:           bid,
			Ask:           ask,
			Spread:        spread,
			SpreadPercent: percent,
		})
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no ticker data available for pair %s", pair)
	}
	return quotes, nil
}

// spreadOf returns ask - bid exactly and its percentage of bid rounded half up.
func spreadOf(bid, ask apd.Decimal) (apd.Decimal, apd.Decimal, error) {
	var spread, ratio, percent apd.Decimal
	if _, err := apd.BaseContext.Sub(&spread, &ask, &bid); err != nil {
		return spread, percent, fmt.Errorf("calculate spread: %w", err)
	}
	if bid.IsZero() {
		return spread, percent, nil
	}

	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfUp
	hundred := apd.New(100, 0)
	if _, err := ctx.Mul(&ratio, &spread, hundred); err != nil {
		return spread, percent, fmt.Errorf("calculate spread percent: %w", err)
	}
	if _, err := ctx.Quo(&ratio, &ratio, &bid); err != nil {
		return spread, percent, fmt.Errorf("calculate spread percent: %w", err)
	}
	if _, err := ctx.Quantize(&percent, &ratio, -percentPlaces); err != nil {
		return spread, percent, fmt.Errorf("calculate spread percent: %w", err)
	}
	return spread, percent, nil
}
