package exchange

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"marketlink/internal/circuitbreaker"
	"marketlink/internal/nonce"
	"marketlink/internal/ratelimit"
	"marketlink/internal/transport"
	"marketlink/pkg/core"
)

// Adapter drives a venue Protocol through the shared request pipeline:
// credential guard, request building, rate limiting, circuit breaking,
// signing with a per-adapter nonce, transport, and normalization.
// It is safe for concurrent use.
type Adapter struct {
	config         *core.Config
	protocol       core.Protocol
	httpClient     *transport.Client
	nonces         *nonce.Generator
	rateLimiter    *ratelimit.Limiter
	circuitBreaker *circuitbreaker.Breaker
	clock          core.Clock
	logger         zerolog.Logger
	supported      []core.Operation
	pairs          []string
}

var _ Exchange = (*Adapter)(nil)

// NewAdapter creates an Adapter for protocol. The config must name the same
// exchange as the protocol. Nonces use scale and the clock from opts.
func NewAdapter(protocol core.Protocol, scale nonce.Scale, config *core.Config, opts ...Option) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if config.Exchange != protocol.Name() {
		return nil, fmt.Errorf("validate config: exchange %q does not match protocol %q", config.Exchange, protocol.Name())
	}

	options := ApplyOptions(opts...)
	logger := options.Logger.Level(config.Level()).With().Str("exchange", protocol.Name()).Logger()

	var transportOpts []transport.Option
	if options.RootCAs != nil {
		transportOpts = append(transportOpts, transport.WithRootCAs(options.RootCAs))
	}

	limits := protocol.RateLimits()
	if config.RateLimitRequests > 0 {
		limits = core.RateLimitConfig{Requests: config.RateLimitRequests, Period: config.RateLimitPeriod}
	}

	logger.Debug().
		Object("credentials", config.Credentials).
		Int("rate_limit", limits.Requests).
		Dur("rate_period", limits.Period).
		Msg("adapter created")

	return &Adapter{
		config:         config,
		protocol:       protocol,
		httpClient:     transport.NewClient(config, logger, transportOpts...),
		nonces:         nonce.New(scale, options.Clock),
		rateLimiter:    ratelimit.FromConfig(limits),
		circuitBreaker: circuitbreaker.FromConfig(config, options.Clock),
		clock:          options.Clock,
		logger:         logger,
		supported:      protocol.SupportedOperations(),
		pairs:          protocol.Pairs(),
	}, nil
}

// Name returns the exchange identifier.
func (a *Adapter) Name() string {
	return a.protocol.Name()
}

// Pairs returns the canonical pairs the venue supports.
func (a *Adapter) Pairs() []string {
	return slices.Clone(a.pairs)
}

// Supports reports whether the venue offers op.
func (a *Adapter) Supports(op core.Operation) bool {
	return slices.Contains(a.supported, op)
}

// LastNonce returns the most recently issued nonce, or zero before the first signed call.
func (a *Adapter) LastNonce() int64 {
	return a.nonces.Last()
}

// BreakerState returns the circuit breaker state name, or "disabled".
func (a *Adapter) BreakerState() string {
	if a.circuitBreaker == nil {
		return "disabled"
	}
	return a.circuitBreaker.State().String()
}

// Close releases resources used by the adapter, including the HTTP client.
func (a *Adapter) Close() error {
	return a.httpClient.Close()
}

// Ticker returns the current ticker for pair.
func (a *Adapter) Ticker(ctx context.Context, pair string) (*core.Ticker, error) {
	result, err := a.execute(ctx, core.OpTicker, core.Params{core.ParamPair: pair})
	if err != nil {
		return nil, err
	}
	ticker, ok := result.(*core.Ticker)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return ticker, nil
}

// Depth returns the order book for pair in the order the venue sent it.
func (a *Adapter) Depth(ctx context.Context, pair string) (*core.Depth, error) {
	result, err := a.execute(ctx, core.OpDepth, core.Params{core.ParamPair: pair})
	if err != nil {
		return nil, err
	}
	depth, ok := result.(*core.Depth)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return depth, nil
}

// Balance returns the account balance per currency.
func (a *Adapter) Balance(ctx context.Context) (*core.Balance, error) {
	result, err := a.execute(ctx, core.OpBalance, core.Params{})
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*core.Balance)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return balance, nil
}

// OpenOrders returns the account's open orders.
func (a *Adapter) OpenOrders(ctx context.Context) ([]core.OrderResult, error) {
	result, err := a.execute(ctx, core.OpOpenOrders, core.Params{})
	if err != nil {
		return nil, err
	}
	orders, ok := result.([]core.OrderResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return orders, nil
}

// Buy places a limit buy order of amount at rate.
func (a *Adapter) Buy(ctx context.Context, pair string, rate, amount apd.Decimal) (*core.OrderResult, error) {
	return a.placeOrder(ctx, core.OpBuy, pair, &rate, amount)
}

// Sell places a limit sell order of amount at rate.
func (a *Adapter) Sell(ctx context.Context, pair string, rate, amount apd.Decimal) (*core.OrderResult, error) {
	return a.placeOrder(ctx, core.OpSell, pair, &rate, amount)
}

// MarketBuy places a market buy order. Venues differ on whether amount is in
// the quote or the base currency; see the venue package.
func (a *Adapter) MarketBuy(ctx context.Context, pair string, amount apd.Decimal) (*core.OrderResult, error) {
	return a.placeOrder(ctx, core.OpMarketBuy, pair, nil, amount)
}

// MarketSell places a market sell order of amount in the base currency.
func (a *Adapter) MarketSell(ctx context.Context, pair string, amount apd.Decimal) (*core.OrderResult, error) {
	return a.placeOrder(ctx, core.OpMarketSell, pair, nil, amount)
}

// Cancel cancels the open order id. A venue rejection is reported in the
// result, not as an error.
func (a *Adapter) Cancel(ctx context.Context, id string) (*core.CancelResult, error) {
	if id == "" {
		return nil, core.NewInvalidArgument(a.Name(), "order id is required")
	}
	result, err := a.execute(ctx, core.OpCancel, core.Params{core.ParamID: id})
	if err != nil {
		if exErr, ok := rejection(err); ok {
			return &core.CancelResult{
				ID:        id,
				Success:   false,
				Error:     rejectionMessage(exErr),
				ErrorCode: exErr.Code,
			}, nil
		}
		return nil, err
	}
	res, ok := result.(*core.CancelResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return res, nil
}

// CancelAll cancels every open order. See the package-level CancelAll.
func (a *Adapter) CancelAll(ctx context.Context) ([]core.CancelResult, error) {
	return CancelAll(ctx, a)
}

// Withdraw sends amount of currency to address.
func (a *Adapter) Withdraw(ctx context.Context, currency, address string, amount apd.Decimal) (*core.WithdrawResult, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return nil, core.NewInvalidArgument(a.Name(), "currency is required")
	}
	if address == "" {
		return nil, core.NewInvalidArgument(a.Name(), "address is required")
	}
	if amount.Sign() <= 0 {
		return nil, core.NewInvalidArgument(a.Name(), fmt.Sprintf("amount must be positive, got %s", amount.Text('f')))
	}

	params := core.Params{core.ParamCurrency: currency, core.ParamAddress: address, core.ParamAmount: amount}
	result, err := a.execute(ctx, core.OpWithdraw, params)
	if err != nil {
		if exErr, ok := rejection(err); ok {
			return &core.WithdrawResult{
				Success:        false,
				Currency:       currency,
				Address:        address,
				Amount:         core.SomeDecimal(amount),
				LocalTimestamp: a.clock.Now().Unix(),
				Error:          rejectionMessage(exErr),
				ErrorCode:      exErr.Code,
			}, nil
		}
		return nil, err
	}
	res, ok := result.(*core.WithdrawResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return res, nil
}

func (a *Adapter) placeOrder(ctx context.Context, op core.Operation, pair string, rate *apd.Decimal, amount apd.Decimal) (*core.OrderResult, error) {
	if amount.Sign() <= 0 {
		return nil, core.NewInvalidArgument(a.Name(), fmt.Sprintf("amount must be positive, got %s", amount.Text('f')))
	}
	params := core.Params{core.ParamPair: pair, core.ParamAmount: amount}
	if rate != nil {
		if rate.Sign() <= 0 {
			return nil, core.NewInvalidArgument(a.Name(), fmt.Sprintf("rate must be positive, got %s", rate.Text('f')))
		}
		params[core.ParamRate] = *rate
	}

	result, err := a.execute(ctx, op, params)
	if err != nil {
		if exErr, ok := rejection(err); ok {
			return &core.OrderResult{
				Success:        false,
				Pair:           pair,
				OrderType:      orderType(op),
				LocalTimestamp: a.clock.Now().Unix(),
				Error:          rejectionMessage(exErr),
				ErrorCode:      exErr.Code,
			}, nil
		}
		return nil, err
	}
	order, ok := result.(*core.OrderResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", result)
	}
	return order, nil
}

// execute runs op through the request pipeline.
func (a *Adapter) execute(ctx context.Context, op core.Operation, params core.Params) (any, error) {
	if !a.Supports(op) {
		return nil, core.NewUnsupportedOperation(a.Name(), op)
	}
	if op.RequiresAuth() && !a.config.Credentials.IsSet() {
		return nil, core.NewAuthMissing(a.Name())
	}
	if pair, ok := params[core.ParamPair].(string); ok && !slices.Contains(a.pairs, pair) {
		return nil, core.NewUnsupportedPair(a.Name(), pair)
	}

	req, err := a.protocol.BuildRequest(op, params)
	if err != nil {
		var exErr *core.ExchangeError
		if errors.As(err, &exErr) {
			return nil, err
		}
		return nil, core.NewInvalidArgument(a.Name(), fmt.Sprintf("build request: %v", err)).WithCause(err)
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, core.NewConnectionFailed(a.Name(), 0, fmt.Errorf("rate limit: %w", err)).
			WithCode(core.ErrCodeRateLimitWait)
	}
	if !a.circuitBreaker.Allow() {
		return nil, core.NewExchangeError(a.Name(), core.ErrorTypeConnectionFailed, 0,
			"circuit breaker open").WithCode(core.ErrCodeCircuitBreaker)
	}

	if req.RequireAuth {
		if err := a.protocol.SignRequest(req, a.config.Credentials, a.nonces.NextString()); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := a.httpClient.Do(ctx, req)
	if err != nil {
		a.circuitBreaker.Record(err)
		return nil, err
	}

	// A bad status with an unreadable body is a connection failure too.
	result, err := a.protocol.ParseResponse(op, params, resp)
	a.circuitBreaker.Record(err)
	if err != nil {
		var exErr *core.ExchangeError
		if !errors.As(err, &exErr) {
			err = core.NewMalformedResponse(a.Name(), resp.StatusCode, err)
		}
		a.logger.Warn().Err(err).Str("op", op.String()).Int("status", resp.StatusCode).Msg("parse response")
		return nil, err
	}
	return result, nil
}

func rejection(err error) (*core.ExchangeError, bool) {
	exErr, ok := core.AsExchangeError(err)
	if !ok || exErr.Type != core.ErrorTypeExchangeRejected {
		return nil, false
	}
	return exErr, true
}

func rejectionMessage(e *core.ExchangeError) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func orderType(op core.Operation) string {
	switch op {
	case core.OpBuy:
		return "buy"
	case core.OpSell:
		return "sell"
	case core.OpMarketBuy:
		return "market_buy"
	case core.OpMarketSell:
		return "market_sell"
	}
	return ""
}
