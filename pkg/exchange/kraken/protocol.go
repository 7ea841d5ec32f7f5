package kraken

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketlink/pkg/core"
	"marketlink/pkg/normalize"
)

const PublicURL = "https://api.kraken.com/0/public"

var pairs = normalize.PairTable{
	"btc_jpy": "XXBTZJPY",
	"eth_jpy": "XETHZJPY",
}

// Result bodies are keyed by the venue pair code. Ticker fields are arrays:
// index 0 is today, index 1 the last 24 hours.
var descriptor = &normalize.Descriptor{
	Exchange: "kraken",
	Pairs:    pairs,
	Ticker: normalize.TickerSpec{
		Root:   normalize.P("result", normalize.PairCode),
		Ask:    normalize.Required("a", 0),
		Bid:    normalize.Required("b", 0),
		Last:   normalize.Required("c", 0),
		High:   normalize.Optional("h", 1),
		Low:    normalize.Optional("l", 1),
		Volume: normalize.Required("v", 1),
		VWAP:   normalize.Optional("p", 1),
	},
	Depth: normalize.DepthSpec{
		Root: normalize.P("result", normalize.PairCode),
		Asks: normalize.P("asks"),
		Bids: normalize.P("bids"),
	},
	Status: normalize.StatusSpec{
		ErrorList: normalize.P("error"),
	},
}

var errPublicOnly = errors.New("kraken: private endpoints are not supported")

// Protocol implements the core.Protocol interface for Kraken.
type Protocol struct {
	publicURL string
	clock     core.Clock
}

// NewProtocol creates a Kraken protocol against publicURL.
func NewProtocol(publicURL string, clock core.Clock) *Protocol {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Protocol{publicURL: publicURL, clock: clock}
}

// Name returns the protocol identifier "kraken".
func (p *Protocol) Name() string {
	return "kraken"
}

// Pairs returns the supported canonical pairs.
func (p *Protocol) Pairs() []string {
	return pairs.Pairs()
}

// SupportedOperations returns the public ticker and depth only.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{core.OpTicker, core.OpDepth}
}

// RateLimits mirrors Kraken's public counter: a burst of 15 refilled at one per second.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{Requests: 15, Period: 15 * time.Second}
}

// BuildRequest constructs the Kraken request for op with the venue pair code
// in the query.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	var path string
	switch op {
	case core.OpTicker:
		path = "/Ticker"
	case core.OpDepth:
		path = "/Depth"
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}

	pair, err := params.String(core.ParamPair)
	if err != nil {
		return nil, err
	}
	code, ok := pairs.Code(pair)
	if !ok {
		return nil, core.NewUnsupportedPair(p.Name(), pair)
	}
	return core.NewRequest(http.MethodGet, p.publicURL, path).SetQuery("pair", code), nil
}

// SignRequest always fails; no private endpoint is wired.
func (p *Protocol) SignRequest(*core.Request, core.Credentials, string) error {
	return errPublicOnly
}

// ParseResponse normalizes a Kraken response. A non-empty error list is a rejection.
func (p *Protocol) ParseResponse(op core.Operation, params core.Params, resp *core.Response) (any, error) {
	doc, err := descriptor.Inspect(resp)
	if err != nil {
		return nil, err
	}
	pair, _ := params.String(core.ParamPair)

	switch op {
	case core.OpTicker:
		return descriptor.ParseTicker(doc, pair, p.clock.Now())
	case core.OpDepth:
		return descriptor.ParseDepth(doc, pair, p.clock.Now())
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}
