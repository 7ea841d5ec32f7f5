package quoine

import (
	"fmt"
	"net/http"
	"time"

	"marketlink/internal/signing"
	"marketlink/pkg/core"
	"marketlink/pkg/normalize"
)

const BaseURL = "https://api.quoine.com"

// pairs maps canonical pairs to product codes.
var pairs = normalize.PairTable{
	"btc_jpy": "BTCJPY",
	"eth_jpy": "ETHJPY",
}

var productIDs = map[string]string{
	"btc_jpy": "5",
	"eth_jpy": "29",
}

// Quoine has no success flag; the HTTP status decides. The product endpoint
// carries no traded high or low, so those stay unset.
var descriptor = &normalize.Descriptor{
	Exchange: "quoine",
	Pairs:    pairs,
	Ticker: normalize.TickerSpec{
		Ask:    normalize.Required("market_ask"),
		Bid:    normalize.Required("market_bid"),
		Last:   normalize.Required("last_traded_price"),
		Volume: normalize.Required("volume_24h"),
	},
	Depth: normalize.DepthSpec{
		Asks: normalize.P("sell_price_levels"),
		Bids: normalize.P("buy_price_levels"),
	},
	Status: normalize.StatusSpec{
		ErrorMessage: normalize.P("message"),
	},
}

// Protocol implements the core.Protocol interface for Quoine.
type Protocol struct {
	baseURL string
	clock   core.Clock
	signer  signing.FormBody
}

// NewProtocol creates a Quoine protocol against baseURL.
func NewProtocol(baseURL string, clock core.Clock) *Protocol {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Protocol{baseURL: baseURL, clock: clock}
}

// Name returns the protocol identifier "quoine".
func (p *Protocol) Name() string {
	return "quoine"
}

// Pairs returns the supported canonical pairs.
func (p *Protocol) Pairs() []string {
	return pairs.Pairs()
}

// SupportedOperations returns public data and limit orders.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpTicker,
		core.OpDepth,
		core.OpBuy,
		core.OpSell,
	}
}

// RateLimits returns Quoine's published budget of 300 requests per 5 minutes.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{Requests: 300, Period: 5 * time.Minute}
}

// BuildRequest constructs the Quoine request for op. Tickers are looked up by
// product code, order books and orders by numeric product id.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	pair, err := params.String(core.ParamPair)
	if err != nil {
		return nil, err
	}
	code, ok := pairs.Code(pair)
	if !ok {
		return nil, core.NewUnsupportedPair(p.Name(), pair)
	}
	productID := productIDs[pair]

	switch op {
	case core.OpTicker:
		return core.NewRequest(http.MethodGet, p.baseURL, "/products/code/CASH/"+code), nil

	case core.OpDepth:
		return core.NewRequest(http.MethodGet, p.baseURL, "/products/"+productID+"/price_levels"), nil

	case core.OpBuy, core.OpSell:
		rate, err := params.Decimal(core.ParamRate)
		if err != nil {
			return nil, err
		}
		amount, err := params.Decimal(core.ParamAmount)
		if err != nil {
			return nil, err
		}
		quantity, err := core.FormatAmount(amount)
		if err != nil {
			return nil, err
		}
		side := "buy"
		if op == core.OpSell {
			side = "sell"
		}
		return core.NewRequest(http.MethodPost, p.baseURL, "/orders/").
			AddForm("order_type", "limit").
			AddForm("product_id", productID).
			AddForm("side", side).
			AddForm("quantity", quantity).
			AddForm("price", core.FormatPlain(rate)).
			SetRequireAuth(true), nil

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// SignRequest encodes the form with the nonce last and adds the Key and Sign headers.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce string) error {
	return p.signer.Sign(req, creds, nonce)
}

// ParseResponse normalizes a Quoine response.
func (p *Protocol) ParseResponse(op core.Operation, params core.Params, resp *core.Response) (any, error) {
	doc, err := descriptor.Inspect(resp)
	if err != nil {
		return nil, err
	}
	pair, _ := params.String(core.ParamPair)
	now := p.clock.Now()

	switch op {
	case core.OpTicker:
		return descriptor.ParseTicker(doc, pair, now)
	case core.OpDepth:
		return descriptor.ParseDepth(doc, pair, now)
	case core.OpBuy, core.OpSell:
		return parseOrder(doc, pair, now)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// parseOrder reports the order type as side and kind, e.g. "buy_limit".
func parseOrder(doc *normalize.Document, pair string, now time.Time) (*core.OrderResult, error) {
	id, err := doc.String(normalize.P("id"))
	if err != nil {
		return nil, err
	}
	price, err := doc.OptionalDecimal(normalize.P("price"))
	if err != nil {
		return nil, err
	}
	quantity, err := doc.OptionalDecimal(normalize.P("quantity"))
	if err != nil {
		return nil, err
	}
	side, err := doc.String(normalize.P("side"))
	if err != nil {
		return nil, err
	}
	kind, err := doc.String(normalize.P("order_type"))
	if err != nil {
		return nil, err
	}
	created, err := doc.OptionalInt64(normalize.P("created_at"))
	if err != nil {
		return nil, err
	}
	return &core.OrderResult{
		Success:        true,
		ID:             id,
		Pair:           pair,
		Rate:           price,
		Amount:         quantity,
		OrderType:      side + "_" + kind,
		Timestamp:      created,
		LocalTimestamp: now.Unix(),
	}, nil
}
