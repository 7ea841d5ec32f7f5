package bitbank

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"marketlink/internal/signing"
	"marketlink/pkg/core"
	"marketlink/pkg/normalize"
)

const (
	PublicURL  = "https://public.bitbank.cc"
	PrivateURL = "https://api.bitbank.cc/v1"

	// pathPrefix is the version segment of PrivateURL that the signature covers.
	pathPrefix = "/v1"
)

var pairs = normalize.PairTable{
	"btc_jpy": "btc_jpy",
	"xrp_jpy": "xrp_jpy",
	"eth_btc": "eth_btc",
	"ltc_btc": "ltc_btc",
}

var descriptor = &normalize.Descriptor{
	Exchange: "bitbank",
	Pairs:    pairs,
	Ticker: normalize.TickerSpec{
		Root:      normalize.P("data"),
		Ask:       normalize.Required("sell"),
		Bid:       normalize.Required("buy"),
		Last:      normalize.Required("last"),
		High:      normalize.Optional("high"),
		Low:       normalize.Optional("low"),
		Volume:    normalize.Required("vol"),
		Timestamp: normalize.Optional("timestamp"),
	},
	Depth: normalize.DepthSpec{
		Root: normalize.P("data"),
		Asks: normalize.P("asks"),
		Bids: normalize.P("bids"),
	},
	Status: normalize.StatusSpec{
		Success:   normalize.P("success"),
		ErrorCode: normalize.P("data", "code"),
	},
}

// Protocol implements the core.Protocol interface for bitbank.
type Protocol struct {
	publicURL  string
	privateURL string
	clock      core.Clock
	signer     signing.HeaderPath
}

// NewProtocol creates a bitbank protocol against the given endpoints.
func NewProtocol(publicURL, privateURL string, clock core.Clock) *Protocol {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Protocol{
		publicURL:  publicURL,
		privateURL: privateURL,
		clock:      clock,
		signer:     signing.HeaderPath{Prefix: pathPrefix},
	}
}

// Name returns the protocol identifier "bitbank".
func (p *Protocol) Name() string {
	return "bitbank"
}

// Pairs returns the supported canonical pairs.
func (p *Protocol) Pairs() []string {
	return pairs.Pairs()
}

// SupportedOperations returns the list of operations supported by this protocol.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpTicker,
		core.OpDepth,
		core.OpBalance,
		core.OpOpenOrders,
		core.OpBuy,
		core.OpSell,
	}
}

// RateLimits returns the request budget for bitbank.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{Requests: 10, Period: time.Second}
}

// BuildRequest constructs the bitbank request for op.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpTicker, core.OpDepth:
		pair, err := p.pairCode(params)
		if err != nil {
			return nil, err
		}
		endpoint := "/ticker"
		if op == core.OpDepth {
			endpoint = "/depth"
		}
		return core.NewRequest(http.MethodGet, p.publicURL, "/"+pair+endpoint), nil

	case core.OpBalance:
		return core.NewRequest(http.MethodGet, p.privateURL, "/user/assets").SetRequireAuth(true), nil

	case core.OpOpenOrders:
		return core.NewRequest(http.MethodGet, p.privateURL, "/user/spot/active_orders").SetRequireAuth(true), nil

	case core.OpBuy, core.OpSell:
		return p.buildOrderRequest(op, params)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

type orderBody struct {
	Pair   string `json:"pair"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
	Side   string `json:"side"`
	Type   string `json:"type"`
}

func (p *Protocol) buildOrderRequest(op core.Operation, params core.Params) (*core.Request, error) {
	pair, err := p.pairCode(params)
	if err != nil {
		return nil, err
	}
	rate, err := params.Decimal(core.ParamRate)
	if err != nil {
		return nil, err
	}
	amount, err := params.Decimal(core.ParamAmount)
	if err != nil {
		return nil, err
	}
	amountText, err := core.FormatAmount(amount)
	if err != nil {
		return nil, err
	}

	body, err := sonic.Marshal(orderBody{
		Pair:   pair,
		Amount: amountText,
		Price:  core.FormatPlain(rate),
		Side:   side(op),
		Type:   "limit",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	return core.NewRequest(http.MethodPost, p.privateURL, "/user/spot/order").
		SetBody(signing.ContentTypeJSON, body).
		SetRequireAuth(true), nil
}

func (p *Protocol) pairCode(params core.Params) (string, error) {
	pair, err := params.String(core.ParamPair)
	if err != nil {
		return "", err
	}
	code, ok := pairs.Code(pair)
	if !ok {
		return "", core.NewUnsupportedPair(p.Name(), pair)
	}
	return code, nil
}

func side(op core.Operation) string {
	if op == core.OpSell {
		return "sell"
	}
	return "buy"
}

// SignRequest adds the ACCESS-* headers. Every private request is signed over
// the nonce, the versioned path, and the query string.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce string) error {
	return p.signer.Sign(req, creds, nonce)
}

// ParseResponse normalizes a bitbank response.
func (p *Protocol) ParseResponse(op core.Operation, params core.Params, resp *core.Response) (any, error) {
	doc, err := descriptor.Inspect(resp)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()

	switch op {
	case core.OpTicker:
		pair, _ := params.String(core.ParamPair)
		return descriptor.ParseTicker(doc, pair, now)

	case core.OpDepth:
		pair, _ := params.String(core.ParamPair)
		return descriptor.ParseDepth(doc, pair, now)

	case core.OpBalance:
		return parseBalance(doc, now)

	case core.OpOpenOrders:
		return parseOpenOrders(doc, now)

	case core.OpBuy, core.OpSell:
		return parseOrder(doc, op, params, now)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

func parseBalance(doc *normalize.Document, now time.Time) (*core.Balance, error) {
	assets, err := doc.Array(normalize.P("data", "assets"))
	if err != nil {
		return nil, err
	}
	balance := &core.Balance{Assets: make(map[string]core.Asset, len(assets)), LocalTimestamp: now.Unix()}
	for i := range assets {
		base := normalize.P("data", "assets", i)
		currency, err := doc.String(base.Join("asset"))
		if err != nil {
			return nil, err
		}
		if currency == "" {
			continue
		}
		amount, err := doc.Decimal(base.Join("onhand_amount"))
		if err != nil {
			return nil, err
		}
		available, err := doc.Decimal(base.Join("free_amount"))
		if err != nil {
			return nil, err
		}
		balance.Assets[strings.ToLower(currency)] = core.Asset{Amount: amount, Available: available}
	}
	return balance, nil
}

func parseOpenOrders(doc *normalize.Document, now time.Time) ([]core.OrderResult, error) {
	items, err := doc.Array(normalize.P("data", "orders"))
	if err != nil {
		return nil, err
	}
	orders := make([]core.OrderResult, 0, len(items))
	for i := range items {
		order := normalize.Wrap(items[i])
		id, err := order.String(normalize.P("order_id"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		pair, err := order.String(normalize.P("pair"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		orderSide, err := order.String(normalize.P("side"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		rate, err := order.OptionalDecimal(normalize.P("price"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		amount, err := order.Decimal(normalize.P("start_amount"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		ts, err := order.OptionalInt64(normalize.P("ordered_at"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		orders = append(orders, core.OrderResult{
			Success:        true,
			ID:             id,
			Pair:           pair,
			Rate:           rate,
			Amount:         core.SomeDecimal(amount),
			OrderType:      orderSide,
			Timestamp:      ts,
			LocalTimestamp: now.Unix(),
		})
	}
	return orders, nil
}

func parseOrder(doc *normalize.Document, op core.Operation, params core.Params, now time.Time) (*core.OrderResult, error) {
	id, err := doc.String(normalize.P("data", "order_id"))
	if err != nil {
		return nil, err
	}
	ts, err := doc.OptionalInt64(normalize.P("data", "ordered_at"))
	if err != nil {
		return nil, err
	}
	pair, _ := params.String(core.ParamPair)
	rate, _ := params.Decimal(core.ParamRate)
	amount, _ := params.Decimal(core.ParamAmount)

	return &core.OrderResult{
		Success:        true,
		ID:             id,
		Pair:           pair,
		Rate:           core.SomeDecimal(*rate),
		Amount:         core.SomeDecimal(*amount),
		OrderType:      side(op),
		Timestamp:      ts,
		LocalTimestamp: now.Unix(),
	}, nil
}
