package coincheck

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"marketlink/internal/signing"
	"marketlink/pkg/core"
	"marketlink/pkg/normalize"
)

const BaseURL = "https://coincheck.com"

// balanceCurrencies are the wallets reported by Balance.
var balanceCurrencies = []string{"jpy", "btc"}

var pairs = normalize.PairTable{
	"btc_jpy": "btc_jpy",
}

// Public endpoints carry no success flag; private ones do.
var publicDescriptor = &normalize.Descriptor{
	Exchange: "coincheck",
	Pairs:    pairs,
	Ticker: normalize.TickerSpec{
		Ask:       normalize.Required("ask"),
		Bid:       normalize.Required("bid"),
		Last:      normalize.Required("last"),
		High:      normalize.Optional("high"),
		Low:       normalize.Optional("low"),
		Volume:    normalize.Required("volume"),
		Timestamp: normalize.Optional("timestamp"),
	},
	Depth: normalize.DepthSpec{
		Asks: normalize.P("asks"),
		Bids: normalize.P("bids"),
	},
	Status: normalize.StatusSpec{
		ErrorMessage: normalize.P("error"),
	},
}

var privateDescriptor = &normalize.Descriptor{
	Exchange: "coincheck",
	Pairs:    pairs,
	Status: normalize.StatusSpec{
		Success:      normalize.P("success"),
		ErrorMessage: normalize.P("error"),
	},
}

// Protocol implements the core.Protocol interface for Coincheck.
type Protocol struct {
	baseURL string
	clock   core.Clock
	signer  signing.URLBody
}

// NewProtocol creates a Coincheck protocol against baseURL.
func NewProtocol(baseURL string, clock core.Clock) *Protocol {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Protocol{baseURL: baseURL, clock: clock}
}

// Name returns the protocol identifier "coincheck".
func (p *Protocol) Name() string {
	return "coincheck"
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
		core.OpMarketBuy,
		core.OpMarketSell,
		core.OpCancel,
		core.OpWithdraw,
	}
}

// RateLimits returns the request budget for Coincheck.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{Requests: 5, Period: time.Second}
}

// BuildRequest constructs the Coincheck request for op.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpTicker:
		if err := p.checkPair(params); err != nil {
			return nil, err
		}
		return core.NewRequest(http.MethodGet, p.baseURL, "/api/ticker"), nil

	case core.OpDepth:
		if err := p.checkPair(params); err != nil {
			return nil, err
		}
		return core.NewRequest(http.MethodGet, p.baseURL, "/api/order_books"), nil

	case core.OpBalance:
		return core.NewRequest(http.MethodGet, p.baseURL, "/api/accounts/balance").SetRequireAuth(true), nil

	case core.OpOpenOrders:
		return core.NewRequest(http.MethodGet, p.baseURL, "/api/exchange/orders/opens").SetRequireAuth(true), nil

	case core.OpBuy, core.OpSell, core.OpMarketBuy, core.OpMarketSell:
		return p.buildOrderRequest(op, params)

	case core.OpCancel:
		id, err := params.String(core.ParamID)
		if err != nil {
			return nil, err
		}
		return core.NewRequest(http.MethodDelete, p.baseURL, "/api/exchange/orders/"+id).SetRequireAuth(true), nil

	case core.OpWithdraw:
		return p.buildSendRequest(params)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// orderBody keeps the field order the signature is computed over.
type orderBody struct {
	Rate            json.Number `json:"rate,omitempty"`
	Amount          json.Number `json:"amount,omitempty"`
	MarketBuyAmount json.Number `json:"market_buy_amount,omitempty"`
	OrderType       string      `json:"order_type"`
	Pair            string      `json:"pair"`
}

// buildOrderRequest encodes the order as JSON numbers: limit rates are truncated
// to whole yen and amounts are rounded half up to four places.
func (p *Protocol) buildOrderRequest(op core.Operation, params core.Params) (*core.Request, error) {
	if err := p.checkPair(params); err != nil {
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

	body := orderBody{OrderType: orderType(op), Pair: "btc_jpy"}
	switch op {
	case core.OpBuy, core.OpSell:
		rate, err := params.Decimal(core.ParamRate)
		if err != nil {
			return nil, err
		}
		rateText, err := core.FormatInteger(rate)
		if err != nil {
			return nil, err
		}
		body.Rate = json.Number(rateText)
		body.Amount = json.Number(amountText)
	case core.OpMarketBuy:
		body.MarketBuyAmount = json.Number(amountText)
	case core.OpMarketSell:
		body.Amount = json.Number(amountText)
	}

	raw, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	return core.NewRequest(http.MethodPost, p.baseURL, "/api/exchange/orders").
		SetBody(signing.ContentTypeJSON, raw).
		SetRequireAuth(true), nil
}

type sendBody struct {
	Address string      `json:"address"`
	Amount  json.Number `json:"amount"`
}

// buildSendRequest sends BTC to an external address; send_money moves no other currency.
func (p *Protocol) buildSendRequest(params core.Params) (*core.Request, error) {
	currency, err := params.String(core.ParamCurrency)
	if err != nil {
		return nil, err
	}
	if currency != "btc" {
		return nil, core.NewInvalidArgument(p.Name(), fmt.Sprintf("cannot send %s", currency))
	}
	address, err := params.String(core.ParamAddress)
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
	raw, err := sonic.Marshal(sendBody{Address: address, Amount: json.Number(amountText)})
	if err != nil {
		return nil, fmt.Errorf("marshal send: %w", err)
	}
	return core.NewRequest(http.MethodPost, p.baseURL, "/api/send_money").
		SetBody(signing.ContentTypeJSON, raw).
		SetRequireAuth(true), nil
}

func (p *Protocol) checkPair(params core.Params) error {
	pair, err := params.String(core.ParamPair)
	if err != nil {
		return err
	}
	if _, ok := pairs.Code(pair); !ok {
		return core.NewUnsupportedPair(p.Name(), pair)
	}
	return nil
}

func orderType(op core.Operation) string {
	switch op {
	case core.OpSell:
		return "sell"
	case core.OpMarketBuy:
		return "market_buy"
	case core.OpMarketSell:
		return "market_sell"
	default:
		return "buy"
	}
}

// SignRequest adds the ACCESS-* headers.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce string) error {
	return p.signer.Sign(req, creds, nonce)
}

// ParseResponse normalizes a Coincheck response.
func (p *Protocol) ParseResponse(op core.Operation, params core.Params, resp *core.Response) (any, error) {
	descriptor := privateDescriptor
	if !op.RequiresAuth() {
		descriptor = publicDescriptor
	}
	doc, err := descriptor.Inspect(resp)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()

	switch op {
	case core.OpTicker:
		pair, _ := params.String(core.ParamPair)
		return publicDescriptor.ParseTicker(doc, pair, now)

	case core.OpDepth:
		pair, _ := params.String(core.ParamPair)
		return publicDescriptor.ParseDepth(doc, pair, now)

	case core.OpBalance:
		return parseBalance(doc, now)

	case core.OpOpenOrders:
		return parseOpenOrders(doc, now)

	case core.OpBuy, core.OpSell, core.OpMarketBuy, core.OpMarketSell:
		return parseOrder(doc, now)

	case core.OpCancel:
		id, err := doc.String(normalize.P("id"))
		if err != nil {
			return nil, err
		}
		return &core.CancelResult{ID: id, Success: true}, nil

	case core.OpWithdraw:
		return parseSend(doc, params, now)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// parseBalance reports amount as the free balance plus what open orders reserve.
func parseBalance(doc *normalize.Document, now time.Time) (*core.Balance, error) {
	balance := &core.Balance{Assets: make(map[string]core.Asset, len(balanceCurrencies)), LocalTimestamp: now.Unix()}
	for _, currency := range balanceCurrencies {
		available, err := doc.Decimal(normalize.P(currency))
		if err != nil {
			return nil, err
		}
		reserved, err := doc.Decimal(normalize.P(currency + "_reserved"))
		if err != nil {
			return nil, err
		}
		amount, err := core.AddDecimal(available, reserved)
		if err != nil {
			return nil, err
		}
		balance.Assets[currency] = core.Asset{Amount: amount, Available: available}
	}
	return balance, nil
}

func parseOpenOrders(doc *normalize.Document, now time.Time) ([]core.OrderResult, error) {
	items, err := doc.Array(normalize.P("orders"))
	if err != nil {
		return nil, err
	}
	orders := make([]core.OrderResult, 0, len(items))
	for i := range items {
		order := normalize.Wrap(items[i])
		id, err := order.String(normalize.P("id"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		rate, err := order.OptionalDecimal(normalize.P("rate"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		amount, err := order.OptionalDecimal(normalize.P("pending_amount"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		kind, err := order.String(normalize.P("order_type"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		ts, err := order.OptionalUnixTime(normalize.P("created_at"))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		orders = append(orders, core.OrderResult{
			Success:        true,
			ID:             id,
			Pair:           "btc_jpy",
			Rate:           rate,
			Amount:         amount,
			OrderType:      kind,
			Timestamp:      ts,
			LocalTimestamp: now.Unix(),
		})
	}
	return orders, nil
}

func parseOrder(doc *normalize.Document, now time.Time) (*core.OrderResult, error) {
	id, err := doc.String(normalize.P("id"))
	if err != nil {
		return nil, err
	}
	rate, err := doc.OptionalDecimal(normalize.P("rate"))
	if err != nil {
		return nil, err
	}
	amount, err := doc.OptionalDecimal(normalize.P("amount"))
	if err != nil {
		return nil, err
	}
	if !amount.Valid {
		if amount, err = doc.OptionalDecimal(normalize.P("market_buy_amount")); err != nil {
			return nil, err
		}
	}
	kind, err := doc.String(normalize.P("order_type"))
	if err != nil {
		return nil, err
	}
	ts, err := doc.OptionalUnixTime(normalize.P("created_at"))
	if err != nil {
		return nil, err
	}
	return &core.OrderResult{
		Success:        true,
		ID:             id,
		Pair:           "btc_jpy",
		Rate:           rate,
		Amount:         amount,
		OrderType:      kind,
		Timestamp:      ts,
		LocalTimestamp: now.Unix(),
	}, nil
}

func parseSend(doc *normalize.Document, params core.Params, now time.Time) (*core.WithdrawResult, error) {
	id, err := doc.String(normalize.P("id"))
	if err != nil {
		return nil, err
	}
	amount, err := doc.OptionalDecimal(normalize.P("amount"))
	if err != nil {
		return nil, err
	}
	fee, err := doc.OptionalDecimal(normalize.P("fee"))
	if err != nil {
		return nil, err
	}
	address, err := doc.String(normalize.P("address"))
	if err != nil {
		address, _ = params.String(core.ParamAddress)
	}
	return &core.WithdrawResult{
		Success:        true,
		ID:             id,
		Currency:       "btc",
		Address:        address,
		Amount:         amount,
		Fee:            fee,
		LocalTimestamp: now.Unix(),
	}, nil
}
