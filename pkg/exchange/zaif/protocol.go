package zaif

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"marketlink/internal/signing"
	"marketlink/pkg/core"
	"marketlink/pkg/normalize"
)

const (
	PublicURL  = "https://api.zaif.jp/api/1"
	PrivateURL = "https://api.zaif.jp/tapi"
)

// Trade API methods.
const (
	methodGetInfo      = "get_info"
	methodActiveOrders = "active_orders"
	methodTrade        = "trade"
	methodCancelOrder  = "cancel_order"
	methodWithdraw     = "withdraw"
)

// btcWithdrawFee is the miner fee offered with BTC withdrawals.
const btcWithdrawFee = "0.0001"

var pairs = normalize.PairTable{
	"btc_jpy":  "btc_jpy",
	"xem_jpy":  "xem_jpy",
	"mona_jpy": "mona_jpy",
	"eth_jpy":  "eth_jpy",
}

var publicDescriptor = &normalize.Descriptor{
	Exchange: "zaif",
	Pairs:    pairs,
	Ticker: normalize.TickerSpec{
		Ask:    normalize.Required("ask"),
		Bid:    normalize.Required("bid"),
		Last:   normalize.Required("last"),
		High:   normalize.Optional("high"),
		Low:    normalize.Optional("low"),
		Volume: normalize.Required("volume"),
		VWAP:   normalize.Optional("vwap"),
	},
	Depth: normalize.DepthSpec{
		Asks: normalize.P("asks"),
		Bids: normalize.P("bids"),
	},
	Status: normalize.StatusSpec{
		ErrorMessage: normalize.P("error"),
	},
}

// The trade API answers {"success": 1, "return": {...}} or {"success": 0, "error": "..."}.
var privateDescriptor = &normalize.Descriptor{
	Exchange: "zaif",
	Pairs:    pairs,
	Status: normalize.StatusSpec{
		Success:      normalize.P("success"),
		ErrorMessage: normalize.P("error"),
	},
}

// Protocol implements the core.Protocol interface for Zaif.
type Protocol struct {
	publicURL  string
	privateURL string
	clock      core.Clock
	signer     signing.FormBody
}

// NewProtocol creates a Zaif protocol against the given endpoints.
func NewProtocol(publicURL, privateURL string, clock core.Clock) *Protocol {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Protocol{publicURL: publicURL, privateURL: privateURL, clock: clock}
}

// Name returns the protocol identifier "zaif".
func (p *Protocol) Name() string {
	return "zaif"
}

// Pairs returns the supported canonical pairs.
func (p *Protocol) Pairs() []string {
	return pairs.Pairs()
}

// SupportedOperations returns every operation except market orders, which
// the trade API does not offer.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpTicker,
		core.OpDepth,
		core.OpBalance,
		core.OpOpenOrders,
		core.OpBuy,
		core.OpSell,
		core.OpCancel,
		core.OpWithdraw,
	}
}

// RateLimits returns the request budget for Zaif.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{Requests: 10, Period: time.Second}
}

// BuildRequest constructs the Zaif request for op. Private calls all post to
// the trade API and are told apart by the method field.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpTicker, core.OpDepth:
		pair, err := params.String(core.ParamPair)
		if err != nil {
			return nil, err
		}
		code, ok := pairs.Code(pair)
		if !ok {
			return nil, core.NewUnsupportedPair(p.Name(), pair)
		}
		path := "/ticker/"
		if op == core.OpDepth {
			path = "/depth/"
		}
		return core.NewRequest(http.MethodGet, p.publicURL, path+code), nil

	case core.OpBalance:
		return p.tradeRequest(methodGetInfo), nil

	case core.OpOpenOrders:
		return p.tradeRequest(methodActiveOrders), nil

	case core.OpBuy, core.OpSell:
		return p.buildOrderRequest(op, params)

	case core.OpCancel:
		id, err := params.String(core.ParamID)
		if err != nil {
			return nil, err
		}
		return p.tradeRequest(methodCancelOrder).AddForm("order_id", id), nil

	case core.OpWithdraw:
		return p.buildWithdrawRequest(params)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

func (p *Protocol) tradeRequest(method string) *core.Request {
	return core.NewRequest(http.MethodPost, p.privateURL, "").
		AddForm("method", method).
		SetRequireAuth(true)
}

// buildOrderRequest sends the price as given and the amount rounded half up to four places.
func (p *Protocol) buildOrderRequest(op core.Operation, params core.Params) (*core.Request, error) {
	pair, err := params.String(core.ParamPair)
	if err != nil {
		return nil, err
	}
	code, ok := pairs.Code(pair)
	if !ok {
		return nil, core.NewUnsupportedPair(p.Name(), pair)
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

	action := "bid"
	if op == core.OpSell {
		action = "ask"
	}
	return p.tradeRequest(methodTrade).
		AddForm("currency_pair", code).
		AddForm("action", action).
		AddForm("price", core.FormatPlain(rate)).
		AddForm("amount", amountText), nil
}

func (p *Protocol) buildWithdrawRequest(params core.Params) (*core.Request, error) {
	currency, err := params.String(core.ParamCurrency)
	if err != nil {
		return nil, err
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
	req := p.tradeRequest(methodWithdraw).
		AddForm("currency", currency).
		AddForm("address", address).
		AddForm("amount", amountText)
	if currency == "btc" {
		req.AddForm("opt_fee", btcWithdrawFee)
	}
	return req, nil
}

// SignRequest encodes the form with the nonce last and adds the Key and Sign headers.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce string) error {
	return p.signer.Sign(req, creds, nonce)
}

// ParseResponse normalizes a Zaif response. Public bodies carry no success
// flag; trade API bodies do.
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

	case core.OpBuy, core.OpSell:
		return parseOrder(doc, op, params, now)

	case core.OpCancel:
		id, err := doc.String(normalize.P("return", "order_id"))
		if err != nil {
			return nil, err
		}
		return &core.CancelResult{ID: id, Success: true}, nil

	case core.OpWithdraw:
		return parseWithdraw(doc, params, now)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// parseBalance reports deposit as the amount and funds as what is available.
func parseBalance(doc *normalize.Document, now time.Time) (*core.Balance, error) {
	funds, err := doc.Object(normalize.P("return", "funds"))
	if err != nil {
		return nil, err
	}
	balance := &core.Balance{Assets: make(map[string]core.Asset, len(funds)), LocalTimestamp: now.Unix()}
	for currency := range funds {
		available, err := doc.Decimal(normalize.P("return", "funds", currency))
		if err != nil {
			return nil, err
		}
		amount := available
		deposit, err := doc.OptionalDecimal(normalize.P("return", "deposit", currency))
		if err != nil {
			return nil, err
		}
		if deposit.Valid {
			amount = deposit.Decimal
		}
		balance.Assets[currency] = core.Asset{Amount: amount, Available: available}
	}
	return balance, nil
}

// parseOpenOrders flattens the id-keyed order map, ordered by numeric id.
func parseOpenOrders(doc *normalize.Document, now time.Time) ([]core.OrderResult, error) {
	byID, err := doc.Object(normalize.P("return"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)

	orders := make([]core.OrderResult, 0, len(ids))
	for _, id := range ids {
		order := normalize.Wrap(byID[id])
		pair, err := order.String(normalize.P("currency_pair"))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		action, err := order.String(normalize.P("action"))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		rate, err := order.OptionalDecimal(normalize.P("price"))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		amount, err := order.OptionalDecimal(normalize.P("amount"))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		ts, err := order.OptionalInt64(normalize.P("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		orders = append(orders, core.OrderResult{
			Success:        true,
			ID:             id,
			Pair:           pair,
			Rate:           rate,
			Amount:         amount,
			OrderType:      orderType(action),
			Timestamp:      ts,
			LocalTimestamp: now.Unix(),
		})
	}
	return orders, nil
}

func compareIDs(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		return cmp.Compare(a, b)
	}
	return cmp.Compare(x, y)
}

// orderType maps a trade action to the canonical side.
func orderType(action string) string {
	if action == "ask" {
		return "sell"
	}
	return "buy"
}

func parseOrder(doc *normalize.Document, op core.Operation, params core.Params, now time.Time) (*core.OrderResult, error) {
	id, err := doc.String(normalize.P("return", "order_id"))
	if err != nil {
		return nil, err
	}
	pair, _ := params.String(core.ParamPair)
	result := &core.OrderResult{
		Success:        true,
		ID:             id,
		Pair:           pair,
		OrderType:      "buy",
		LocalTimestamp: now.Unix(),
	}
	if op == core.OpSell {
		result.OrderType = "sell"
	}
	if rate, err := params.Decimal(core.ParamRate); err == nil {
		result.Rate = core.SomeDecimal(*rate)
	}
	if amount, err := params.Decimal(core.ParamAmount); err == nil {
		result.Amount = core.SomeDecimal(*amount)
	}
	return result, nil
}

// parseWithdraw echoes the request; the venue reports only the id, txid and fee.
func parseWithdraw(doc *normalize.Document, params core.Params, now time.Time) (*core.WithdrawResult, error) {
	id, err := doc.String(normalize.P("return", "id"))
	if err != nil {
		return nil, err
	}
	fee, err := doc.OptionalDecimal(normalize.P("return", "fee"))
	if err != nil {
		return nil, err
	}
	result := &core.WithdrawResult{
		Success:        true,
		ID:             id,
		Fee:            fee,
		LocalTimestamp: now.Unix(),
	}
	if txid, ok := doc.Lookup(normalize.P("return", "txid")); ok {
		result.TxID, _ = normalize.ToString(txid)
	}
	result.Currency, _ = params.String(core.ParamCurrency)
	result.Address, _ = params.String(core.ParamAddress)
	if amount, err := params.Decimal(core.ParamAmount); err == nil {
		result.Amount = core.SomeDecimal(*amount)
	}
	return result, nil
}
