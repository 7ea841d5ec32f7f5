package core

import (
	"slices"

	"github.com/cockroachdb/apd/v3"
)

// NullDecimal is a decimal that may be absent from an exchange payload.
// Valid is false when the exchange did not provide the value; Decimal is then zero
// and must not be interpreted.
type NullDecimal struct {
	Decimal apd.Decimal
	Valid   bool
}

// SomeDecimal returns a valid NullDecimal holding d.
func SomeDecimal(d apd.Decimal) NullDecimal {
	return NullDecimal{Decimal: d, Valid: true}
}

// String returns the plain decimal text, or "n/a" when the value is absent.
func (n NullDecimal) String() string {
	if !n.Valid {
		return "n/a"
	}
	return n.Decimal.Text('f')
}

// MarshalJSON renders absent values as null and present ones as a JSON string.
func (n NullDecimal) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + n.Decimal.Text('f') + `"`), nil
}

// Ticker is a snapshot of the best quotes and 24h statistics for a pair.
type Ticker struct {
	// Pair is the canonical pair name (e.g., "btc_jpy").
	Pair string `json:"pair"`
	// Ask is the lowest price a seller is willing to accept.
	Ask NullDecimal `json:"ask"`
	// Bid is the highest price a buyer is willing to pay.
	Bid NullDecimal `json:"bid"`
	// Last is the price of the most recent trade.
	Last NullDecimal `json:"last"`
	// High is the 24h high, when the exchange reports one.
	High NullDecimal `json:"high"`
	// Low is the 24h low, when the exchange reports one.
	Low NullDecimal `json:"low"`
	// Volume is the 24h traded volume in the base currency.
	Volume NullDecimal `json:"volume"`
	// VWAP is the 24h volume weighted average price, when reported.
	VWAP NullDecimal `json:"vwap"`
	// Timestamp is the exchange-side timestamp, nil when not reported.
	Timestamp *int64 `json:"timestamp,omitempty"`
	// LocalTimestamp is the local unix time (seconds) at which the ticker was parsed.
	LocalTimestamp int64 `json:"ltimestamp"`
}

// DepthLevel is a single price level of an order book.
type DepthLevel struct {
	Price apd.Decimal `json:"price"`
	Size  apd.Decimal `json:"size"`
}

// Depth is an order book snapshot. Levels keep the order the exchange returned.
type Depth struct {
	Pair           string       `json:"pair"`
	Asks           []DepthLevel `json:"asks"`
	Bids           []DepthLevel `json:"bids"`
	LocalTimestamp int64        `json:"ltimestamp"`
}

// Asset is the balance held in one currency.
type Asset struct {
	// Amount is the total holding, including funds reserved by open orders.
	Amount apd.Decimal `json:"amount"`
	// Available is the part of Amount that can be traded or withdrawn.
	Available apd.Decimal `json:"available"`
}

// Balance maps a lower-case currency code to its holding.
type Balance struct {
	Assets         map[string]Asset `json:"assets"`
	LocalTimestamp int64            `json:"ltimestamp"`
}

// Currencies returns the currency codes present in the balance, sorted.
func (b *Balance) Currencies() []string {
	out := make([]string, 0, len(b.Assets))
	for c := range b.Assets {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// OrderResult is the outcome of an order placement, or one entry of the open orders list.
type OrderResult struct {
	// Success reports whether the exchange accepted the request.
	Success bool `json:"success"`
	// ID is the exchange-assigned order identifier.
	ID string `json:"id"`
	// Pair is the canonical pair of the order, when known.
	Pair string `json:"pair,omitempty"`
	// Rate is the limit price. Absent for market orders.
	Rate NullDecimal `json:"rate"`
	// Amount is the order size in the base currency.
	Amount NullDecimal `json:"amount"`
	// OrderType is the exchange order kind, e.g. "buy", "sell" or "buy_limit".
	OrderType string `json:"order_type"`
	// Timestamp is the exchange-side creation time, nil when not reported.
	Timestamp *int64 `json:"timestamp,omitempty"`
	// LocalTimestamp is the local unix time (seconds) of the result.
	LocalTimestamp int64 `json:"ltimestamp"`
	// Error is the exchange's rejection message when Success is false.
	Error string `json:"error,omitempty"`
	// ErrorCode is the exchange's own rejection code, verbatim.
	ErrorCode string `json:"error_code,omitempty"`
}

// WithdrawResult is the outcome of sending funds off the exchange.
type WithdrawResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	// TxID is the on-chain transaction id, when the venue reports one.
	TxID     string      `json:"txid,omitempty"`
	Currency string      `json:"currency"`
	Address  string      `json:"address"`
	Amount   NullDecimal `json:"amount"`
	Fee      NullDecimal `json:"fee"`
	// LocalTimestamp is the local unix time (seconds) of the result.
	LocalTimestamp int64  `json:"ltimestamp"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}

// CancelResult is the outcome of cancelling a single order.
type CancelResult struct {
	ID        string `json:"id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	// Err holds a transport or parse failure that prevented a verdict.
	Err error `json:"-"`
}
