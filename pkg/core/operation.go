package core

// Operation represents a type of action that can be performed on an exchange.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpTicker retrieves the current ticker for a pair.
	OpTicker Operation = iota
	// OpDepth retrieves the current order book depth for a pair.
	OpDepth
	// OpBalance retrieves account balances.
	OpBalance
	// OpOpenOrders retrieves the account's open orders.
	OpOpenOrders
	// OpBuy places a limit buy order.
	OpBuy
	// OpSell places a limit sell order.
	OpSell
	// OpMarketBuy places a market buy order.
	OpMarketBuy
	// OpMarketSell places a market sell order.
	OpMarketSell
	// OpCancel cancels a single open order by id.
	OpCancel
	// OpWithdraw sends funds to an external address.
	OpWithdraw
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return [...]string{
		"TICKER",
		"DEPTH",
		"BALANCE",
		"OPEN_ORDERS",
		"BUY",
		"SELL",
		"MARKET_BUY",
		"MARKET_SELL",
		"CANCEL",
		"WITHDRAW",
	}[o]
}

// RequiresAuth reports whether the operation needs credentials.
func (o Operation) RequiresAuth() bool {
	return o != OpTicker && o != OpDepth
}

// IsOrder reports whether the operation places an order.
func (o Operation) IsOrder() bool {
	switch o {
	case OpBuy, OpSell, OpMarketBuy, OpMarketSell:
		return true
	}
	return false
}
