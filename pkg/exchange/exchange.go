package exchange

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"marketlink/pkg/core"
)

// Exchange defines the unified interface for interacting with cryptocurrency exchanges.
// Every venue exposes the same operations; the ones it does not offer fail with
// an UnsupportedOperation error, and pairs outside its table fail with UnsupportedPair.
// Credentialed operations fail with AuthMissing before any network call when the
// key or secret is empty.
type Exchange interface {
	Name() string
	Pairs() []string
	Supports(op core.Operation) bool

	Ticker(ctx context.Context, pair string) (*core.Ticker, error)
	Depth(ctx context.Context, pair string) (*core.Depth, error)

	Balance(ctx context.Context) (*core.Balance, error)
	OpenOrders(ctx context.Context) ([]core.OrderResult, error)

	// Order placement folds venue rejections into the result (Success false);
	// only transport and parse failures are returned as errors.
	Buy(ctx context.Context, pair string, rate, amount apd.Decimal) (*core.OrderResult, error)
	Sell(ctx context.Context, pair string, rate, amount apd.Decimal) (*core.OrderResult, error)
	MarketBuy(ctx context.Context, pair string, amount apd.Decimal) (*core.OrderResult, error)
	MarketSell(ctx context.Context, pair string, amount apd.Decimal) (*core.OrderResult, error)

	Cancel(ctx context.Context, id string) (*core.CancelResult, error)
	CancelAll(ctx context.Context) ([]core.CancelResult, error)

	// Withdraw sends amount of currency to address. Rejections are folded
	// into the result like order placement.
	Withdraw(ctx context.Context, currency, address string, amount apd.Decimal) (*core.WithdrawResult, error)

	Close() error
}

// OrderCanceller is the part of Exchange that CancelAll needs.
type OrderCanceller interface {
	Name() string
	Supports(op core.Operation) bool
	OpenOrders(ctx context.Context) ([]core.OrderResult, error)
	Cancel(ctx context.Context, id string) (*core.CancelResult, error)
}

// CancelAll lists the open orders and cancels each one in turn. It is not
// atomic: every id is attempted regardless of earlier failures, and the result
// holds one outcome per order in listing order. A failure that prevented a
// verdict is kept in CancelResult.Err.
func CancelAll(ctx context.Context, ex OrderCanceller) ([]core.CancelResult, error) {
	if !ex.Supports(core.OpCancel) {
		return nil, core.NewUnsupportedOperation(ex.Name(), core.OpCancel)
	}

	orders, err := ex.OpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	results := make([]core.CancelResult, 0, len(orders))
	for _, order := range orders {
		res, err := ex.Cancel(ctx, order.ID)
		if err != nil {
			results = append(results, core.CancelResult{ID: order.ID, Error: err.Error(), Err: err})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}
