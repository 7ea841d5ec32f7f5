package coincheck

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlink/internal/signing"
	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

var testNow = time.UnixMilli(1700000000000)

type fixture struct {
	ex   *Coincheck
	url  string
	hits atomic.Int64
}

func newFixture(t *testing.T, handler http.HandlerFunc, withCreds bool) *fixture {
	t.Helper()
	f := &fixture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	f.url = server.URL

	config := core.DefaultConfig("coincheck").WithURLs(server.URL, "")
	if withCreds {
		config.WithCredentials("key", "secret")
	}
	ex, err := New(config, exchange.WithClock(core.FixedClock(testNow)))
	require.NoError(t, err)
	t.Cleanup(func() { ex.Close() })
	f.ex = ex
	return f
}

func TestCoincheck_Ticker(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ticker", r.URL.Path)
		w.Write([]byte(`{"last":1234567.12345678,"bid":4499000.0,"ask":4500000.5,"high":4600000,"low":4400000,"volume":"1234.56789","timestamp":1700000000}`))
	}, false)

	ticker, err := f.ex.Ticker(context.Background(), "btc_jpy")
	require.NoError(t, err)
	assert.Equal(t, "1234567.12345678", ticker.Last.String())
	assert.Equal(t, "4499000.0", ticker.Bid.String())
	assert.Equal(t, "4500000.5", ticker.Ask.String())
	assert.Equal(t, "1234.56789", ticker.Volume.String())
	require.NotNil(t, ticker.Timestamp)
	assert.Equal(t, int64(1700000000), *ticker.Timestamp)
}

func TestCoincheck_Depth(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/order_books", r.URL.Path)
		w.Write([]byte(`{"asks":[["100","1"],["101","2"]],"bids":[["99","0.5"]]}`))
	}, false)

	depth, err := f.ex.Depth(context.Background(), "btc_jpy")
	require.NoError(t, err)
	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "100", depth.Asks[0].Price.String())
	assert.Equal(t, "101", depth.Asks[1].Price.String())
	assert.Equal(t, "2", depth.Asks[1].Size.String())
}

func TestCoincheck_Balance(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts/balance", r.URL.Path)
		w.Write([]byte(`{"success":true,"jpy":"0.8401","btc":"7.75052654","jpy_reserved":"3000.0","btc_reserved":"3.5002","jpy_lend_in_use":"0"}`))
	}, true)

	balance, err := f.ex.Balance(context.Background())
	require.NoError(t, err)

	jpy, btc := balance.Assets["jpy"], balance.Assets["btc"]
	assert.Equal(t, "3000.8401", jpy.Amount.Text('f'))
	assert.Equal(t, "0.8401", jpy.Available.Text('f'))
	assert.Equal(t, "11.25072654", btc.Amount.Text('f'))
	assert.Equal(t, "7.75052654", btc.Available.Text('f'))
}

func TestCoincheck_SignedHeaders(t *testing.T) {
	var url string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		want := signing.HMACSHA256Hex("secret", r.Header.Get("ACCESS-NONCE")+url+r.URL.Path+string(body))
		assert.Equal(t, "1700000000000", r.Header.Get("ACCESS-NONCE"))
		assert.Equal(t, want, r.Header.Get("ACCESS-SIGNATURE"))
		assert.JSONEq(t, `{"rate":30000,"amount":0.01,"order_type":"buy","pair":"btc_jpy"}`, string(body))
		w.Write([]byte(`{"success":true,"id":12345,"rate":"30000.0","amount":"0.01","order_type":"buy","stop_loss_rate":null,"pair":"btc_jpy","created_at":"2023-11-14T22:13:20.000Z"}`))
	}, true)
	url = f.url

	res, err := f.ex.Buy(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("0.01"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "12345", res.ID)
	assert.Equal(t, "30000.0", res.Rate.String())
	assert.Equal(t, "0.01", res.Amount.String())
	assert.Equal(t, "buy", res.OrderType)
	require.NotNil(t, res.Timestamp)
	assert.Equal(t, int64(1700000000), *res.Timestamp)
	assert.Equal(t, testNow.Unix(), res.LocalTimestamp)
}

func TestCoincheck_MarketBuy(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"market_buy_amount":10000,"order_type":"market_buy","pair":"btc_jpy"}`, string(body))
		w.Write([]byte(`{"success":true,"id":7,"rate":null,"amount":null,"market_buy_amount":"10000.0","order_type":"market_buy","pair":"btc_jpy","created_at":"2023-11-14T22:13:20.000Z"}`))
	}, true)

	res, err := f.ex.MarketBuy(context.Background(), "btc_jpy", core.MustDecimal("10000"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Rate.Valid)
	assert.Equal(t, "10000.0", res.Amount.String())
	assert.Equal(t, "market_buy", res.OrderType)
}

func TestCoincheck_OrderRejected(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Amount is too small"}`))
	}, true)

	res, err := f.ex.Sell(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("0.0001"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Amount is too small", res.Error)
	assert.Equal(t, "400", res.ErrorCode)
}

func TestCoincheck_SendBTC(t *testing.T) {
	var url string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/send_money", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"address":"1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc","amount":1.5}`, string(body))
		want := signing.HMACSHA256Hex("secret", r.Header.Get("ACCESS-NONCE")+url+r.URL.Path+string(body))
		assert.Equal(t, want, r.Header.Get("ACCESS-SIGNATURE"))
		w.Write([]byte(`{"success":true,"id":"276","address":"1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc","amount":"1.5","fee":"0.002"}`))
	}, true)
	url = f.url

	res, err := f.ex.Withdraw(context.Background(), "btc", "1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc", core.MustDecimal("1.5"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "276", res.ID)
	assert.Equal(t, "btc", res.Currency)
	assert.Equal(t, "1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc", res.Address)
	assert.Equal(t, "1.5", res.Amount.String())
	assert.Equal(t, "0.002", res.Fee.String())
}

func TestCoincheck_SendRejected(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Insufficient balance"}`))
	}, true)

	res, err := f.ex.Withdraw(context.Background(), "btc", "1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc", core.MustDecimal("100"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Insufficient balance", res.Error)
	assert.Equal(t, "400", res.ErrorCode)
}

func TestCoincheck_SendOnlyBTC(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {}, true)

	_, err := f.ex.Withdraw(context.Background(), "eth", "0xabc", core.MustDecimal("1"))
	assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidArgument))
	_, err = f.ex.Withdraw(context.Background(), "btc", "", core.MustDecimal("1"))
	assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidArgument))
	_, err = f.ex.Withdraw(context.Background(), "btc", "1v6z", core.MustDecimal("0"))
	assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidArgument))
	assert.Zero(t, f.hits.Load())
}

func TestCoincheck_AuthMissing(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {}, false)

	_, err := f.ex.Balance(context.Background())
	assert.True(t, core.IsAuthMissing(err))
	_, err = f.ex.Buy(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("0.01"))
	assert.True(t, core.IsAuthMissing(err))
	_, err = f.ex.MarketSell(context.Background(), "btc_jpy", core.MustDecimal("0.01"))
	assert.True(t, core.IsAuthMissing(err))
	_, err = f.ex.Withdraw(context.Background(), "btc", "1v6zFvyNPgdRvhUufkRoTtgyiw1xigncc", core.MustDecimal("1"))
	assert.True(t, core.IsAuthMissing(err))

	assert.Zero(t, f.hits.Load())
}

func TestCoincheck_OpenOrders(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/exchange/orders/opens", r.URL.Path)
		w.Write([]byte(`{"success":true,"orders":[
			{"id":202835,"order_type":"buy","rate":26890,"pair":"btc_jpy","pending_amount":"0.5527","pending_market_buy_amount":null,"stop_loss_rate":null,"created_at":"2015-01-10T05:55:38.000Z"},
			{"id":202836,"order_type":"market_buy","rate":null,"pair":"btc_jpy","pending_amount":null,"pending_market_buy_amount":"5000.0","stop_loss_rate":null,"created_at":"2015-01-10T05:55:38.000Z"}]}`))
	}, true)

	orders, err := f.ex.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "202835", orders[0].ID)
	assert.Equal(t, "26890", orders[0].Rate.String())
	assert.Equal(t, "0.5527", orders[0].Amount.String())
	assert.Equal(t, "buy", orders[0].OrderType)
	assert.False(t, orders[1].Rate.Valid)
	assert.False(t, orders[1].Amount.Valid)
}

func TestCoincheck_CancelAll(t *testing.T) {
	var (
		mu       sync.Mutex
		canceled []string
	)
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"success":true,"orders":[
				{"id":1,"order_type":"buy","rate":100,"pending_amount":"1"},
				{"id":2,"order_type":"buy","rate":100,"pending_amount":"1"},
				{"id":3,"order_type":"sell","rate":200,"pending_amount":"1"}]}`))
		case http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Path, "/api/exchange/orders/")
			mu.Lock()
			canceled = append(canceled, id)
			mu.Unlock()
			if id == "2" {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"success":false,"error":"The order doesn't exist."}`))
				return
			}
			w.Write([]byte(`{"success":true,"id":` + id + `}`))
		}
	}, true)

	results, err := f.ex.CancelAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, canceled)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "1", results[0].ID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "2", results[1].ID)
	assert.Equal(t, "The order doesn't exist.", results[1].Error)
	assert.NoError(t, results[1].Err)
	assert.True(t, results[2].Success)
	assert.Equal(t, "3", results[2].ID)
}

func TestCoincheck_UnsupportedPair(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {}, true)

	_, err := f.ex.Ticker(context.Background(), "eth_jpy")
	assert.True(t, core.IsUnsupportedPair(err))
	assert.Zero(t, f.hits.Load())
}
