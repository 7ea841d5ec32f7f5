package zaif

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
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

var testNow = time.UnixMicro(1700000000000001)

func newTestZaif(t *testing.T, handler http.HandlerFunc, withCreds bool) (*Zaif, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	config := core.DefaultConfig("zaif").WithURLs(server.URL+"/api/1", server.URL+"/tapi")
	if withCreds {
		config.WithCredentials("key", "secret")
	}
	ex, err := New(config, exchange.WithClock(core.FixedClock(testNow)))
	require.NoError(t, err)
	t.Cleanup(func() { ex.Close() })
	return ex, &hits
}

func readForm(t *testing.T, r *http.Request) (url.Values, string) {
	body, _ := io.ReadAll(r.Body)
	form, err := url.ParseQuery(string(body))
	assert.NoError(t, err)
	return form, string(body)
}

func TestZaif_Ticker(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/ticker/mona_jpy", r.URL.Path)
		w.Write([]byte(`{"last":1234567.12345678,"high":130.0,"low":120.5,"vwap":125.1234,"volume":45678.9,"bid":124.9,"ask":125.0}`))
	}, false)

	ticker, err := ex.Ticker(context.Background(), "mona_jpy")
	require.NoError(t, err)
	assert.Equal(t, "1234567.12345678", ticker.Last.String())
	assert.Equal(t, "125.0", ticker.Ask.String())
	assert.Equal(t, "124.9", ticker.Bid.String())
	assert.Equal(t, "125.1234", ticker.VWAP.String())
	assert.Equal(t, "45678.9", ticker.Volume.String())
	assert.Equal(t, int64(1700000000), ticker.LocalTimestamp)
}

func TestZaif_Depth(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/depth/btc_jpy", r.URL.Path)
		w.Write([]byte(`{"asks":[[100,1],[101,2]],"bids":[[99.5,0.001]]}`))
	}, false)

	depth, err := ex.Depth(context.Background(), "btc_jpy")
	require.NoError(t, err)
	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "100", depth.Asks[0].Price.String())
	assert.Equal(t, "101", depth.Asks[1].Price.String())
	assert.Equal(t, "0.001", depth.Bids[0].Size.String())
}

func TestZaif_Balance(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tapi", r.URL.Path)
		form, body := readForm(t, r)
		assert.Equal(t, "get_info", form.Get("method"))
		assert.Equal(t, "1700000000.000001", form.Get("nonce"))
		assert.Equal(t, "key", r.Header.Get("Key"))
		assert.Equal(t, signing.HMACSHA512Hex("secret", body), r.Header.Get("Sign"))
		w.Write([]byte(`{"success":1,"return":{
			"funds":{"jpy":15320,"btc":1.389,"mona":0},
			"deposit":{"jpy":20000,"btc":1.5,"mona":0},
			"rights":{"info":1,"trade":1},"open_orders":2,"server_time":1700000000}}`))
	}, true)

	balance, err := ex.Balance(context.Background())
	require.NoError(t, err)
	require.Len(t, balance.Assets, 3)
	jpy, btc := balance.Assets["jpy"], balance.Assets["btc"]
	assert.Equal(t, "20000", jpy.Amount.String())
	assert.Equal(t, "15320", jpy.Available.String())
	assert.Equal(t, "1.5", btc.Amount.String())
	assert.Equal(t, "1.389", btc.Available.String())
}

func TestZaif_NoncesIncrease(t *testing.T) {
	var (
		mu     sync.Mutex
		nonces []string
	)
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		form, _ := readForm(t, r)
		mu.Lock()
		nonces = append(nonces, form.Get("nonce"))
		mu.Unlock()
		w.Write([]byte(`{"success":1,"return":{"funds":{},"deposit":{}}}`))
	}, true)

	for i := 0; i < 3; i++ {
		_, err := ex.Balance(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"1700000000.000001", "1700000000.000002", "1700000000.000003"}, nonces)
	assert.Equal(t, int64(1700000000000003), ex.LastNonce())
}

func TestZaif_OpenOrders(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		form, _ := readForm(t, r)
		assert.Equal(t, "active_orders", form.Get("method"))
		w.Write([]byte(`{"success":1,"return":{
			"1840":{"currency_pair":"btc_jpy","action":"ask","amount":0.1,"price":5000000,"timestamp":"1402021125"},
			"184":{"currency_pair":"mona_jpy","action":"bid","amount":100,"price":120.5,"timestamp":"1402021124"}}}`))
	}, true)

	orders, err := ex.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "184", orders[0].ID)
	assert.Equal(t, "mona_jpy", orders[0].Pair)
	assert.Equal(t, "buy", orders[0].OrderType)
	assert.Equal(t, "120.5", orders[0].Rate.String())

	assert.Equal(t, "1840", orders[1].ID)
	assert.Equal(t, "sell", orders[1].OrderType)
	require.NotNil(t, orders[1].Timestamp)
	assert.Equal(t, int64(1402021125), *orders[1].Timestamp)
}

func TestZaif_Buy(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		_, body := readForm(t, r)
		assert.Equal(t, "method=trade&currency_pair=btc_jpy&action=bid&price=30000&amount=0.0100&nonce=1700000000.000001", body)
		w.Write([]byte(`{"success":1,"return":{"received":0,"remains":0.01,"order_id":987,"funds":{"jpy":1000}}}`))
	}, true)

	res, err := ex.Buy(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("0.01"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "987", res.ID)
	assert.Equal(t, "buy", res.OrderType)
	assert.Equal(t, "30000", res.Rate.String())
	assert.Equal(t, "0.01", res.Amount.String())
}

func TestZaif_SellRejected(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		form, _ := readForm(t, r)
		assert.Equal(t, "ask", form.Get("action"))
		w.Write([]byte(`{"success":0,"error":"insufficient funds"}`))
	}, true)

	res, err := ex.Sell(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("100"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient funds", res.Error)
	assert.Equal(t, "sell", res.OrderType)
}

func TestZaif_CancelAll(t *testing.T) {
	var (
		mu        sync.Mutex
		cancelled []string
	)
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		form, _ := readForm(t, r)
		switch form.Get("method") {
		case "active_orders":
			w.Write([]byte(`{"success":1,"return":{
				"1":{"currency_pair":"btc_jpy","action":"bid","amount":1,"price":100},
				"2":{"currency_pair":"btc_jpy","action":"bid","amount":1,"price":100},
				"3":{"currency_pair":"btc_jpy","action":"ask","amount":1,"price":200}}}`))
		case "cancel_order":
			id := form.Get("order_id")
			mu.Lock()
			cancelled = append(cancelled, id)
			mu.Unlock()
			if id == "2" {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`maintenance`))
				return
			}
			w.Write([]byte(`{"success":1,"return":{"order_id":` + id + `,"funds":{}}}`))
		}
	}, true)

	results, err := ex.CancelAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, cancelled)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "2", results[1].ID)
	assert.True(t, core.IsConnectionFailed(results[1].Err))
	assert.True(t, results[2].Success)
	assert.Equal(t, "3", results[2].ID)
}

func TestZaif_Withdraw(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tapi", r.URL.Path)
		_, body := readForm(t, r)
		assert.Equal(t, "method=withdraw&currency=btc&address=1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v&amount=0.5000&opt_fee=0.0001&nonce=1700000000.000001", body)
		w.Write([]byte(`{"success":1,"return":{"id":23634,"txid":"5c4d2b9f","fee":0.0001,"funds":{"btc":1.0}}}`))
	}, true)

	res, err := ex.Withdraw(context.Background(), "BTC", "1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v", core.MustDecimal("0.5"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "23634", res.ID)
	assert.Equal(t, "5c4d2b9f", res.TxID)
	assert.Equal(t, "btc", res.Currency)
	assert.Equal(t, "1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v", res.Address)
	assert.Equal(t, "0.5", res.Amount.String())
	assert.Equal(t, "0.0001", res.Fee.String())
	assert.Equal(t, testNow.Unix(), res.LocalTimestamp)
}

func TestZaif_WithdrawRejected(t *testing.T) {
	ex, _ := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {
		form, _ := readForm(t, r)
		assert.Equal(t, "mona", form.Get("currency"))
		assert.False(t, form.Has("opt_fee"))
		w.Write([]byte(`{"success":0,"error":"invalid address"}`))
	}, true)

	res, err := ex.Withdraw(context.Background(), "mona", "MAddr", core.MustDecimal("10"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid address", res.Error)
	assert.Equal(t, "mona", res.Currency)
	assert.Equal(t, "10", res.Amount.String())
}

func TestZaif_AuthMissing(t *testing.T) {
	ex, hits := newTestZaif(t, func(w http.ResponseWriter, r *http.Request) {}, false)

	_, err := ex.Balance(context.Background())
	assert.True(t, core.IsAuthMissing(err))
	_, err = ex.Buy(context.Background(), "btc_jpy", core.MustDecimal("30000"), core.MustDecimal("0.01"))
	assert.True(t, core.IsAuthMissing(err))
	_, err = ex.CancelAll(context.Background())
	assert.True(t, core.IsAuthMissing(err))
	_, err = ex.Withdraw(context.Background(), "btc", "1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v", core.MustDecimal("0.5"))
	assert.True(t, core.IsAuthMissing(err))

	_, err = ex.MarketBuy(context.Background(), "btc_jpy", core.MustDecimal("1000"))
	assert.True(t, core.IsUnsupportedOperation(err))
	assert.Zero(t, hits.Load())
}

func TestProtocol_SignRequest(t *testing.T) {
	p := NewProtocol(PublicURL, PrivateURL, nil)

	req, err := p.BuildRequest(core.OpBuy, core.Params{
		core.ParamPair:   "btc_jpy",
		core.ParamRate:   core.MustDecimal("30000"),
		core.ParamAmount: core.MustDecimal("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.zaif.jp/tapi", req.URL())

	require.NoError(t, p.SignRequest(req, core.Credentials{APIKey: "k", APISecret: "s"}, "1000.000000"))
	assert.Equal(t, signing.ContentTypeForm, req.ContentType)
	assert.Equal(t,
		"bee33a0344168cc0ea3eedb9677a73c8f382cd3df6574e4b30b04aec6e99c299a94e67b79fdb504f7b1581d626c6e4c77d8ed4380e4eab715efdf1fa9c8d79b9",
		req.Headers["Sign"])
}

func TestProtocol_BuildRequest_UnsupportedPair(t *testing.T) {
	p := NewProtocol(PublicURL, PrivateURL, nil)

	_, err := p.BuildRequest(core.OpTicker, core.Params{core.ParamPair: "xrp_jpy"})
	assert.True(t, core.IsUnsupportedPair(err))

	_, err = p.BuildRequest(core.OpSell, core.Params{
		core.ParamPair:   "xrp_jpy",
		core.ParamRate:   core.MustDecimal("1"),
		core.ParamAmount: core.MustDecimal("1"),
	})
	assert.True(t, core.IsUnsupportedPair(err))
}
