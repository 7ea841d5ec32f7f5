package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlink/pkg/core"
	"marketlink/pkg/exchange"
)

func newTestKraken(t *testing.T, handler http.HandlerFunc) (*Kraken, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	config := core.DefaultConfig("kraken").WithURLs(server.URL, "")
	ex, err := New(config, exchange.WithClock(core.FixedClock(time.Unix(1700000000, 0))))
	require.NoError(t, err)
	t.Cleanup(func() { ex.Close() })
	return ex, &hits
}

func TestKraken_Ticker(t *testing.T) {
	ex, _ := newTestKraken(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Ticker", r.URL.Path)
		assert.Equal(t, "XXBTZJPY", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"error":[],"result":{"XXBTZJPY":{
			"a":["5500000.00000","1","1.000"],
			"b":["5499000.10000","2","2.000"],
			"c":["1234567.12345678","0.01000000"],
			"v":["10.5","123.45678901"],
			"p":["5480000.1","5470000.25"],
			"t":[100,2000],
			"l":["5400000.0","5300000.0"],
			"h":["5600000.0","5700000.0"],
			"o":"5450000.0"}}}`))
	})

	ticker, err := ex.Ticker(context.Background(), "btc_jpy")
	require.NoError(t, err)

	assert.Equal(t, "btc_jpy", ticker.Pair)
	assert.Equal(t, "5500000.00000", ticker.Ask.String())
	assert.Equal(t, "5499000.10000", ticker.Bid.String())
	assert.Equal(t, "1234567.12345678", ticker.Last.String())
	assert.Equal(t, "5700000.0", ticker.High.String())
	assert.Equal(t, "5300000.0", ticker.Low.String())
	assert.Equal(t, "123.45678901", ticker.Volume.String())
	assert.Equal(t, "5470000.25", ticker.VWAP.String())
	assert.Nil(t, ticker.Timestamp)
	assert.Equal(t, int64(1700000000), ticker.LocalTimestamp)
}

func TestKraken_Depth(t *testing.T) {
	ex, _ := newTestKraken(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Depth", r.URL.Path)
		assert.Equal(t, "XETHZJPY", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"error":[],"result":{"XETHZJPY":{
			"asks":[["300000.0","1.5",1700000000],["299000.0","2.0",1700000001]],
			"bids":[["298000.0","0.25",1700000002]]}}}`))
	})

	depth, err := ex.Depth(context.Background(), "eth_jpy")
	require.NoError(t, err)

	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "300000.0", depth.Asks[0].Price.String())
	assert.Equal(t, "299000.0", depth.Asks[1].Price.String())
	require.Len(t, depth.Bids, 1)
	assert.Equal(t, "0.25", depth.Bids[0].Size.String())
}

func TestKraken_ErrorList(t *testing.T) {
	ex, _ := newTestKraken(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EQuery:Unknown asset pair"]}`))
	})

	_, err := ex.Ticker(context.Background(), "btc_jpy")
	require.Error(t, err)
	assert.True(t, core.IsExchangeRejected(err))

	exErr, ok := core.AsExchangeError(err)
	require.True(t, ok)
	assert.Equal(t, "EQuery:Unknown asset pair", exErr.Code)
}

func TestKraken_PublicOnly(t *testing.T) {
	ex, hits := newTestKraken(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.True(t, ex.Supports(core.OpTicker))
	assert.False(t, ex.Supports(core.OpBalance))

	_, err := ex.Balance(context.Background())
	assert.True(t, core.IsUnsupportedOperation(err))

	_, err = ex.Buy(context.Background(), "btc_jpy", core.MustDecimal("1"), core.MustDecimal("1"))
	assert.True(t, core.IsUnsupportedOperation(err))

	_, err = ex.CancelAll(context.Background())
	assert.True(t, core.IsUnsupportedOperation(err))

	_, err = ex.Ticker(context.Background(), "xrp_jpy")
	assert.True(t, core.IsUnsupportedPair(err))

	assert.Zero(t, hits.Load())
}

func TestProtocol_BuildRequest(t *testing.T) {
	p := NewProtocol(PublicURL, nil)

	req, err := p.BuildRequest(core.OpTicker, core.Params{core.ParamPair: "btc_jpy"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.kraken.com/0/public/Ticker?pair=XXBTZJPY", req.FullURL())
	assert.False(t, req.RequireAuth)

	req, err = p.BuildRequest(core.OpDepth, core.Params{core.ParamPair: "eth_jpy"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.kraken.com/0/public/Depth?pair=XETHZJPY", req.FullURL())

	assert.Error(t, p.SignRequest(req, core.Credentials{APIKey: "k", APISecret: "s"}, "1"))
}
