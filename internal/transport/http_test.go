package transport

import (
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlink/pkg/core"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	client := NewClient(core.DefaultConfig("bitbank"), zerolog.Nop(), opts...)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClient_Timeouts(t *testing.T) {
	client := newTestClient(t)
	assert.Equal(t, 20*time.Second, client.Timeout())
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/btc_jpy/ticker", r.URL.Path)
		assert.Equal(t, "pair=btc_jpy&count=2", r.URL.RawQuery)
		assert.Equal(t, "k", r.Header.Get("ACCESS-KEY"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":1}`))
	}))
	defer server.Close()

	req := core.NewRequest(http.MethodGet, server.URL, "/btc_jpy/ticker").
		SetQuery("pair", "btc_jpy").
		SetQuery("count", "2").
		SetHeader("ACCESS-KEY", "k")

	resp, err := newTestClient(t).Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"success":1}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestClient_PostSendsBodyVerbatim(t *testing.T) {
	const body = "method=get_info&nonce=1700000000.000001"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		got, _ := io.ReadAll(r.Body)
		assert.Equal(t, body, string(got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	req := core.NewRequest(http.MethodPost, server.URL, "/tapi").
		SetBody("application/x-www-form-urlencoded", []byte(body))

	resp, err := newTestClient(t).Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClient_Delete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/exchange/orders/123", r.URL.Path)
		w.Write([]byte(`{"success":true,"id":123}`))
	}))
	defer server.Close()

	req := core.NewRequest(http.MethodDelete, server.URL, "/api/exchange/orders/123")
	resp, err := newTestClient(t).Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"invalid"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t).Do(context.Background(), core.NewRequest(http.MethodGet, server.URL, "/x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `{"success":false,"error":"invalid"}`, string(resp.Body))
}

func TestClient_ReadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	config := core.DefaultConfig("zaif").WithTimeouts(50*time.Millisecond, 50*time.Millisecond)
	client := NewClient(config, zerolog.Nop())
	defer client.Close()

	_, err := client.Do(context.Background(), core.NewRequest(http.MethodGet, server.URL, "/slow"))
	require.Error(t, err)
	assert.True(t, core.IsConnectionFailed(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeTimeout))
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(t).Do(context.Background(), core.NewRequest(http.MethodGet, url, "/x"))
	require.Error(t, err)
	assert.True(t, core.IsConnectionFailed(err))
}

func TestClient_Closed(t *testing.T) {
	client := NewClient(core.DefaultConfig("kraken"), zerolog.Nop())
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Do(context.Background(), core.NewRequest(http.MethodGet, "http://127.0.0.1:1", "/x"))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeClientClosed))
}

func TestClient_TLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	t.Run("untrusted_certificate_rejected", func(t *testing.T) {
		_, err := newTestClient(t).Do(context.Background(), core.NewRequest(http.MethodGet, server.URL, "/"))
		require.Error(t, err)
		assert.True(t, core.IsConnectionFailed(err))
	})

	t.Run("trusted_certificate_accepted", func(t *testing.T) {
		pool := x509.NewCertPool()
		pool.AddCert(server.Certificate())

		resp, err := newTestClient(t, WithRootCAs(pool)).Do(context.Background(), core.NewRequest(http.MethodGet, server.URL, "/"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestVerifyChainDepth(t *testing.T) {
	chain := func(n int) []*x509.Certificate { return make([]*x509.Certificate, n) }

	tests := []struct {
		name    string
		chains  [][]*x509.Certificate
		wantErr bool
	}{
		{"leaf_only", [][]*x509.Certificate{chain(1)}, false},
		{"at_limit", [][]*x509.Certificate{chain(6)}, false},
		{"too_deep", [][]*x509.Certificate{chain(7)}, true},
		{"one_short_chain_suffices", [][]*x509.Certificate{chain(9), chain(3)}, false},
		{"no_chain", nil, true},
	}

	verify := VerifyChainDepth(5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verify(nil, tt.chains)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
