// Package transport executes venue requests over HTTPS.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"marketlink/pkg/core"
)

const userAgent = "marketlink/1.0"

// Client wraps a resty client with the venue's timeouts, TLS policy, and logging.
// It never retries: a failed call is reported once and retry policy is left to the caller.
type Client struct {
	client   *resty.Client
	logger   zerolog.Logger
	exchange string
	mu       sync.RWMutex
	closed   bool
}

// Option configures a Client.
type Option func(*options)

type options struct {
	rootCAs *x509.CertPool
}

// WithRootCAs replaces the system roots used for peer verification.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.rootCAs = pool
	}
}

// NewClient creates a Client bounded by config's connect and read timeouts.
func NewClient(config *core.Config, logger zerolog.Logger, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := resty.NewWithDialerAndTransportSettings(
		&net.Dialer{},
		&resty.TransportSettings{
			DialerTimeout:         config.ConnectTimeout,
			TLSHandshakeTimeout:   config.ConnectTimeout,
			ResponseHeaderTimeout: config.ReadTimeout,
		},
	)
	client.SetTimeout(config.ConnectTimeout + config.ReadTimeout)
	client.SetRetryCount(0)
	client.SetHeader("User-Agent", userAgent)
	client.SetTLSClientConfig(&tls.Config{
		MinVersion:            tls.VersionTLS12,
		RootCAs:               o.rootCAs,
		VerifyPeerCertificate: VerifyChainDepth(config.TLSMaxChainDepth),
	})

	return &Client{
		client:   client,
		logger:   logger.With().Str("component", "transport").Logger(),
		exchange: config.Exchange,
	}
}

// VerifyChainDepth returns a tls.Config.VerifyPeerCertificate hook that accepts
// the connection only if some verified chain has at most maxDepth issuers above the leaf.
// It runs after the standard verification, so it only narrows what is accepted.
func VerifyChainDepth(maxDepth int) func([][]byte, [][]*x509.Certificate) error {
	return func(_ [][]byte, chains [][]*x509.Certificate) error {
		if len(chains) == 0 {
			return errors.New("tls: no verified certificate chain")
		}
		for _, chain := range chains {
			if len(chain)-1 <= maxDepth {
				return nil
			}
		}
		return fmt.Errorf("tls: certificate chain deeper than %d", maxDepth)
	}
}

// Do executes req and returns the raw status, body, and headers. Any status is
// returned as a Response; only failures to complete the round trip are errors.
func (c *Client) Do(ctx context.Context, req *core.Request) (*core.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.NewExchangeError(c.exchange, core.ErrorTypeConnectionFailed, 0,
			"transport is closed").WithCode(core.ErrCodeClientClosed)
	}

	requestID := uuid.NewString()
	log := c.logger.With().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("url", req.URL()).
		Logger()

	r := c.client.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Body) > 0 {
		r.SetHeader("Content-Type", req.ContentType)
		r.SetBody(req.Body)
	}

	log.Debug().Int("body_size", len(req.Body)).Msg("http request")

	resp, err := r.Execute(req.Method, req.FullURL())
	if err != nil {
		log.Warn().Err(err).Msg("http request failed")
		return nil, c.classify(ctx, err)
	}

	body := resp.Bytes()
	log.Debug().
		Int("status", resp.StatusCode()).
		Int("size", len(body)).
		Dur("duration", resp.Duration()).
		Msg("http response")

	return &core.Response{
		StatusCode: resp.StatusCode(),
		Body:       body,
		Header:     resp.Header(),
	}, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	exErr := core.NewConnectionFailed(c.exchange, 0, err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		exErr.WithCode(core.ErrCodeTimeout)
	}
	return exErr
}

// Close stops the client. Further calls to Do fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Timeout returns the overall per-request bound.
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout()
}
