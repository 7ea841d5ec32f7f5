package core

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Params carries operation arguments from an adapter to its protocol.
type Params map[string]any

// Parameter keys shared by adapters and protocols.
const (
	ParamPair     = "pair"
	ParamRate     = "rate"
	ParamAmount   = "amount"
	ParamID       = "id"
	ParamCurrency = "currency"
	ParamAddress  = "address"
)

// String returns the required string parameter key.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %s must be a non-empty string", key)
	}
	return s, nil
}

// Decimal returns the required decimal parameter key.
func (p Params) Decimal(key string) (*apd.Decimal, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing required parameter: %s", key)
	}
	switch d := v.(type) {
	case apd.Decimal:
		return &d, nil
	case *apd.Decimal:
		if d == nil {
			return nil, fmt.Errorf("parameter %s is nil", key)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("parameter %s must be a decimal, got %T", key, v)
	}
}

// Param is one key/value pair of an ordered query string or form body.
type Param struct {
	Key   string
	Value string
}

// EncodeParams renders params as application/x-www-form-urlencoded text,
// keeping the given order.
func EncodeParams(params []Param) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// Request is a venue request before transport. Query and Form keep insertion
// order so that signatures computed over them are reproducible.
type Request struct {
	Method      string            `json:"method"`
	BaseURL     string            `json:"base_url"`
	Path        string            `json:"path"`
	Query       []Param           `json:"query,omitempty"`
	Form        []Param           `json:"form,omitempty"`
	Body        []byte            `json:"-"`
	ContentType string            `json:"content_type,omitempty"`
	Headers     map[string]string `json:"-"`
	RequireAuth bool              `json:"require_auth"`
}

func NewRequest(method, baseURL, path string) *Request {
	return &Request{
		Method:  method,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Path:    path,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetQuery(key, value string) *Request {
	r.Query = append(r.Query, Param{Key: key, Value: value})
	return r
}

// AddForm appends a form field. The body is encoded at signing time.
func (r *Request) AddForm(key, value string) *Request {
	r.Form = append(r.Form, Param{Key: key, Value: value})
	return r
}

func (r *Request) SetBody(contentType string, body []byte) *Request {
	r.ContentType = contentType
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// QueryString returns the encoded query without the leading '?'.
func (r *Request) QueryString() string {
	return EncodeParams(r.Query)
}

// URL returns the absolute URL without the query string.
func (r *Request) URL() string {
	return r.BaseURL + r.Path
}

// FullURL returns the absolute URL including the query string, if any.
func (r *Request) FullURL() string {
	if q := r.QueryString(); q != "" {
		return r.URL() + "?" + q
	}
	return r.URL()
}

// Response is the raw outcome of a transport round trip.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
