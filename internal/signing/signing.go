// Package signing builds and signs authenticated request material.
//
// Three schemes are in use across the supported venues:
//
//   - HeaderPath: nonce + path prefix + path + "?" + query, HMAC-SHA256, ACCESS-* headers.
//   - FormBody: the form body itself with the nonce as its last field, HMAC-SHA512, Key/Sign headers.
//   - URLBody: nonce + full URL for GET, nonce + URL + JSON body otherwise, HMAC-SHA256, ACCESS-* headers.
//
// Signatures are byte-exact: field order and number rendering must not change.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"net/http"
	"strings"

	"marketlink/pkg/core"
)

const (
	HeaderAccessKey       = "ACCESS-KEY"
	HeaderAccessNonce     = "ACCESS-NONCE"
	HeaderAccessSignature = "ACCESS-SIGNATURE"
	HeaderKey             = "Key"
	HeaderSign            = "Sign"

	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json"
)

var errNoSecret = errors.New("api secret is required for signing")

// Signer adds authentication material to a request.
type Signer interface {
	Sign(req *core.Request, creds core.Credentials, nonce string) error
}

// Sign returns the hex HMAC of message keyed by secret.
func Sign(h func() hash.Hash, secret, message string) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACSHA256Hex returns the hex HMAC-SHA256 of message.
func HMACSHA256Hex(secret, message string) string {
	return Sign(sha256.New, secret, message)
}

// HMACSHA512Hex returns the hex HMAC-SHA512 of message.
func HMACSHA512Hex(secret, message string) string {
	return Sign(sha512.New, secret, message)
}

// HeaderPath signs nonce, path, and query, carrying everything in headers.
// Prefix is the API version segment the venue includes in the signed path
// but not in the request's relative path.
type HeaderPath struct {
	Prefix string
}

// Message returns the string HeaderPath signs.
func (s HeaderPath) Message(nonce, path, query string) string {
	var sb strings.Builder
	sb.WriteString(nonce)
	sb.WriteString(s.Prefix)
	sb.WriteString(path)
	if query != "" {
		sb.WriteByte('?')
		sb.WriteString(query)
	}
	return sb.String()
}

func (s HeaderPath) Sign(req *core.Request, creds core.Credentials, nonce string) error {
	if creds.APISecret == "" {
		return errNoSecret
	}
	msg := s.Message(nonce, req.Path, req.QueryString())
	req.SetHeader(HeaderAccessKey, creds.APIKey).
		SetHeader(HeaderAccessNonce, nonce).
		SetHeader(HeaderAccessSignature, HMACSHA256Hex(creds.APISecret, msg))
	return nil
}

// FormBody encodes req.Form plus a trailing nonce field as the body and signs it.
type FormBody struct{}

// Body returns the encoded form with the nonce appended.
func (FormBody) Body(form []core.Param, nonce string) string {
	fields := make([]core.Param, 0, len(form)+1)
	fields = append(fields, form...)
	fields = append(fields, core.Param{Key: "nonce", Value: nonce})
	return core.EncodeParams(fields)
}

func (s FormBody) Sign(req *core.Request, creds core.Credentials, nonce string) error {
	if creds.APISecret == "" {
		return errNoSecret
	}
	body := s.Body(req.Form, nonce)
	req.SetBody(ContentTypeForm, []byte(body))
	req.SetHeader(HeaderKey, creds.APIKey).
		SetHeader(HeaderSign, HMACSHA512Hex(creds.APISecret, body))
	return nil
}

// URLBody signs the full URL for reads and URL plus JSON body for writes.
type URLBody struct{}

// Message returns the string URLBody signs for req.
func (URLBody) Message(req *core.Request, nonce string) string {
	if req.Method == http.MethodGet {
		return nonce + req.FullURL()
	}
	return nonce + req.URL() + string(req.Body)
}

func (s URLBody) Sign(req *core.Request, creds core.Credentials, nonce string) error {
	if creds.APISecret == "" {
		return errNoSecret
	}
	req.SetHeader(HeaderAccessKey, creds.APIKey).
		SetHeader(HeaderAccessNonce, nonce).
		SetHeader(HeaderAccessSignature, HMACSHA256Hex(creds.APISecret, s.Message(req, nonce)))
	return nil
}
