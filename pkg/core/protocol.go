package core

import "time"

// RateLimitConfig defines rate limiting parameters for an exchange protocol.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per Period.
	Requests int `json:"requests"`
	// Period is the window the Requests budget applies to.
	Period time.Duration `json:"period"`
}

// Protocol defines the interface for exchange-specific protocol implementations.
// Each venue implements it to describe its endpoints, pair table, signing
// scheme, and response shapes; the generic adapter drives it.
type Protocol interface {
	// Name returns the exchange identifier (e.g., "bitbank", "zaif").
	Name() string

	// Pairs returns the canonical pairs this venue supports.
	Pairs() []string

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation

	// RateLimits returns the venue's request budget.
	RateLimits() RateLimitConfig

	// BuildRequest constructs the request for op. It returns an UnsupportedPair
	// error for pairs outside the venue's pair table.
	BuildRequest(op Operation, params Params) (*Request, error)

	// SignRequest adds authentication material for the given formatted nonce.
	// Schemes that carry the nonce in the body encode the body here.
	SignRequest(req *Request, creds Credentials, nonce string) error

	// ParseResponse normalizes the response for op to a canonical type.
	// params are the arguments BuildRequest received.
	ParseResponse(op Operation, params Params, resp *Response) (any, error)
}
