// Package zaif implements the Exchange interface for the Zaif exchange.
// Public data comes from the v1 REST API; the trade API is a single form-encoded
// endpoint selected by its "method" field and signed with HMAC-SHA512 over the
// body. Nonces are fractional seconds with microsecond digits.
//
// Zaif API Documentation: https://zaif-api-document.readthedocs.io/
package zaif
