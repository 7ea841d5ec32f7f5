// Package coincheck implements the Exchange interface for the Coincheck exchange.
// Only the btc_jpy market is traded. Private requests are signed over the
// nonce and the full URL for reads, or the URL and JSON body for writes.
//
// Coincheck API Documentation: https://coincheck.com/documents/exchange/api
package coincheck
