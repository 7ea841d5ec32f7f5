// Package bitbank implements the Exchange interface for the bitbank.cc exchange.
// Public data comes from public.bitbank.cc; private endpoints are signed with
// ACCESS-* headers over the nonce and the versioned request path.
//
// Bitbank API Documentation: https://github.com/bitbankinc/bitbank-api-docs
package bitbank
