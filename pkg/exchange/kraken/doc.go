// Package kraken implements the market data half of the Exchange interface for
// Kraken. Only public endpoints are used; every account operation reports
// UnsupportedOperation.
//
// Kraken API Documentation: https://docs.kraken.com/rest/
package kraken
