// Package quoine implements the Exchange interface for Quoine (Liquid).
// Tickers are looked up by product code and order books by product id.
// Orders are form encoded and signed with HMAC-SHA512 over the body.
//
// Quoine API Documentation: https://developers.quoine.com/
package quoine
