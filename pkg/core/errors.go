package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize failures so callers can tell "could not reach
// the exchange" apart from "the exchange declined the request".
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnectionFailed indicates a transport failure, a timeout, or a
	// non-success HTTP status without a parseable body.
	ErrorTypeConnectionFailed
	// ErrorTypeMalformedResponse indicates a success status with an absent,
	// unparseable or structurally unexpected body.
	ErrorTypeMalformedResponse
	// ErrorTypeExchangeRejected indicates a well-formed business rejection.
	ErrorTypeExchangeRejected
	// ErrorTypeAuthMissing indicates an authenticated call without credentials.
	ErrorTypeAuthMissing
	// ErrorTypeUnsupportedPair indicates a pair missing from the adapter's pair table.
	ErrorTypeUnsupportedPair
	// ErrorTypeUnsupportedOperation indicates an operation the exchange does not offer.
	ErrorTypeUnsupportedOperation
	// ErrorTypeInvalidArgument indicates a caller supplied value that cannot be sent.
	ErrorTypeInvalidArgument
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"CONNECTION_FAILED",
		"MALFORMED_RESPONSE",
		"EXCHANGE_REJECTED",
		"AUTH_MISSING",
		"UNSUPPORTED_PAIR",
		"UNSUPPORTED_OPERATION",
		"INVALID_ARGUMENT",
	}[t]
}

// ExchangeError is the single error type returned by adapters.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code, zero when no response was received.
	StatusCode int `json:"status_code"`
	// Code is the exchange's own error code for rejections, or an ErrorCode otherwise.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Exchange identifies which adapter produced this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, msg)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// WithCode sets a standardized error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithCause sets the underlying cause and returns the error for chaining.
func (e *ExchangeError) WithCause(err error) *ExchangeError {
	e.Err = err
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewRejection creates an ExchangeRejected error carrying the exchange's code verbatim.
func NewRejection(exchange string, statusCode int, code, message string) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeExchangeRejected, statusCode, message)
	e.Code = code
	return e
}

// NewConnectionFailed wraps a transport failure.
func NewConnectionFailed(exchange string, statusCode int, err error) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeConnectionFailed, statusCode,
		fmt.Sprintf("failed to connect to %s", exchange)).WithCause(err)
}

// NewMalformedResponse wraps a decoding or shape failure.
func NewMalformedResponse(exchange string, statusCode int, err error) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeMalformedResponse, statusCode,
		"malformed response").WithCause(err)
}

// NewAuthMissing reports an authenticated operation invoked without credentials.
func NewAuthMissing(exchange string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeAuthMissing, 0,
		fmt.Sprintf("%s api key or secret is not set", exchange)).WithCode(ErrCodeNoCredentials)
}

// NewUnsupportedPair reports a pair missing from the adapter's pair table.
func NewUnsupportedPair(exchange, pair string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeUnsupportedPair, 0,
		fmt.Sprintf("pair %q is not supported", pair)).WithCode(ErrCodeInvalidSymbol)
}

// NewUnsupportedOperation reports an operation the exchange does not offer.
func NewUnsupportedOperation(exchange string, op Operation) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeUnsupportedOperation, 0,
		fmt.Sprintf("operation %s is not supported", op)).WithCode(ErrCodeUnsupported)
}

// NewInvalidArgument reports a caller value that cannot be encoded for the exchange.
func NewInvalidArgument(exchange, message string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeInvalidArgument, 0, message).WithCode(ErrCodeInvalidArgument)
}

// AsExchangeError extracts an *ExchangeError from err's chain.
func AsExchangeError(err error) (*ExchangeError, bool) {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr, true
	}
	return nil, false
}

// IsErrorType reports whether err carries an ExchangeError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	if e, ok := AsExchangeError(err); ok {
		return e.Type == t
	}
	return false
}

// IsConnectionFailed returns true for transport failures. These may be retried by the caller.
func IsConnectionFailed(err error) bool {
	return IsErrorType(err, ErrorTypeConnectionFailed)
}

// IsMalformedResponse returns true when the exchange answered with an unusable body.
func IsMalformedResponse(err error) bool {
	return IsErrorType(err, ErrorTypeMalformedResponse)
}

// IsExchangeRejected returns true for business-level rejections.
func IsExchangeRejected(err error) bool {
	return IsErrorType(err, ErrorTypeExchangeRejected)
}

// IsAuthMissing returns true when credentials were required but not configured.
func IsAuthMissing(err error) bool {
	return IsErrorType(err, ErrorTypeAuthMissing)
}

// IsUnsupportedPair returns true when the requested pair is unknown to the adapter.
func IsUnsupportedPair(err error) bool {
	return IsErrorType(err, ErrorTypeUnsupportedPair)
}

// IsUnsupportedOperation returns true when the adapter does not offer the operation.
func IsUnsupportedOperation(err error) bool {
	return IsErrorType(err, ErrorTypeUnsupportedOperation)
}
