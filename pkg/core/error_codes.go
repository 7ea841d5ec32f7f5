package core

// ErrorCode is a stable, machine-readable identifier for failures raised locally.
// Rejections carry the exchange's own code instead.
type ErrorCode string

const (
	// ErrCodeTimeout indicates the request exceeded its connect or read deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeHTTPStatus indicates a non-success status with no usable body.
	ErrCodeHTTPStatus ErrorCode = "HTTP_STATUS"
	// ErrCodeRateLimitWait indicates the caller's context ended while waiting for the rate limiter.
	ErrCodeRateLimitWait ErrorCode = "RATE_LIMIT_WAIT"
	// ErrCodeCircuitBreaker indicates the breaker is open after repeated connection failures.
	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"
	// ErrCodeInvalidSymbol indicates the trading pair is not recognized.
	ErrCodeInvalidSymbol ErrorCode = "INVALID_SYMBOL"
	// ErrCodeInvalidArgument indicates an unusable caller value.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Client state errors
	ErrCodeClientClosed ErrorCode = "CLIENT_CLOSED"

	// Authentication errors
	ErrCodeNoCredentials ErrorCode = "NO_CREDENTIALS"

	// Unsupported operation
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_METHOD"
)

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	if exErr, ok := AsExchangeError(err); ok {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
