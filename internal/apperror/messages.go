package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	CodePoolNotFound:     "No liquidity venue found for token",
	CodeDecodeFailed:     "Venue state does not match the expected layout",
	CodeZeroLiquidity:    "Venue has zero liquidity on one side",
	CodeRPCTimeout:       "RPC request timed out",
	CodeAllSourcesFailed: "Every price source failed",

	CodeRPCCallFailed:        "RPC call failed",
	CodeRPCConnectionFailed:  "Failed to connect to RPC endpoint",
	CodeUnsupportedChain:     "Chain is not supported",
	CodeAggregatorFailed:     "Aggregator request failed",
	CodeAggregatorNoPrice:    "Aggregator returned no usable price",
	CodeStoreFailed:          "Pool info store operation failed",
	CodeReferencePriceFailed: "Reference asset price unavailable",
	CodeCircuitOpen:          "Circuit breaker is open",
}
