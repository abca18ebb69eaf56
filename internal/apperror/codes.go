package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Price resolution taxonomy. The first four are recovered by the resolver
// by advancing to the next stage; only CodeAllSourcesFailed reaches callers.
const (
	CodePoolNotFound     Code = "POOL_NOT_FOUND"
	CodeDecodeFailed     Code = "DECODE_FAILED"
	CodeZeroLiquidity    Code = "ZERO_LIQUIDITY"
	CodeRPCTimeout       Code = "RPC_TIMEOUT"
	CodeAllSourcesFailed Code = "ALL_SOURCES_FAILED"
)

// Infrastructure error codes
const (
	CodeRPCCallFailed        Code = "RPC_CALL_FAILED"
	CodeRPCConnectionFailed  Code = "RPC_CONNECTION_FAILED"
	CodeUnsupportedChain     Code = "UNSUPPORTED_CHAIN"
	CodeAggregatorFailed     Code = "AGGREGATOR_FAILED"
	CodeAggregatorNoPrice    Code = "AGGREGATOR_NO_PRICE"
	CodeStoreFailed          Code = "STORE_FAILED"
	CodeReferencePriceFailed Code = "REFERENCE_PRICE_FAILED"
	CodeCircuitOpen          Code = "CIRCUIT_OPEN"
)
