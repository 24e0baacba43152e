package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeMissingFilter        ErrorCode = 103
	ErrCodeInvalidFilter        ErrorCode = 104
	ErrCodeInvalidStopLoss      ErrorCode = 105

	// Sizing rejections (200-299). Non-fatal: the decision cycle logs the
	// reason and skips the trade.
	ErrCodeInsufficientBalance    ErrorCode = 200
	ErrCodeFractionBelowThreshold ErrorCode = 201
	ErrCodeFallbackBelowThreshold ErrorCode = 202

	// Quantization rejections (300-399). Non-fatal, same skip policy.
	ErrCodeStepUnaffordable   ErrorCode = 300
	ErrCodeBelowMinNotional   ErrorCode = 301
	ErrCodeNothingToSell      ErrorCode = 302
	ErrCodeQuantizeInfeasible ErrorCode = 303

	// Exchange call failures (400-499). The operation aborts without
	// mutating the ledger.
	ErrCodeExchangeUnavailable ErrorCode = 400
	ErrCodeBalanceFetchFailed  ErrorCode = 401
	ErrCodePriceFetchFailed    ErrorCode = 402
	ErrCodeFilterFetchFailed   ErrorCode = 403
	ErrCodeOrderFailed         ErrorCode = 404
	ErrCodeOrderStatusFailed   ErrorCode = 405
	ErrCodeCancelFailed        ErrorCode = 406

	// Execution state errors (500-599)
	ErrCodeUnknownOrderState ErrorCode = 500
	ErrCodeNoOpenPosition    ErrorCode = 501

	// Backtest errors (600-699)
	ErrCodeBacktestNoTrades       ErrorCode = 600
	ErrCodeBacktestEmptyInput     ErrorCode = 601
	ErrCodeBacktestLengthSkew     ErrorCode = 602
	ErrCodeBacktestDataLoadFailed ErrorCode = 603

	// Export errors (700-799)
	ErrCodeExportWriteFailed ErrorCode = 700
)
